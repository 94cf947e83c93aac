package notification

import (
	"context"
	"sync"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/google/uuid"
)

type Config struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single delivery.
	Timeout time.Duration
}

// Dispatcher hands events to a fixed pool of workers. Enqueueing never
// blocks: a full queue or a closed dispatcher drops the event with a warning.
type Dispatcher struct {
	jobs    chan Event
	sender  Sender
	timeout time.Duration
	log     logger.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewDispatcher(sender Sender, cfg Config, log logger.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	d := &Dispatcher{
		jobs:    make(chan Event, cfg.QueueSize),
		sender:  sender,
		timeout: cfg.Timeout,
		log:     log,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for ev := range d.jobs {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			d.log.Error("Notification sender panicked",
				logger.AnyField("panic", p),
				logger.StringField("owner_id", ev.OwnerID.String()))
		}
	}()

	if err := d.sender.Send(ctx, ev); err != nil {
		d.log.Error("Notification delivery failed",
			logger.ErrorField("error", err),
			logger.StringField("type", string(ev.Type)),
			logger.StringField("owner_id", ev.OwnerID.String()))
	}
}

func (d *Dispatcher) SendNotification(ownerID uuid.UUID, subject, body string) {
	d.Submit(Event{
		Type:       EventSend,
		OwnerID:    ownerID,
		Subject:    subject,
		Body:       body,
		OccurredAt: time.Now().UTC(),
	})
}

func (d *Dispatcher) SaveNotificationPreference(ownerID uuid.UUID, enabled bool, contactInfo string) {
	d.Submit(Event{
		Type:        EventPreferenceUpsert,
		OwnerID:     ownerID,
		Enabled:     enabled,
		ContactInfo: contactInfo,
		OccurredAt:  time.Now().UTC(),
	})
}

// Submit reports whether the event was queued.
func (d *Dispatcher) Submit(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.log.Warn("Notification dropped: dispatcher closed",
			logger.StringField("type", string(ev.Type)),
			logger.StringField("owner_id", ev.OwnerID.String()))
		return false
	}

	select {
	case d.jobs <- ev:
		return true
	default:
		d.log.Warn("Notification dropped: queue full",
			logger.StringField("type", string(ev.Type)),
			logger.StringField("owner_id", ev.OwnerID.String()))
		return false
	}
}

// Shutdown stops accepting events and waits for queued ones to drain.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
