package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/cache"
	"github.com/Nzyazin/smartwallet/internal/core/handler"
	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/metrics"
	middlWre "github.com/Nzyazin/smartwallet/internal/core/middleware"
	"github.com/Nzyazin/smartwallet/internal/core/notification"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/Nzyazin/smartwallet/internal/core/repository/postgres"
	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/Nzyazin/smartwallet/pkg/config"
	"github.com/Nzyazin/smartwallet/pkg/postgresdb"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpmetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

// Routes is implemented by every handler.
type Routes interface {
	RegisterRoutes(router *mux.Router)
}

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

type closer struct {
	name string
	c    io.Closer
}

type Server struct {
	router     http.Handler
	log        logger.Logger
	httpServer *http.Server
	db         *postgresdb.Database
	dispatcher *notification.Dispatcher
	closers    []closer
}

// Services bundles the usecases the HTTP surface is built from.
type Services struct {
	Accounts      usecase.AccountUsecase
	Wallets       usecase.WalletUsecase
	Ledger        usecase.LedgerUsecase
	Transactions  usecase.TransactionUsecase
	Subscriptions usecase.SubscriptionUsecase
}

// NewServices wires the usecases over one store and one set of collaborators.
func NewServices(store repository.Store, cfg usecase.LedgerConfig, deps usecase.Collaborators, log logger.Logger) Services {
	transactions := usecase.NewTransactionUsecase(store.Transactions(), deps, log)
	return Services{
		Accounts:      usecase.NewAccountUsecase(store, cfg, deps, log),
		Wallets:       usecase.NewWalletUsecase(store, transactions, cfg, deps, log),
		Ledger:        usecase.NewLedgerUsecase(store, cfg, deps, log),
		Transactions:  transactions,
		Subscriptions: usecase.NewSubscriptionUsecase(store, cfg, deps, log),
	}
}

// Handlers builds one handler per resource.
func (s Services) Handlers(log logger.Logger) []Routes {
	return []Routes{
		handler.NewUserHandler(s.Accounts, log),
		handler.NewWalletHandler(s.Wallets, s.Ledger, log),
		handler.NewTransactionHandler(s.Transactions, s.Ledger, log),
		handler.NewSubscriptionHandler(s.Subscriptions, log),
	}
}

func NewServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Server, error) {
	db, err := postgresdb.NewPostgresDB(cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	server := &Server{log: log, db: db}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rdb, err := server.redisClient(ctx, cfg.App)
	if err != nil {
		server.closeAll()
		return nil, err
	}
	var activity usecase.ActivityCache = cache.Nop{}
	if rdb != nil {
		activity = cache.NewRedisActivityCache(rdb, cfg.App.ActivityCacheTTL)
	}

	server.dispatcher = notification.NewDispatcher(server.notificationSender(cfg.App), notification.Config{
		Workers:   cfg.App.NotifyWorkers,
		QueueSize: cfg.App.NotifyQueueSize,
		Timeout:   cfg.App.NotifyTimeout,
	}, log)

	deps := usecase.Collaborators{
		Notifier: server.dispatcher,
		Cache:    activity,
		Observer: metrics.NewLedger(reg),
	}
	ledgerCfg := usecase.LedgerConfig{
		OriginEntity: cfg.App.OriginEntity,
		PromoBalance: cfg.App.PromoBalance,
		Currency:     cfg.App.Currency,
	}

	services := NewServices(postgres.NewStore(db.DB, log), ledgerCfg, deps, log)
	routerCfg := RouterConfig{
		Log:            log,
		Registry:       reg,
		Health:         db.PingContext,
		AllowedOrigins: cfg.App.AllowedOrigins,
		IdempotencyTTL: cfg.App.IdempotencyTTL,
	}
	if rdb != nil {
		routerCfg.Idempotency = rdb
	}
	server.router = NewRouter(routerCfg, services.Handlers(log)...)

	return server, nil
}

// redisClient returns nil when Redis is not configured. The activity cache and
// idempotency keys are both disabled in that case.
func (s *Server) redisClient(ctx context.Context, cfg config.AppConfig) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		s.log.Info("Redis not configured, activity cache and idempotency keys disabled")
		return nil, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closer{name: "redis", c: client})
	s.log.Info("Redis enabled", logger.StringField("redis_addr", cfg.RedisAddr))
	return client, nil
}

func (s *Server) notificationSender(cfg config.AppConfig) notification.Sender {
	if len(cfg.KafkaBrokers) == 0 {
		s.log.Info("Kafka not configured, notifications are logged only")
		return notification.NewLogSender(s.log)
	}

	sender := notification.NewKafkaSender(notification.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaNotificationTopic, s.log))
	s.closers = append(s.closers, closer{name: "kafka", c: sender})
	return sender
}

type RouterConfig struct {
	Log            logger.Logger
	Registry       *prometheus.Registry
	Health         HealthCheck
	AllowedOrigins []string
	// Idempotency is optional; without it Idempotency-Key headers are ignored.
	Idempotency    redis.Cmdable
	IdempotencyTTL time.Duration
}

// NewRouter assembles the middleware chain, the API routes, /health and /metrics.
// CORS wraps the whole router so preflight requests never reach route matching.
func NewRouter(cfg RouterConfig, routes ...Routes) http.Handler {
	router := mux.NewRouter()

	mw := middleware.New(middleware.Config{
		Recorder: httpmetrics.NewRecorder(httpmetrics.Config{Registry: cfg.Registry}),
	})

	router.Use(
		middlWre.RequestID,
		middlWre.Logging(cfg.Log),
		func(next http.Handler) http.Handler {
			return std.Handler("", mw, next)
		},
		middlWre.Recovery(cfg.Log),
	)
	if cfg.Idempotency != nil {
		router.Use(middlWre.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL, handler.UserIDHeader, cfg.Log))
	}

	for _, r := range routes {
		r.RegisterRoutes(router)
	}

	router.HandleFunc("/health", healthHandler(cfg.Health)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry})).Methods(http.MethodGet)
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", handler.UserIDHeader, middlWre.RequestIDHeader, middlWre.IdempotencyKeyHeader},
		ExposedHeaders:   []string{middlWre.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(router)
}

func healthHandler(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if check != nil {
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      9 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

// Shutdown stops accepting requests, drains pending notifications and then
// closes the external clients and the database.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		defer close(done)

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if s.dispatcher != nil {
			if err := s.dispatcher.Shutdown(ctx); err != nil {
				s.log.Error("failed to drain notifications", logger.ErrorField("error", err))
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("notification shutdown error: %w", err))
			}
		}

		if err := s.closeAll(); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (s *Server) closeAll() error {
	var errs error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].c.Close(); err != nil {
			s.log.Error("failed to close client",
				logger.StringField("client", s.closers[i].name),
				logger.ErrorField("error", err))
			errs = errors.Join(errs, fmt.Errorf("%s close error: %w", s.closers[i].name, err))
		}
	}
	s.closers = nil

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Error("failed to close database connection", logger.ErrorField("error", err))
			errs = errors.Join(errs, fmt.Errorf("database shutdown error: %w", err))
		}
		s.db = nil
	}
	return errs
}
