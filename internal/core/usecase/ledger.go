package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OperationCharge   = "charge"
	OperationTopUp    = "top_up"
	OperationTransfer = "transfer"
	OperationUpgrade  = "subscription_upgrade"
)

const (
	ReasonWalletInactive    = "wallet inactive"
	ReasonInsufficientFunds = "insufficient funds"
	ReasonTopUpInactive     = "inactive wallet"
	ReasonInvalidTransfer   = "invalid criteria for transfer"
)

// LedgerConfig holds the ledger constants that come from configuration.
type LedgerConfig struct {
	// OriginEntity is the counterparty recorded for charges and top-ups.
	OriginEntity string
	PromoBalance decimal.Decimal
	Currency     string
}

type LedgerUsecase interface {
	Charge(ctx context.Context, ownerID, walletID uuid.UUID, amount decimal.Decimal, description string) (*models.Transaction, error)
	TopUp(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error)
	TransferFunds(ctx context.Context, senderID uuid.UUID, req models.TransferRequest) (*models.Transaction, error)
}

type ledgerUsecase struct {
	store repository.Store
	rec   *recorder
	cfg   LedgerConfig
	log   logger.Logger
}

func NewLedgerUsecase(store repository.Store, cfg LedgerConfig, deps Collaborators, log logger.Logger) LedgerUsecase {
	return newLedger(store, cfg, deps, log)
}

func newLedger(store repository.Store, cfg LedgerConfig, deps Collaborators, log logger.Logger) *ledgerUsecase {
	return &ledgerUsecase{
		store: store,
		rec:   newRecorder(deps, log),
		cfg:   cfg,
		log:   log,
	}
}

func (uc *ledgerUsecase) Charge(ctx context.Context, ownerID, walletID uuid.UUID, amount decimal.Decimal, description string) (*models.Transaction, error) {
	uc.logStart(OperationCharge, walletID, amount)
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	box := newOutbox(OperationCharge)
	var result *models.Transaction
	err := uc.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		wallet, err := lockOwnedWallet(ctx, repos, walletID, ownerID)
		if err != nil {
			return err
		}
		result, err = uc.chargeWithin(ctx, repos, box, wallet, amount, description, uc.cfg.OriginEntity)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.finish(ctx, box, result)
	return result, nil
}

// chargeWithin debits a locked wallet inside the caller's unit of work.
// Inactivity is reported before insufficient funds. A zero amount is allowed
// for free subscription purchases.
func (uc *ledgerUsecase) chargeWithin(
	ctx context.Context,
	repos repository.Repositories,
	box *outbox,
	wallet *models.Wallet,
	amount decimal.Decimal,
	description string,
	receiver string,
) (*models.Transaction, error) {
	params := recordParams{
		owner:       wallet.OwnerID,
		sender:      wallet.ID.String(),
		receiver:    receiver,
		amount:      amount,
		currency:    wallet.Currency,
		txType:      models.TransactionWithdrawal,
		description: description,
	}

	switch {
	case !wallet.IsActive():
		params.reason = ReasonWalletInactive
	case wallet.Balance.LessThan(amount):
		params.reason = ReasonInsufficientFunds
	}
	if params.reason != "" {
		uc.log.Warn("Charge declined",
			logger.StringField("wallet_id", wallet.ID.String()),
			logger.StringField("balance", wallet.Balance.StringFixed(models.MoneyScale)),
			logger.StringField("requested", amount.StringFixed(models.MoneyScale)),
			logger.StringField("reason", params.reason))
		params.status = models.TransactionFailed
		params.balanceLeft = wallet.Balance
		return uc.rec.record(ctx, repos, box, params)
	}

	wallet.Balance = wallet.Balance.Sub(amount)
	wallet.UpdatedAt = uc.rec.now()
	if err := repos.Wallets().Update(ctx, wallet); err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}

	params.status = models.TransactionSucceeded
	params.balanceLeft = wallet.Balance
	return uc.rec.record(ctx, repos, box, params)
}

func (uc *ledgerUsecase) TopUp(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error) {
	uc.logStart(OperationTopUp, walletID, amount)
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	box := newOutbox(OperationTopUp)
	var result *models.Transaction
	err := uc.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		wallet, err := lockWallet(ctx, repos, walletID)
		if err != nil {
			return err
		}

		params := recordParams{
			owner:       wallet.OwnerID,
			sender:      uc.cfg.OriginEntity,
			receiver:    wallet.ID.String(),
			amount:      amount,
			currency:    wallet.Currency,
			txType:      models.TransactionDeposit,
			description: fmt.Sprintf("Top up %s", amount.StringFixed(models.MoneyScale)),
		}

		if !wallet.IsActive() {
			params.status = models.TransactionFailed
			params.reason = ReasonTopUpInactive
			params.balanceLeft = wallet.Balance
			result, err = uc.rec.record(ctx, repos, box, params)
			return err
		}

		wallet.Balance = wallet.Balance.Add(amount)
		wallet.UpdatedAt = uc.rec.now()
		if err := repos.Wallets().Update(ctx, wallet); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}

		params.status = models.TransactionSucceeded
		params.balanceLeft = wallet.Balance
		result, err = uc.rec.record(ctx, repos, box, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.finish(ctx, box, result)
	return result, nil
}

// TransferFunds debits the sender wallet and credits the first active wallet
// of the receiving user in a single unit of work. On success the receiver's
// DEPOSIT record is returned; otherwise the sender's FAILED WITHDRAWAL.
func (uc *ledgerUsecase) TransferFunds(ctx context.Context, senderID uuid.UUID, req models.TransferRequest) (*models.Transaction, error) {
	uc.logStart(OperationTransfer, req.FromWalletID, req.Amount)
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	box := newOutbox(OperationTransfer)
	var result *models.Transaction
	err := uc.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		sender, err := repos.Users().GetByID(ctx, senderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domainError(KindNotFound, ErrUserNotFound, "User with id [%s] does not exist.", senderID)
			}
			return fmt.Errorf("get sender: %w", err)
		}

		from, err := ownedWallet(ctx, repos, req.FromWalletID, senderID)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Transfer from %s to %s, for %s %s.",
			sender.Username, req.UsernameReceiver, req.Amount.StringFixed(models.MoneyScale), from.Currency)

		candidates, err := repos.Wallets().ListActiveByOwnerUsername(ctx, req.UsernameReceiver)
		if err != nil {
			return fmt.Errorf("find receiver wallets: %w", err)
		}

		var toID uuid.UUID
		if len(candidates) > 0 && candidates[0].ID != from.ID {
			toID = candidates[0].ID
		}
		if toID == uuid.Nil {
			result, err = uc.declineTransfer(ctx, repos, box, from, req, description)
			return err
		}

		from, to, err := lockPair(ctx, repos, from.ID, toID)
		if err != nil {
			return err
		}
		if !to.IsActive() {
			result, err = uc.declineTransfer(ctx, repos, box, from, req, description)
			return err
		}

		debit, err := uc.chargeWithin(ctx, repos, box, from, req.Amount, description, to.ID.String())
		if err != nil {
			return err
		}
		if !debit.Succeeded() {
			result = debit
			return nil
		}

		to.Balance = to.Balance.Add(req.Amount)
		to.UpdatedAt = uc.rec.now()
		if err := repos.Wallets().Update(ctx, to); err != nil {
			return fmt.Errorf("update receiver wallet: %w", err)
		}

		result, err = uc.rec.record(ctx, repos, box, recordParams{
			owner:       to.OwnerID,
			sender:      from.ID.String(),
			receiver:    to.ID.String(),
			amount:      req.Amount,
			balanceLeft: to.Balance,
			currency:    to.Currency,
			txType:      models.TransactionDeposit,
			status:      models.TransactionSucceeded,
			description: description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.finish(ctx, box, result)
	return result, nil
}

func (uc *ledgerUsecase) declineTransfer(
	ctx context.Context,
	repos repository.Repositories,
	box *outbox,
	from *models.Wallet,
	req models.TransferRequest,
	description string,
) (*models.Transaction, error) {
	uc.log.Warn("Transfer declined",
		logger.StringField("wallet_id", from.ID.String()),
		logger.StringField("receiver", req.UsernameReceiver),
		logger.StringField("reason", ReasonInvalidTransfer))

	return uc.rec.record(ctx, repos, box, recordParams{
		owner:       from.OwnerID,
		sender:      from.ID.String(),
		receiver:    req.UsernameReceiver,
		amount:      req.Amount,
		balanceLeft: from.Balance,
		currency:    from.Currency,
		txType:      models.TransactionWithdrawal,
		status:      models.TransactionFailed,
		description: description,
		reason:      ReasonInvalidTransfer,
	})
}

// finish runs after commit: side effects first, then the outcome log.
func (uc *ledgerUsecase) finish(ctx context.Context, box *outbox, tx *models.Transaction) {
	uc.rec.publish(ctx, box)
	if tx == nil {
		return
	}

	fields := []logger.Field{
		logger.StringField("operation", box.operation),
		logger.StringField("transaction_id", tx.ID.String()),
		logger.StringField("status", string(tx.Status)),
		logger.StringField("balance_left", tx.BalanceLeft.StringFixed(models.MoneyScale)),
	}
	if tx.Succeeded() {
		uc.log.Info("Operation completed", fields...)
		return
	}
	uc.log.Warn("Operation declined", append(fields, logger.StringField("reason", tx.Reason()))...)
}

func (uc *ledgerUsecase) logStart(operation string, walletID uuid.UUID, amount decimal.Decimal) {
	uc.log.Info("Starting operation",
		logger.StringField("operation", operation),
		logger.StringField("wallet_id", walletID.String()),
		logger.StringField("amount", amount.String()))
}

// validateAmount accepts strictly positive amounts with at most two decimals.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domainError(KindInvalid, ErrInvalidAmount, "Amount must be positive, got %s.", amount.String())
	}
	if !amount.Equal(amount.Round(models.MoneyScale)) {
		return domainError(KindInvalid, ErrInvalidAmount, "Amount %s has more than %d decimal places.", amount.String(), models.MoneyScale)
	}
	return nil
}

func walletNotFound(id uuid.UUID) *DomainError {
	return domainError(KindNotFound, ErrWalletNotFound, "Wallet with id [%s] does not exist.", id)
}

func lockWallet(ctx context.Context, repos repository.Repositories, id uuid.UUID) (*models.Wallet, error) {
	wallet, err := repos.Wallets().GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, walletNotFound(id)
		}
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return wallet, nil
}

func checkOwner(wallet *models.Wallet, ownerID uuid.UUID) error {
	if wallet.OwnerID != ownerID {
		return domainError(KindForbidden, ErrWalletOwnership,
			"Wallet with id [%s] does not belong to user with id [%s].", wallet.ID, ownerID)
	}
	return nil
}

func lockOwnedWallet(ctx context.Context, repos repository.Repositories, id, ownerID uuid.UUID) (*models.Wallet, error) {
	wallet, err := lockWallet(ctx, repos, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(wallet, ownerID); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ownedWallet reads without locking.
func ownedWallet(ctx context.Context, repos repository.Repositories, id, ownerID uuid.UUID) (*models.Wallet, error) {
	wallet, err := repos.Wallets().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, walletNotFound(id)
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if err := checkOwner(wallet, ownerID); err != nil {
		return nil, err
	}
	return wallet, nil
}

// lockPair locks both wallets in ascending id order so that opposite
// transfers between the same pair cannot deadlock.
func lockPair(ctx context.Context, repos repository.Repositories, fromID, toID uuid.UUID) (*models.Wallet, *models.Wallet, error) {
	first, second := fromID, toID
	if second.String() < first.String() {
		first, second = second, first
	}

	a, err := lockWallet(ctx, repos, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := lockWallet(ctx, repos, second)
	if err != nil {
		return nil, nil, err
	}

	if a.ID == fromID {
		return a, b, nil
	}
	return b, a, nil
}
