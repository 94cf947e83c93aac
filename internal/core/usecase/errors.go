package usecase

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindForbidden ErrorKind = "forbidden"
	KindConflict  ErrorKind = "conflict"
	KindInvalid   ErrorKind = "invalid"
)

var (
	ErrWalletNotFound           = errors.New("wallet not found")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrWalletOwnership          = errors.New("wallet does not belong to user")
	ErrWalletLimitReached       = errors.New("wallet limit reached")
	ErrWalletAlreadyInitialized = errors.New("wallet already initialized")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrUsernameTaken            = errors.New("username already taken")
	ErrInvalidUsername          = errors.New("invalid username")
	ErrInvalidSubscription      = errors.New("invalid subscription")
)

// DomainError means the operation could not be attempted at all.
// Declined ledger operations are FAILED transactions, never a DomainError.
type DomainError struct {
	Kind    ErrorKind
	Message string
	err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.err
}

func domainError(kind ErrorKind, sentinel error, format string, args ...interface{}) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		err:     sentinel,
	}
}

// KindOf returns the kind of a domain error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
