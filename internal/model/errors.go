package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrClosurePeriodViolation = errors.New("closure period violation")
	ErrInvalidAccountState    = errors.New("invalid account state")
	ErrTransientStore         = errors.New("transient store error")
	ErrAccountNotFound        = errors.New("account not found")
	ErrDuplicatePosting       = errors.New("duplicate posting")
)

// ClosurePeriodViolation is returned when a posting date is at or before the branch's
// effective accounting closure.
type ClosurePeriodViolation struct {
	OfficeID    int64
	Date        time.Time
	ClosingDate time.Time
}

func (e *ClosurePeriodViolation) Error() string {
	return fmt.Sprintf("posting date %s is on or before office %d closure %s",
		FormatDate(e.Date), e.OfficeID, FormatDate(e.ClosingDate))
}

func (e *ClosurePeriodViolation) Is(target error) bool {
	return target == ErrClosurePeriodViolation
}

// InvalidAccountState is returned when an account is not eligible for the requested operation.
type InvalidAccountState struct {
	AccountID int64
	Status    AccountStatus
	SubStatus SubStatus
}

func (e *InvalidAccountState) Error() string {
	return fmt.Sprintf("account %d is %s/%s", e.AccountID, e.Status, e.SubStatus)
}

func (e *InvalidAccountState) Is(target error) bool {
	return target == ErrInvalidAccountState
}

// TransientStoreError wraps an I/O failure talking to the persistent store.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

func (e *TransientStoreError) Is(target error) bool {
	return target == ErrTransientStore
}

// StoreError wraps err as a TransientStoreError unless it is nil or already a domain error.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrDuplicatePosting) ||
		errors.Is(err, ErrClosurePeriodViolation) || errors.Is(err, ErrInvalidAccountState) ||
		errors.Is(err, ErrTransientStore) {
		return err
	}
	return &TransientStoreError{Op: op, Err: err}
}

// Retryable reports whether a fresh scheduler trigger may succeed without operator intervention.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
