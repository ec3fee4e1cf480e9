// Package store defines the persistence contract shared by the batch engine's components.
// Implementations live in the memory and postgres subpackages.
package store

import (
	"context"

	"github.com/corebank-dev/corebatch/internal/model"
)

// ClosureReader looks up the effective closure of a branch.
type ClosureReader interface {
	LatestClosure(ctx context.Context, tenantID string, officeID int64) (model.ClosureRecord, bool, error)
}

// AccountTx is a unit of work holding the lock on one account row. Writes become visible
// together when the enclosing WithAccountLock callback returns nil, and not at all otherwise.
type AccountTx interface {
	ClosureReader
	// Account returns the locked account as read inside the unit of work.
	Account() model.Account
	HasPosting(ctx context.Context, reference string) (bool, error)
	// ApplyPosting sets balance to p.BalanceAfter and last activity to p.Date and records p.
	ApplyPosting(ctx context.Context, p model.Posting) error
	// ApplyTransitions sets the sub-status to the last step's To and records every step.
	ApplyTransitions(ctx context.Context, steps []model.Transition) error
}

// OfficeTx is a unit of work holding the exclusive closure lock of one office.
type OfficeTx interface {
	ClosureReader
	ListClosures(ctx context.Context) ([]model.ClosureRecord, error)
	InsertClosure(ctx context.Context, rec model.ClosureRecord) (model.ClosureRecord, error)
	DeleteClosure(ctx context.Context, id int64) error
}

// AccountLocker opens account units of work.
type AccountLocker interface {
	WithAccountLock(ctx context.Context, tenantID string, accountID int64, fn func(tx AccountTx) error) error
}

// Store is the full persistence surface used by the CLI and the job registry.
type Store interface {
	ClosureReader
	Page(ctx context.Context, req model.PageRequest) (model.Page, error)
	GetAccount(ctx context.Context, tenantID string, id int64) (model.Account, error)
	// WithAccountLock runs fn with the account row locked and the account's office closure
	// lock held in shared mode, so a closure cannot commit between fn's closure check and its write.
	WithAccountLock(ctx context.Context, tenantID string, accountID int64, fn func(tx AccountTx) error) error
	WithOfficeLock(ctx context.Context, tenantID string, officeID int64, fn func(tx OfficeTx) error) error
	Close() error
}

