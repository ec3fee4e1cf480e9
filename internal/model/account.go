package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the primary lifecycle status of a savings account.
type AccountStatus string

const (
	StatusSubmitted AccountStatus = "SUBMITTED"
	StatusApproved  AccountStatus = "APPROVED"
	StatusActive    AccountStatus = "ACTIVE"
	StatusClosed    AccountStatus = "CLOSED"
)

// IsValid reports whether s is a known status.
func (s AccountStatus) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusApproved, StatusActive, StatusClosed:
		return true
	}
	return false
}

// SubStatus is the dormancy sub-status layered on top of an ACTIVE account.
type SubStatus string

const (
	SubStatusNone     SubStatus = "NONE"
	SubStatusInactive SubStatus = "INACTIVE"
	SubStatusDormant  SubStatus = "DORMANT"
	SubStatusEscheat  SubStatus = "ESCHEAT"
)

// Rank orders sub-statuses along NONE -> INACTIVE -> DORMANT -> ESCHEAT.
// Unknown values rank below NONE.
func (s SubStatus) Rank() int {
	switch s {
	case SubStatusNone, "":
		return 0
	case SubStatusInactive:
		return 1
	case SubStatusDormant:
		return 2
	case SubStatusEscheat:
		return 3
	}
	return -1
}

// Successor returns the next sub-status in the chain. ESCHEAT is its own successor.
func (s SubStatus) Successor() SubStatus {
	switch s {
	case SubStatusNone, "":
		return SubStatusInactive
	case SubStatusInactive:
		return SubStatusDormant
	default:
		return SubStatusEscheat
	}
}

// Account is the in-memory copy of a savings account held while one item is processed.
type Account struct {
	ID               int64
	TenantID         string
	OfficeID         int64
	ProductID        int64
	Status           AccountStatus
	SubStatus        SubStatus
	LastActivityDate time.Time
	CurrencyCode     string
	Balance          decimal.Decimal
}

// IsActive reports whether the account can receive postings.
func (a Account) IsActive() bool {
	return a.Status == StatusActive && a.SubStatus != SubStatusEscheat
}

// Posting is the audit row written for every successful financial posting.
type Posting struct {
	AccountID    int64
	Reference    string // unique per account; "<job>:<yyyy-mm-dd>"
	Date         time.Time
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
}

// Transition records one step of the dormancy state machine.
type Transition struct {
	AccountID int64
	From      SubStatus
	To        SubStatus
	AsOf      time.Time
}
