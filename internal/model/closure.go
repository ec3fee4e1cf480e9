package model

import "time"

// ClosureRecord marks a branch's accounting period as closed up to and including ClosingDate.
type ClosureRecord struct {
	ID          int64
	TenantID    string
	OfficeID    int64
	ClosingDate time.Time
	Deleted     bool
	Comments    string
	CreatedAt   time.Time
}
