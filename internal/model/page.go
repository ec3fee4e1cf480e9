package model

import "time"

// Filter selects the account population a batch job scans.
type Filter struct {
	TenantID string
	Status   AccountStatus
	// ExcludeSubStatus drops accounts already holding this sub-status (empty = none excluded).
	ExcludeSubStatus SubStatus
	// InactiveOnOrBefore keeps only accounts whose last activity is on or before this date (zero = any).
	InactiveOnOrBefore time.Time
}

// Matches reports whether a satisfies the filter.
func (f Filter) Matches(a Account) bool {
	if f.TenantID != "" && a.TenantID != f.TenantID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.ExcludeSubStatus != "" && a.SubStatus == f.ExcludeSubStatus {
		return false
	}
	if !f.InactiveOnOrBefore.IsZero() && DateOf(a.LastActivityDate).After(DateOf(f.InactiveOnOrBefore)) {
		return false
	}
	return true
}

// PageRequest asks for up to Limit accounts with ID greater than AfterID, ordered by ID.
type PageRequest struct {
	Filter  Filter
	AfterID int64
	Limit   int
}

// Page is one keyset page of accounts.
type Page struct {
	Items   []Account
	HasMore bool
	// TotalFilteredRecords is the size of the filtered set when the page was read.
	// Informational only: paging never terminates on it.
	TotalFilteredRecords int
}

// LastID returns the keyset cursor for the next page, or after when the page is empty.
func (p Page) LastID(after int64) int64 {
	if len(p.Items) == 0 {
		return after
	}
	return p.Items[len(p.Items)-1].ID
}
