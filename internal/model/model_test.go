package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubStatusRankAndSuccessor(t *testing.T) {
	chain := []SubStatus{SubStatusNone, SubStatusInactive, SubStatusDormant, SubStatusEscheat}
	for i, s := range chain {
		assert.Equal(t, i, s.Rank(), "rank of %s", s)
	}
	assert.Equal(t, SubStatusInactive, SubStatusNone.Successor())
	assert.Equal(t, SubStatusDormant, SubStatusInactive.Successor())
	assert.Equal(t, SubStatusEscheat, SubStatusDormant.Successor())
	assert.Equal(t, SubStatusEscheat, SubStatusEscheat.Successor(), "escheat is absorbing")
	assert.Equal(t, -1, SubStatus("BOGUS").Rank())
}

func TestAccountIsActive(t *testing.T) {
	tests := []struct {
		status AccountStatus
		sub    SubStatus
		want   bool
	}{
		{StatusActive, SubStatusNone, true},
		{StatusActive, SubStatusDormant, true},
		{StatusActive, SubStatusEscheat, false},
		{StatusClosed, SubStatusNone, false},
		{StatusApproved, SubStatusNone, false},
	}
	for _, tt := range tests {
		a := Account{Status: tt.status, SubStatus: tt.sub}
		assert.Equal(t, tt.want, a.IsActive(), "%s/%s", tt.status, tt.sub)
	}
}

func TestFilterMatches(t *testing.T) {
	acct := Account{
		TenantID:         "default",
		Status:           StatusActive,
		SubStatus:        SubStatusInactive,
		LastActivityDate: Date(2024, 1, 10),
	}

	assert.True(t, Filter{}.Matches(acct))
	assert.True(t, Filter{TenantID: "default", Status: StatusActive}.Matches(acct))
	assert.False(t, Filter{TenantID: "other"}.Matches(acct))
	assert.False(t, Filter{Status: StatusClosed}.Matches(acct))
	assert.False(t, Filter{ExcludeSubStatus: SubStatusInactive}.Matches(acct))
	assert.True(t, Filter{InactiveOnOrBefore: Date(2024, 1, 10)}.Matches(acct))
	assert.False(t, Filter{InactiveOnOrBefore: Date(2024, 1, 9)}.Matches(acct))
}

func TestPageLastID(t *testing.T) {
	assert.Equal(t, int64(7), Page{}.LastID(7))
	p := Page{Items: []Account{{ID: 3}, {ID: 9}}}
	assert.Equal(t, int64(9), p.LastID(0))
}

func TestDates(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 2024-02-01 02:00 local is still 2024-01-31 in UTC; the civil date follows the location.
	local := time.Date(2024, 2, 1, 2, 0, 0, 0, loc)
	assert.Equal(t, Date(2024, 2, 1), DateOf(local))

	d, err := ParseDate("2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31", FormatDate(d))

	_, err = ParseDate("31/01/2024")
	assert.Error(t, err)

	assert.Equal(t, 400, DaysBetween(Date(2023, 1, 1), Date(2023, 1, 1).AddDate(0, 0, 400)))
	assert.Equal(t, -1, DaysBetween(Date(2024, 1, 2), Date(2024, 1, 1)))
}

func TestRunContext(t *testing.T) {
	rc := NewRunContext("default", "post-interest", time.Date(2024, 2, 1, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, Date(2024, 2, 1), rc.AsOfDate)
	assert.NotEqual(t, rc.RunID, NewRunContext("default", "post-interest", rc.AsOfDate).RunID)
	assert.Equal(t, "post-interest:2024-02-01", rc.PostingReference())
}

func TestRoundToCurrency(t *testing.T) {
	assert.Equal(t, int32(2), CurrencyScale("usd"))
	assert.Equal(t, int32(0), CurrencyScale("JPY"))
	assert.Equal(t, int32(3), CurrencyScale("KWD"))

	amt := decimal.RequireFromString("10.125")
	assert.True(t, RoundToCurrency(amt, "USD").Equal(decimal.RequireFromString("10.12")), "banker's rounding")
	assert.True(t, RoundToCurrency(amt, "JPY").Equal(decimal.NewFromInt(10)))
	assert.True(t, RoundToCurrency(amt, "KWD").Equal(amt))
}

func TestErrorTaxonomy(t *testing.T) {
	cpv := &ClosurePeriodViolation{OfficeID: 7, Date: Date(2024, 1, 15), ClosingDate: Date(2024, 1, 31)}
	assert.ErrorIs(t, cpv, ErrClosurePeriodViolation)
	assert.Contains(t, cpv.Error(), "office 7")
	assert.False(t, Retryable(cpv))

	ias := &InvalidAccountState{AccountID: 3, Status: StatusClosed, SubStatus: SubStatusNone}
	assert.ErrorIs(t, ias, ErrInvalidAccountState)
	assert.False(t, Retryable(ias))

	cause := errors.New("connection reset")
	wrapped := StoreError("load account", cause)
	assert.ErrorIs(t, wrapped, ErrTransientStore)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, Retryable(fmt.Errorf("post: %w", wrapped)))

	assert.NoError(t, StoreError("noop", nil))
	assert.Same(t, ErrAccountNotFound, StoreError("load", ErrAccountNotFound))
	assert.Equal(t, error(cpv), StoreError("check", cpv))
}
