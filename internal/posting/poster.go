// Package posting applies financial effects to single accounts under the closure guard.
package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank-dev/corebatch/internal/closure"
	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/store"
)

// ErrNegativeAmount is returned when an amount function yields a negative posting.
var ErrNegativeAmount = errors.New("posting amount must not be negative")

// AmountFunc computes the amount to post to a locked account as of a date.
type AmountFunc func(a model.Account, asOf time.Time) decimal.Decimal

// Fixed returns an AmountFunc that always posts amount.
func Fixed(amount decimal.Decimal) AmountFunc {
	return func(model.Account, time.Time) decimal.Decimal { return amount }
}

// Result is the audit view of one Post call.
type Result struct {
	AccountID    int64
	Reference    string
	Date         time.Time
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	// Duplicate is set when the run's reference was already posted; nothing was written.
	Duplicate bool
	// Skipped is set when the computed amount rounded to zero; nothing was written.
	Skipped bool
}

// Poster posts amounts to accounts. The eligibility check, the closure check and the write
// happen inside one account unit of work.
type Poster struct {
	store store.AccountLocker
}

// NewPoster creates a Poster.
func NewPoster(s store.AccountLocker) *Poster {
	return &Poster{store: s}
}

// Post posts amount to the account dated rc.AsOfDate.
func (p *Poster) Post(ctx context.Context, rc model.RunContext, accountID int64, amount decimal.Decimal) (Result, error) {
	return p.PostWith(ctx, rc, accountID, Fixed(amount))
}

// PostWith posts the amount computed by fn from the locked account.
//
// It fails with *model.InvalidAccountState when the account is not active and with
// *model.ClosurePeriodViolation when rc.AsOfDate is on or before the office's closure.
func (p *Poster) PostWith(ctx context.Context, rc model.RunContext, accountID int64, fn AmountFunc) (Result, error) {
	var res Result
	err := p.store.WithAccountLock(ctx, rc.TenantID, accountID, func(tx store.AccountTx) error {
		a := tx.Account()
		if !a.IsActive() {
			return &model.InvalidAccountState{AccountID: a.ID, Status: a.Status, SubStatus: a.SubStatus}
		}
		if err := closure.NewGuard(tx).Check(ctx, rc, a.OfficeID, rc.AsOfDate); err != nil {
			return err
		}

		res = Result{
			AccountID:    a.ID,
			Reference:    rc.PostingReference(),
			Date:         rc.AsOfDate,
			BalanceAfter: a.Balance,
		}
		posted, err := tx.HasPosting(ctx, res.Reference)
		if err != nil {
			return model.StoreError("checking posting reference", err)
		}
		if posted {
			res.Duplicate = true
			return nil
		}

		amount := model.RoundToCurrency(fn(a, rc.AsOfDate), a.CurrencyCode)
		switch {
		case amount.IsNegative():
			return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
		case amount.IsZero():
			res.Skipped = true
			return nil
		}

		res.Amount = amount
		res.BalanceAfter = a.Balance.Add(amount)
		return model.StoreError("writing posting", tx.ApplyPosting(ctx, model.Posting{
			AccountID:    a.ID,
			Reference:    res.Reference,
			Date:         res.Date,
			Amount:       res.Amount,
			BalanceAfter: res.BalanceAfter,
		}))
	})
	if err != nil {
		return Result{AccountID: accountID}, fmt.Errorf("posting to account %d: %w", accountID, err)
	}
	return res, nil
}
