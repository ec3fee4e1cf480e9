// Package closure enforces accounting-period closures: no posting may be dated on or
// before the latest effective closure of its branch.
package closure

import (
	"context"
	"fmt"
	"time"

	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/store"
)

// Guard answers whether a date is postable for a branch.
type Guard struct {
	reader store.ClosureReader
}

// NewGuard creates a Guard reading closures through reader. Inside a posting, pass the
// unit of work so the lookup runs at the posting's isolation level.
func NewGuard(reader store.ClosureReader) *Guard {
	return &Guard{reader: reader}
}

// IsPostable reports whether date lies strictly after the office's effective closure.
// The error is non-nil only when the closure could not be read.
func (g *Guard) IsPostable(ctx context.Context, rc model.RunContext, officeID int64, date time.Time) (bool, error) {
	latest, ok, err := g.reader.LatestClosure(ctx, rc.TenantID, officeID)
	if err != nil {
		return false, model.StoreError("reading latest closure", err)
	}
	return Postable(latest, ok, date), nil
}

// Check is IsPostable returning a *model.ClosurePeriodViolation when the date is closed.
func (g *Guard) Check(ctx context.Context, rc model.RunContext, officeID int64, date time.Time) error {
	latest, ok, err := g.reader.LatestClosure(ctx, rc.TenantID, officeID)
	if err != nil {
		return model.StoreError("reading latest closure", err)
	}
	if !Postable(latest, ok, date) {
		return &model.ClosurePeriodViolation{
			OfficeID:    officeID,
			Date:        model.DateOf(date),
			ClosingDate: model.DateOf(latest.ClosingDate),
		}
	}
	return nil
}

// Postable is the pure closure rule: with no effective closure every date is postable,
// otherwise only dates after the closing date are.
func Postable(latest model.ClosureRecord, ok bool, date time.Time) bool {
	if !ok {
		return true
	}
	return model.DateOf(date).After(model.DateOf(latest.ClosingDate))
}

// Effective selects the effective closure of officeID from records: the non-deleted record
// with the greatest closing date, ties broken by the lowest ID.
func Effective(records []model.ClosureRecord, officeID int64) (model.ClosureRecord, bool) {
	var best model.ClosureRecord
	found := false
	for _, rec := range records {
		if rec.OfficeID != officeID || rec.Deleted {
			continue
		}
		if !found {
			best, found = rec, true
			continue
		}
		bd, rd := model.DateOf(best.ClosingDate), model.DateOf(rec.ClosingDate)
		if rd.After(bd) || (rd.Equal(bd) && rec.ID < best.ID) {
			best = rec
		}
	}
	return best, found
}

// String renders a closure for operator output.
func String(rec model.ClosureRecord) string {
	return fmt.Sprintf("closure %d office %d closed through %s", rec.ID, rec.OfficeID, model.FormatDate(rec.ClosingDate))
}
