package closure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/store"
)

var (
	ErrNotAfterLatest = errors.New("closing date must be after the latest closure")
	ErrFutureDate     = errors.New("closing date cannot be in the future")
	ErrNoClosure      = errors.New("office has no closure")
)

// Locker is the store surface the Service needs.
type Locker interface {
	store.ClosureReader
	WithOfficeLock(ctx context.Context, tenantID string, officeID int64, fn func(tx store.OfficeTx) error) error
}

// Service creates and reopens branch closures.
type Service struct {
	store Locker
	now   func() time.Time
}

// NewService creates a closure Service.
func NewService(s Locker) *Service {
	return &Service{store: s, now: time.Now}
}

// Create closes the office's books through closingDate. The closing date must be after the
// current effective closure and not after the run's as-of date.
func (s *Service) Create(ctx context.Context, rc model.RunContext, officeID int64, closingDate time.Time, comments string) (model.ClosureRecord, error) {
	closingDate = model.DateOf(closingDate)
	if closingDate.After(rc.AsOfDate) {
		return model.ClosureRecord{}, fmt.Errorf("%w: %s after %s", ErrFutureDate, model.FormatDate(closingDate), model.FormatDate(rc.AsOfDate))
	}

	var created model.ClosureRecord
	err := s.store.WithOfficeLock(ctx, rc.TenantID, officeID, func(tx store.OfficeTx) error {
		latest, ok, err := tx.LatestClosure(ctx, rc.TenantID, officeID)
		if err != nil {
			return err
		}
		if ok && !closingDate.After(model.DateOf(latest.ClosingDate)) {
			return fmt.Errorf("%w: office %d closed through %s", ErrNotAfterLatest, officeID, model.FormatDate(latest.ClosingDate))
		}
		created, err = tx.InsertClosure(ctx, model.ClosureRecord{
			TenantID:    rc.TenantID,
			OfficeID:    officeID,
			ClosingDate: closingDate,
			Comments:    comments,
			CreatedAt:   s.now().UTC(),
		})
		return err
	})
	if err != nil {
		return model.ClosureRecord{}, fmt.Errorf("creating closure for office %d: %w", officeID, err)
	}
	return created, nil
}

// Reopen soft-deletes the office's effective closure, making the previous one effective again.
// Only the latest closure can be reopened.
func (s *Service) Reopen(ctx context.Context, rc model.RunContext, officeID int64) (model.ClosureRecord, error) {
	var reopened model.ClosureRecord
	err := s.store.WithOfficeLock(ctx, rc.TenantID, officeID, func(tx store.OfficeTx) error {
		latest, ok, err := tx.LatestClosure(ctx, rc.TenantID, officeID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoClosure
		}
		if err := tx.DeleteClosure(ctx, latest.ID); err != nil {
			return err
		}
		latest.Deleted = true
		reopened = latest
		return nil
	})
	if err != nil {
		return model.ClosureRecord{}, fmt.Errorf("reopening closure for office %d: %w", officeID, err)
	}
	return reopened, nil
}

// Latest returns the office's effective closure.
func (s *Service) Latest(ctx context.Context, rc model.RunContext, officeID int64) (model.ClosureRecord, error) {
	latest, ok, err := s.store.LatestClosure(ctx, rc.TenantID, officeID)
	if err != nil {
		return model.ClosureRecord{}, model.StoreError("reading latest closure", err)
	}
	if !ok {
		return model.ClosureRecord{}, ErrNoClosure
	}
	return latest, nil
}

// History returns every closure of the office in creation order, reopened ones included.
// It takes the office lock so a concurrent create or reopen is seen whole or not at all.
func (s *Service) History(ctx context.Context, rc model.RunContext, officeID int64) ([]model.ClosureRecord, error) {
	var out []model.ClosureRecord
	err := s.store.WithOfficeLock(ctx, rc.TenantID, officeID, func(tx store.OfficeTx) error {
		var err error
		out, err = tx.ListClosures(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing closures for office %d: %w", officeID, err)
	}
	return out, nil
}
