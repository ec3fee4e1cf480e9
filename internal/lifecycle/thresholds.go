package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/corebank-dev/corebatch/internal/model"
)

// Thresholds are the days of inactivity after which an account steps to the next sub-status.
// A step happens once elapsed days strictly exceed the threshold.
type Thresholds struct {
	Enabled           bool
	InactiveAfterDays int
	DormantAfterDays  int
	EscheatAfterDays  int
}

// Validate checks that enabled thresholds are positive and strictly increasing.
func (t Thresholds) Validate() error {
	if !t.Enabled {
		return nil
	}
	var errs []error
	if t.InactiveAfterDays <= 0 {
		errs = append(errs, fmt.Errorf("inactive_after_days must be positive, got %d", t.InactiveAfterDays))
	}
	if t.DormantAfterDays <= t.InactiveAfterDays {
		errs = append(errs, fmt.Errorf("dormant_after_days (%d) must exceed inactive_after_days (%d)", t.DormantAfterDays, t.InactiveAfterDays))
	}
	if t.EscheatAfterDays <= t.DormantAfterDays {
		errs = append(errs, fmt.Errorf("escheat_after_days (%d) must exceed dormant_after_days (%d)", t.EscheatAfterDays, t.DormantAfterDays))
	}
	return errors.Join(errs...)
}

// daysFor returns the threshold guarding entry into s.
func (t Thresholds) daysFor(s model.SubStatus) int {
	switch s {
	case model.SubStatusInactive:
		return t.InactiveAfterDays
	case model.SubStatusDormant:
		return t.DormantAfterDays
	default:
		return t.EscheatAfterDays
	}
}

// ThresholdResolver picks the thresholds that apply to a savings product.
type ThresholdResolver interface {
	ThresholdsFor(productID int64) Thresholds
}

// Policy resolves product-specific thresholds, falling back to Default.
type Policy struct {
	Default  Thresholds
	Products map[int64]Thresholds
}

// ThresholdsFor implements ThresholdResolver.
func (p Policy) ThresholdsFor(productID int64) Thresholds {
	if t, ok := p.Products[productID]; ok {
		return t
	}
	return p.Default
}

// Validate validates every threshold set in the policy.
func (p Policy) Validate() error {
	if err := p.Default.Validate(); err != nil {
		return fmt.Errorf("default thresholds: %w", err)
	}
	for id, t := range p.Products {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("product %d thresholds: %w", id, err)
		}
	}
	return nil
}

// MinInactiveDays returns the smallest enabled inactive threshold, or false when tracking is
// disabled everywhere.
func (p Policy) MinInactiveDays() (int, bool) {
	minDays, ok := 0, false
	consider := func(t Thresholds) {
		if !t.Enabled {
			return
		}
		if !ok || t.InactiveAfterDays < minDays {
			minDays, ok = t.InactiveAfterDays, true
		}
	}
	consider(p.Default)
	for _, t := range p.Products {
		consider(t)
	}
	return minDays, ok
}

// Cutoff returns the latest last-activity date at which an account is more than days idle on asOf.
func Cutoff(asOf time.Time, days int) time.Time {
	return model.DateOf(asOf).AddDate(0, 0, -days-1)
}
