// Package lifecycle drives the dormancy sub-status of savings accounts along
// NONE -> INACTIVE -> DORMANT -> ESCHEAT.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/store"
)

// Machine computes sub-status transitions from last activity and configured thresholds.
// It is pure: it never reads or writes the store.
type Machine struct {
	thresholds ThresholdResolver
}

// NewMachine creates a Machine.
func NewMachine(thresholds ThresholdResolver) *Machine {
	return &Machine{thresholds: thresholds}
}

// Next returns the sub-status the account should hold after at most one step as of asOf.
// It never moves backwards or skips a state, and ESCHEAT is absorbing.
func (m *Machine) Next(a model.Account, asOf time.Time) model.SubStatus {
	cur := a.SubStatus
	if cur == "" {
		cur = model.SubStatusNone
	}
	if cur == model.SubStatusEscheat || cur.Rank() < 0 {
		return cur
	}
	if a.Status != model.StatusActive {
		return cur
	}
	t := m.thresholds.ThresholdsFor(a.ProductID)
	if !t.Enabled {
		return cur
	}

	next := cur.Successor()
	if model.DaysBetween(a.LastActivityDate, asOf) > t.daysFor(next) {
		return next
	}
	return cur
}

// Walk applies Next until it reaches a fixed point and returns every step taken.
func (m *Machine) Walk(a model.Account, asOf time.Time) []model.Transition {
	if a.SubStatus == "" {
		a.SubStatus = model.SubStatusNone
	}
	var steps []model.Transition
	for {
		next := m.Next(a, asOf)
		if next == a.SubStatus {
			return steps
		}
		steps = append(steps, model.Transition{
			AccountID: a.ID,
			From:      a.SubStatus,
			To:        next,
			AsOf:      model.DateOf(asOf),
		})
		a.SubStatus = next
	}
}

// Service applies lifecycle transitions to stored accounts.
type Service struct {
	machine *Machine
	store   store.AccountLocker
}

// NewService creates a lifecycle Service.
func NewService(machine *Machine, s store.AccountLocker) *Service {
	return &Service{machine: machine, store: s}
}

// Applied describes the outcome of Service.Apply.
type Applied struct {
	AccountID int64
	From      model.SubStatus
	To        model.SubStatus
	Steps     []model.Transition
}

// Changed reports whether any transition was written.
func (a Applied) Changed() bool { return len(a.Steps) > 0 }

// Apply walks the account's state machine as of the run date and writes the final sub-status
// and every intermediate step in one atomic unit. Reapplying with the same date is a no-op.
func (s *Service) Apply(ctx context.Context, rc model.RunContext, accountID int64) (Applied, error) {
	var applied Applied
	err := s.store.WithAccountLock(ctx, rc.TenantID, accountID, func(tx store.AccountTx) error {
		a := tx.Account()
		applied = Applied{AccountID: a.ID, From: a.SubStatus, To: a.SubStatus}
		steps := s.machine.Walk(a, rc.AsOfDate)
		if len(steps) == 0 {
			return nil
		}
		if err := tx.ApplyTransitions(ctx, steps); err != nil {
			return model.StoreError("writing transitions", err)
		}
		applied.Steps = steps
		applied.To = steps[len(steps)-1].To
		return nil
	})
	if err != nil {
		return Applied{AccountID: accountID}, fmt.Errorf("updating sub-status of account %d: %w", accountID, err)
	}
	return applied, nil
}
