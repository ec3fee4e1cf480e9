package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/store"
)

// WithAccountLock locks the account, then its office closure lock in shared mode, and runs fn.
// Staged writes are committed only when fn returns nil.
func (s *Store) WithAccountLock(ctx context.Context, tenantID string, accountID int64, fn func(tx store.AccountTx) error) error {
	if _, err := s.GetAccount(ctx, tenantID, accountID); err != nil {
		return err
	}

	al := s.accountLock(accountID)
	al.Lock()
	defer al.Unlock()

	// Re-read under the row lock; the copy read above may be stale.
	acct, err := s.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return err
	}

	ol := s.officeLock(acct.TenantID, acct.OfficeID)
	ol.RLock()
	defer ol.RUnlock()

	tx := &accountTx{store: s, account: acct}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commitAccount(tx)
}

func (s *Store) commitAccount(tx *accountTx) error {
	if tx.posting == nil && len(tx.steps) == 0 {
		return nil
	}
	if f := s.fault.Load(); f != nil {
		if err := (*f)(tx.account.ID); err != nil {
			return model.StoreError(fmt.Sprintf("committing account %d", tx.account.ID), err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[tx.account.ID]
	if !ok {
		return fmt.Errorf("account %d: %w", tx.account.ID, model.ErrAccountNotFound)
	}
	if p := tx.posting; p != nil {
		byRef := s.postings[acct.ID]
		if byRef == nil {
			byRef = make(map[string]model.Posting)
			s.postings[acct.ID] = byRef
		}
		if _, dup := byRef[p.Reference]; dup {
			return fmt.Errorf("account %d reference %s: %w", acct.ID, p.Reference, model.ErrDuplicatePosting)
		}
		byRef[p.Reference] = *p
		acct.Balance = p.BalanceAfter
		acct.LastActivityDate = p.Date
	}
	if n := len(tx.steps); n > 0 {
		acct.SubStatus = tx.steps[n-1].To
		s.transitions = append(s.transitions, tx.steps...)
	}
	s.accounts[acct.ID] = acct
	return nil
}

type accountTx struct {
	store   *Store
	account model.Account
	posting *model.Posting
	steps   []model.Transition
}

func (tx *accountTx) Account() model.Account { return tx.account }

func (tx *accountTx) LatestClosure(ctx context.Context, tenantID string, officeID int64) (model.ClosureRecord, bool, error) {
	return tx.store.LatestClosure(ctx, tenantID, officeID)
}

func (tx *accountTx) HasPosting(_ context.Context, reference string) (bool, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	_, ok := tx.store.postings[tx.account.ID][reference]
	return ok, nil
}

func (tx *accountTx) ApplyPosting(_ context.Context, p model.Posting) error {
	if p.AccountID != tx.account.ID {
		return fmt.Errorf("posting for account %d applied to account %d", p.AccountID, tx.account.ID)
	}
	tx.posting = &p
	return nil
}

func (tx *accountTx) ApplyTransitions(_ context.Context, steps []model.Transition) error {
	tx.steps = append(tx.steps, steps...)
	return nil
}

// WithOfficeLock takes the office's closure lock exclusively and runs fn. Staged closure
// changes are committed only when fn returns nil.
func (s *Store) WithOfficeLock(_ context.Context, tenantID string, officeID int64, fn func(tx store.OfficeTx) error) error {
	ol := s.officeLock(tenantID, officeID)
	ol.Lock()
	defer ol.Unlock()

	tx := &officeTx{store: s, tenantID: tenantID, officeID: officeID}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range tx.deleted {
		for i := range s.closures {
			if s.closures[i].ID == id {
				s.closures[i].Deleted = true
			}
		}
	}
	s.closures = append(s.closures, tx.inserted...)
	return nil
}

type officeTx struct {
	store    *Store
	tenantID string
	officeID int64
	inserted []model.ClosureRecord
	deleted  []int64
}

func (tx *officeTx) LatestClosure(ctx context.Context, tenantID string, officeID int64) (model.ClosureRecord, bool, error) {
	return tx.store.LatestClosure(ctx, tenantID, officeID)
}

func (tx *officeTx) ListClosures(_ context.Context) ([]model.ClosureRecord, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	var out []model.ClosureRecord
	for _, c := range tx.store.closures {
		if c.TenantID == tx.tenantID && c.OfficeID == tx.officeID {
			out = append(out, c)
		}
	}
	return slices.Clone(out), nil
}

func (tx *officeTx) InsertClosure(_ context.Context, rec model.ClosureRecord) (model.ClosureRecord, error) {
	if rec.OfficeID != tx.officeID || rec.TenantID != tx.tenantID {
		return model.ClosureRecord{}, fmt.Errorf("closure for office %d inserted under lock of office %d", rec.OfficeID, tx.officeID)
	}
	tx.store.mu.Lock()
	tx.store.nextClosureID++
	rec.ID = tx.store.nextClosureID
	tx.store.mu.Unlock()
	tx.inserted = append(tx.inserted, rec)
	return rec, nil
}

func (tx *officeTx) DeleteClosure(_ context.Context, id int64) error {
	tx.deleted = append(tx.deleted, id)
	return nil
}
