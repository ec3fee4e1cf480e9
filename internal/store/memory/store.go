// Package memory is an in-process implementation of store.Store used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/corebank-dev/corebatch/internal/closure"
	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/store"
)

type officeKey struct {
	tenantID string
	officeID int64
}

// Store keeps accounts, closures and audit rows in maps guarded by mu. Row-level
// serialization uses one mutex per account and one RWMutex per office.
type Store struct {
	mu            sync.RWMutex
	accounts      map[int64]model.Account
	closures      []model.ClosureRecord
	nextClosureID int64
	postings      map[int64]map[string]model.Posting
	transitions   []model.Transition

	locksMu      sync.Mutex
	accountLocks map[int64]*sync.Mutex
	officeLocks  map[officeKey]*sync.RWMutex

	fault     atomic.Pointer[func(accountID int64) error]
	pageCalls atomic.Int64
}

var _ store.Store = (*Store)(nil)

// New creates a Store seeded with accounts.
func New(accounts ...model.Account) *Store {
	s := &Store{
		accounts:     make(map[int64]model.Account, len(accounts)),
		postings:     make(map[int64]map[string]model.Posting),
		accountLocks: make(map[int64]*sync.Mutex),
		officeLocks:  make(map[officeKey]*sync.RWMutex),
	}
	s.Put(accounts...)
	return s
}

// Put inserts or replaces accounts.
func (s *Store) Put(accounts ...model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accounts {
		if a.SubStatus == "" {
			a.SubStatus = model.SubStatusNone
		}
		s.accounts[a.ID] = a
	}
}

// PutClosure records a closure without validation, assigning an ID when rec.ID is zero.
func (s *Store) PutClosure(rec model.ClosureRecord) model.ClosureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == 0 {
		s.nextClosureID++
		rec.ID = s.nextClosureID
	} else if rec.ID > s.nextClosureID {
		s.nextClosureID = rec.ID
	}
	s.closures = append(s.closures, rec)
	return rec
}

// Delete removes an account, as a concurrent writer closing it out of the population would.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

// SetFault makes every account commit call fn first; a non-nil result aborts the commit
// as a store failure. Pass nil to clear.
func (s *Store) SetFault(fn func(accountID int64) error) {
	if fn == nil {
		s.fault.Store(nil)
		return
	}
	s.fault.Store(&fn)
}

// PageCalls returns how many times Page has been called.
func (s *Store) PageCalls() int {
	return int(s.pageCalls.Load())
}

// Postings returns the postings recorded for an account.
func (s *Store) Postings(accountID int64) []model.Posting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Posting
	for _, p := range s.postings[accountID] {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Posting) int { return a.Date.Compare(b.Date) })
	return out
}

// Transitions returns every recorded lifecycle step in commit order.
func (s *Store) Transitions() []model.Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transitions)
}

// GetAccount returns an account by ID.
func (s *Store) GetAccount(_ context.Context, tenantID string, id int64) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok || (tenantID != "" && a.TenantID != tenantID) {
		return model.Account{}, fmt.Errorf("account %d: %w", id, model.ErrAccountNotFound)
	}
	return a, nil
}

// Page returns accounts matching the filter with ID > AfterID in ascending ID order.
func (s *Store) Page(ctx context.Context, req model.PageRequest) (model.Page, error) {
	s.pageCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return model.Page{}, model.StoreError("reading account page", err)
	}
	if req.Limit <= 0 {
		return model.Page{}, fmt.Errorf("page limit must be positive, got %d", req.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	var after []model.Account
	for _, a := range s.accounts {
		if !req.Filter.Matches(a) {
			continue
		}
		total++
		if a.ID > req.AfterID {
			after = append(after, a)
		}
	}
	slices.SortFunc(after, func(a, b model.Account) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	page := model.Page{TotalFilteredRecords: total}
	if len(after) > req.Limit {
		page.HasMore = true
		after = after[:req.Limit]
	}
	page.Items = after
	return page, nil
}

// LatestClosure returns the office's effective closure.
func (s *Store) LatestClosure(_ context.Context, tenantID string, officeID int64) (model.ClosureRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestClosureLocked(tenantID, officeID)
}

func (s *Store) latestClosureLocked(tenantID string, officeID int64) (model.ClosureRecord, bool, error) {
	var recs []model.ClosureRecord
	for _, c := range s.closures {
		if c.TenantID == tenantID {
			recs = append(recs, c)
		}
	}
	rec, ok := closure.Effective(recs, officeID)
	return rec, ok, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) accountLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.accountLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.accountLocks[id] = l
	}
	return l
}

func (s *Store) officeLock(tenantID string, officeID int64) *sync.RWMutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	k := officeKey{tenantID: tenantID, officeID: officeID}
	l, ok := s.officeLocks[k]
	if !ok {
		l = &sync.RWMutex{}
		s.officeLocks[k] = l
	}
	return l
}
