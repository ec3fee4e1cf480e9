package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/store"
)

const uniqueViolation = "23505"

const lockAccountQuery = getAccountQuery + ` FOR UPDATE`

// The office lock key hashes tenant and office so tenants never contend.
const (
	officeLockSharedQuery    = `SELECT pg_advisory_xact_lock_shared(hashtextextended($1 || ':' || $2::text, 0))`
	officeLockExclusiveQuery = `SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2::text, 0))`
)

const (
	hasPostingQuery    = `SELECT EXISTS (SELECT 1 FROM account_postings WHERE account_id = $1 AND reference = $2)`
	insertPostingQuery = `INSERT INTO account_postings (account_id, reference, posting_date, amount, balance_after)
VALUES ($1, $2, $3, $4, $5)`
	updateBalanceQuery = `UPDATE savings_accounts SET balance = $2, last_activity_date = $3 WHERE id = $1`
	insertHistoryQuery = `INSERT INTO account_sub_status_history (account_id, from_status, to_status, as_of_date)
VALUES ($1, $2, $3, $4)`
	updateSubStatusQuery = `UPDATE savings_accounts SET sub_status = $2 WHERE id = $1`
)

// WithAccountLock runs fn in a READ COMMITTED transaction holding the account row lock and
// the office closure lock in shared mode. fn's writes commit only when it returns nil.
func (s *Store) WithAccountLock(ctx context.Context, tenantID string, accountID int64, fn func(tx store.AccountTx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		a, err := scanAccount(tx.QueryRowContext(ctx, lockAccountQuery, accountID, tenantID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %d: %w", accountID, model.ErrAccountNotFound)
		}
		if err != nil {
			return model.StoreError(fmt.Sprintf("locking account %d", accountID), err)
		}
		if _, err := tx.ExecContext(ctx, officeLockSharedQuery, a.TenantID, a.OfficeID); err != nil {
			return model.StoreError(fmt.Sprintf("locking office %d", a.OfficeID), err)
		}
		return fn(&accountTx{tx: tx, account: a})
	})
}

// WithOfficeLock runs fn in a transaction holding the office closure lock exclusively,
// which waits for in-flight postings of the office to commit.
func (s *Store) WithOfficeLock(ctx context.Context, tenantID string, officeID int64, fn func(tx store.OfficeTx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, officeLockExclusiveQuery, tenantID, officeID); err != nil {
			return model.StoreError(fmt.Sprintf("locking office %d", officeID), err)
		}
		return fn(&officeTx{tx: tx, tenantID: tenantID, officeID: officeID})
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return model.StoreError("beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return model.StoreError("committing transaction", err)
	}
	return nil
}

type accountTx struct {
	tx      *sql.Tx
	account model.Account
}

func (t *accountTx) Account() model.Account { return t.account }

func (t *accountTx) LatestClosure(ctx context.Context, tenantID string, officeID int64) (model.ClosureRecord, bool, error) {
	return latestClosure(ctx, t.tx, tenantID, officeID)
}

func (t *accountTx) HasPosting(ctx context.Context, reference string) (bool, error) {
	var ok bool
	if err := t.tx.QueryRowContext(ctx, hasPostingQuery, t.account.ID, reference).Scan(&ok); err != nil {
		return false, model.StoreError("checking posting reference", err)
	}
	return ok, nil
}

func (t *accountTx) ApplyPosting(ctx context.Context, p model.Posting) error {
	if p.AccountID != t.account.ID {
		return fmt.Errorf("posting for account %d applied to account %d", p.AccountID, t.account.ID)
	}
	_, err := t.tx.ExecContext(ctx, insertPostingQuery, p.AccountID, p.Reference, p.Date, p.Amount, p.BalanceAfter)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("account %d reference %s: %w", p.AccountID, p.Reference, model.ErrDuplicatePosting)
	}
	if err != nil {
		return model.StoreError("inserting posting", err)
	}
	if _, err := t.tx.ExecContext(ctx, updateBalanceQuery, p.AccountID, p.BalanceAfter, p.Date); err != nil {
		return model.StoreError("updating balance", err)
	}
	t.account.Balance = p.BalanceAfter
	t.account.LastActivityDate = p.Date
	return nil
}

func (t *accountTx) ApplyTransitions(ctx context.Context, steps []model.Transition) error {
	if len(steps) == 0 {
		return nil
	}
	for _, st := range steps {
		if _, err := t.tx.ExecContext(ctx, insertHistoryQuery, st.AccountID, string(st.From), string(st.To), st.AsOf); err != nil {
			return model.StoreError("recording sub-status transition", err)
		}
	}
	final := steps[len(steps)-1].To
	if _, err := t.tx.ExecContext(ctx, updateSubStatusQuery, t.account.ID, string(final)); err != nil {
		return model.StoreError("updating sub-status", err)
	}
	t.account.SubStatus = final
	return nil
}

type officeTx struct {
	tx       *sql.Tx
	tenantID string
	officeID int64
}

func (t *officeTx) LatestClosure(ctx context.Context, tenantID string, officeID int64) (model.ClosureRecord, bool, error) {
	return latestClosure(ctx, t.tx, tenantID, officeID)
}

func (t *officeTx) ListClosures(ctx context.Context) ([]model.ClosureRecord, error) {
	rows, err := t.tx.QueryContext(ctx, listClosuresQuery, t.tenantID, t.officeID)
	if err != nil {
		return nil, model.StoreError("listing closures", err)
	}
	defer rows.Close()

	var out []model.ClosureRecord
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, model.StoreError("scanning closure", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, model.StoreError("listing closures", err)
	}
	return out, nil
}

func (t *officeTx) InsertClosure(ctx context.Context, rec model.ClosureRecord) (model.ClosureRecord, error) {
	if rec.OfficeID != t.officeID || rec.TenantID != t.tenantID {
		return model.ClosureRecord{}, fmt.Errorf("closure for office %d inserted under lock of office %d", rec.OfficeID, t.officeID)
	}
	err := t.tx.QueryRowContext(ctx, insertClosureQuery,
		rec.TenantID, rec.OfficeID, model.DateOf(rec.ClosingDate), rec.Comments, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return model.ClosureRecord{}, model.StoreError("inserting closure", err)
	}
	return rec, nil
}

func (t *officeTx) DeleteClosure(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, deleteClosureQuery, id, t.tenantID, t.officeID); err != nil {
		return model.StoreError("deleting closure", err)
	}
	return nil
}
