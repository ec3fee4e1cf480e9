package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/corebank-dev/corebatch/internal/model"
)

const closureColumns = `id, tenant_id, office_id, closing_date, is_deleted, comments, created_at`

// latestClosureQuery returns the effective closure: the latest non-deleted closing date,
// the lowest ID among equal dates.
const latestClosureQuery = `SELECT ` + closureColumns + ` FROM gl_closures
WHERE tenant_id = $1 AND office_id = $2 AND NOT is_deleted
ORDER BY closing_date DESC, id ASC
LIMIT 1`

const listClosuresQuery = `SELECT ` + closureColumns + ` FROM gl_closures
WHERE tenant_id = $1 AND office_id = $2
ORDER BY id`

const insertClosureQuery = `INSERT INTO gl_closures (tenant_id, office_id, closing_date, comments, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

const deleteClosureQuery = `UPDATE gl_closures SET is_deleted = TRUE WHERE id = $1 AND tenant_id = $2 AND office_id = $3`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanClosure(row rowScanner) (model.ClosureRecord, error) {
	var c model.ClosureRecord
	if err := row.Scan(&c.ID, &c.TenantID, &c.OfficeID, &c.ClosingDate, &c.Deleted, &c.Comments, &c.CreatedAt); err != nil {
		return model.ClosureRecord{}, err
	}
	c.ClosingDate = model.DateOf(c.ClosingDate)
	return c, nil
}

func latestClosure(ctx context.Context, q querier, tenantID string, officeID int64) (model.ClosureRecord, bool, error) {
	c, err := scanClosure(q.QueryRowContext(ctx, latestClosureQuery, tenantID, officeID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClosureRecord{}, false, nil
	}
	if err != nil {
		return model.ClosureRecord{}, false, model.StoreError("reading latest closure", err)
	}
	return c, true, nil
}

// LatestClosure returns the office's effective closure.
func (s *Store) LatestClosure(ctx context.Context, tenantID string, officeID int64) (model.ClosureRecord, bool, error) {
	return latestClosure(ctx, s.db, tenantID, officeID)
}
