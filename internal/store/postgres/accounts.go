package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/corebank-dev/corebatch/internal/model"
)

const accountColumns = `id, tenant_id, office_id, product_id, status, sub_status, last_activity_date, currency_code, balance`

// filterClause is shared by the count and page queries; $1..$4 bind the model.Filter.
const filterClause = `
WHERE ($1 = '' OR tenant_id = $1)
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR sub_status <> $3)
  AND ($4::date IS NULL OR last_activity_date <= $4::date)`

const countAccountsQuery = `SELECT COUNT(*) FROM savings_accounts` + filterClause

const pageAccountsQuery = `SELECT ` + accountColumns + ` FROM savings_accounts` + filterClause + `
  AND id > $5
ORDER BY id
LIMIT $6`

const getAccountQuery = `SELECT ` + accountColumns + ` FROM savings_accounts WHERE id = $1 AND ($2 = '' OR tenant_id = $2)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var a model.Account
	var status, sub string
	if err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.OfficeID,
		&a.ProductID,
		&status,
		&sub,
		&a.LastActivityDate,
		&a.CurrencyCode,
		&a.Balance,
	); err != nil {
		return model.Account{}, err
	}
	a.Status = model.AccountStatus(status)
	a.SubStatus = model.SubStatus(sub)
	a.LastActivityDate = model.DateOf(a.LastActivityDate)
	return a, nil
}

func filterArgs(f model.Filter) []any {
	cutoff := sql.NullTime{}
	if !f.InactiveOnOrBefore.IsZero() {
		cutoff = sql.NullTime{Time: model.DateOf(f.InactiveOnOrBefore), Valid: true}
	}
	return []any{f.TenantID, string(f.Status), string(f.ExcludeSubStatus), cutoff}
}

// Page returns up to req.Limit accounts with ID > req.AfterID in ID order. One extra row is
// read to decide HasMore.
func (s *Store) Page(ctx context.Context, req model.PageRequest) (model.Page, error) {
	if req.Limit <= 0 {
		return model.Page{}, fmt.Errorf("page limit must be positive, got %d", req.Limit)
	}
	args := filterArgs(req.Filter)

	var page model.Page
	if err := s.db.QueryRowContext(ctx, countAccountsQuery, args...).Scan(&page.TotalFilteredRecords); err != nil {
		return model.Page{}, model.StoreError("counting accounts", err)
	}

	rows, err := s.db.QueryContext(ctx, pageAccountsQuery, append(args, req.AfterID, req.Limit+1)...)
	if err != nil {
		return model.Page{}, model.StoreError("reading account page", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return model.Page{}, model.StoreError("scanning account", err)
		}
		page.Items = append(page.Items, a)
	}
	if err := rows.Err(); err != nil {
		return model.Page{}, model.StoreError("reading account page", err)
	}

	if len(page.Items) > req.Limit {
		page.HasMore = true
		page.Items = page.Items[:req.Limit]
	}
	return page, nil
}

// GetAccount returns an account by ID.
func (s *Store) GetAccount(ctx context.Context, tenantID string, id int64) (model.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, getAccountQuery, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %d: %w", id, model.ErrAccountNotFound)
	}
	if err != nil {
		return model.Account{}, model.StoreError("reading account", err)
	}
	return a, nil
}
