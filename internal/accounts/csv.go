// Package accounts reads and writes savings-account seed files used to populate the
// in-memory store.
package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/corebank-dev/corebatch/internal/model"
)

const (
	numFields       = 9
	colID           = 0
	colTenantID     = 1
	colOfficeID     = 2
	colProductID    = 3
	colStatus       = 4
	colSubStatus    = 5
	colLastActivity = 6
	colCurrency     = 7
	colBalance      = 8
)

var header = []string{"account_id", "tenant_id", "office_id", "product_id", "status", "sub_status", "last_activity_date", "currency_code", "balance"}

// ReadAccounts reads a savings-account CSV.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a savings-account CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = strconv.FormatInt(acct.ID, 10)
	row[colTenantID] = acct.TenantID
	row[colOfficeID] = strconv.FormatInt(acct.OfficeID, 10)
	if acct.ProductID != 0 {
		row[colProductID] = strconv.FormatInt(acct.ProductID, 10)
	}
	row[colStatus] = string(acct.Status)
	row[colSubStatus] = string(acct.SubStatus)
	row[colLastActivity] = model.FormatDate(acct.LastActivityDate)
	row[colCurrency] = acct.CurrencyCode
	row[colBalance] = acct.Balance.StringFixed(model.CurrencyScale(acct.CurrencyCode))
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id, err := strconv.ParseInt(record[colID], 10, 64)
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing account_id %q: %w", record[colID], err)
	}
	officeID, err := strconv.ParseInt(record[colOfficeID], 10, 64)
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing office_id %q: %w", record[colOfficeID], err)
	}
	var productID int64
	if record[colProductID] != "" {
		productID, err = strconv.ParseInt(record[colProductID], 10, 64)
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing product_id %q: %w", record[colProductID], err)
		}
	}
	status := model.AccountStatus(record[colStatus])
	if !status.IsValid() {
		return model.Account{}, fmt.Errorf("unknown status %q", record[colStatus])
	}
	sub := model.SubStatus(record[colSubStatus])
	if sub == "" {
		sub = model.SubStatusNone
	}
	if sub.Rank() < 0 {
		return model.Account{}, fmt.Errorf("unknown sub_status %q", record[colSubStatus])
	}
	lastActivity, err := model.ParseDate(record[colLastActivity])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing last_activity_date %q: %w", record[colLastActivity], err)
	}
	balance, err := decimal.NewFromString(record[colBalance])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing balance %q: %w", record[colBalance], err)
	}

	return model.Account{
		ID:               id,
		TenantID:         record[colTenantID],
		OfficeID:         officeID,
		ProductID:        productID,
		Status:           status,
		SubStatus:        sub,
		LastActivityDate: lastActivity,
		CurrencyCode:     record[colCurrency],
		Balance:          balance,
	}, nil
}
