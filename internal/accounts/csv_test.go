package accounts

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank-dev/corebatch/internal/model"
)

var asOf = model.Date(2024, 6, 1)

func TestRoundTrip(t *testing.T) {
	accounts := DemoAccounts("default", asOf)

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(accounts))
	for i := range accounts {
		assert.Equal(t, accounts[i].ID, got[i].ID)
		assert.Equal(t, accounts[i].OfficeID, got[i].OfficeID)
		assert.Equal(t, accounts[i].ProductID, got[i].ProductID)
		assert.Equal(t, accounts[i].Status, got[i].Status)
		assert.Equal(t, accounts[i].SubStatus, got[i].SubStatus)
		assert.Equal(t, accounts[i].LastActivityDate, got[i].LastActivityDate)
		assert.True(t, accounts[i].Balance.Equal(got[i].Balance), "account %d balance", accounts[i].ID)
	}
}

func TestMarshalAccount_CurrencyScale(t *testing.T) {
	row := MarshalAccount(model.Account{ID: 1, CurrencyCode: "JPY", Balance: decimal.RequireFromString("150000"), Status: model.StatusActive})
	assert.Equal(t, "150000", row[colBalance])
	row = MarshalAccount(model.Account{ID: 1, CurrencyCode: "KWD", Balance: decimal.RequireFromString("1.5"), Status: model.StatusActive})
	assert.Equal(t, "1.500", row[colBalance])
	assert.Empty(t, row[colProductID])
}

func TestUnmarshalAccount_Errors(t *testing.T) {
	valid := []string{"1", "default", "7", "", "ACTIVE", "", "2024-01-01", "USD", "10.00"}
	acct, err := UnmarshalAccount(valid)
	require.NoError(t, err)
	assert.Equal(t, model.SubStatusNone, acct.SubStatus)

	tests := []struct {
		name string
		col  int
		val  string
		want string
	}{
		{"bad id", colID, "x", "account_id"},
		{"bad office", colOfficeID, "", "office_id"},
		{"bad status", colStatus, "OPEN", "status"},
		{"bad sub-status", colSubStatus, "FROZEN", "sub_status"},
		{"bad date", colLastActivity, "01/02/2024", "last_activity_date"},
		{"bad balance", colBalance, "ten", "balance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := append([]string(nil), valid...)
			rec[tt.col] = tt.val
			_, err := UnmarshalAccount(rec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err = UnmarshalAccount(valid[:3])
	assert.Error(t, err)
}

func TestReadAccounts_RowNumberInError(t *testing.T) {
	in := strings.Join(header, ",") + "\n1,default,7,,ACTIVE,NONE,2024-01-01,USD,1.00\n2,default,7,,ACTIVE,NONE,bad,USD,1.00\n"
	_, err := ReadAccounts(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.csv")
	require.NoError(t, Save(path, DemoAccounts("default", asOf)))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, got, 6)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
