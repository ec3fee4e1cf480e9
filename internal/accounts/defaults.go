package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank-dev/corebatch/internal/model"
)

// DemoAccounts returns a small population covering every dormancy stage as of asOf,
// spread over two offices.
func DemoAccounts(tenantID string, asOf time.Time) []model.Account {
	asOf = model.DateOf(asOf)
	idle := func(days int) time.Time { return asOf.AddDate(0, 0, -days) }
	bal := decimal.RequireFromString
	return []model.Account{
		{ID: 1001, TenantID: tenantID, OfficeID: 1, ProductID: 1, Status: model.StatusActive, SubStatus: model.SubStatusNone, LastActivityDate: idle(3), CurrencyCode: "USD", Balance: bal("2500.00")},
		{ID: 1002, TenantID: tenantID, OfficeID: 1, ProductID: 1, Status: model.StatusActive, SubStatus: model.SubStatusNone, LastActivityDate: idle(400), CurrencyCode: "USD", Balance: bal("180.25")},
		{ID: 1003, TenantID: tenantID, OfficeID: 1, ProductID: 1, Status: model.StatusActive, SubStatus: model.SubStatusInactive, LastActivityDate: idle(800), CurrencyCode: "USD", Balance: bal("42.10")},
		{ID: 1004, TenantID: tenantID, OfficeID: 2, ProductID: 2, Status: model.StatusActive, SubStatus: model.SubStatusDormant, LastActivityDate: idle(2000), CurrencyCode: "EUR", Balance: bal("9.99")},
		{ID: 1005, TenantID: tenantID, OfficeID: 2, ProductID: 2, Status: model.StatusActive, SubStatus: model.SubStatusNone, LastActivityDate: idle(15), CurrencyCode: "JPY", Balance: bal("150000")},
		{ID: 1006, TenantID: tenantID, OfficeID: 2, ProductID: 1, Status: model.StatusClosed, SubStatus: model.SubStatusNone, LastActivityDate: idle(900), CurrencyCode: "USD", Balance: bal("0.00")},
	}
}
