package posting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank-dev/corebatch/internal/model"
)

const daysInYear = 365

// SimpleDailyInterest accrues one day of simple interest at annualRate on the current balance.
// Non-positive balances accrue nothing. Rate formulas beyond this are out of scope.
func SimpleDailyInterest(annualRate decimal.Decimal) AmountFunc {
	perDay := annualRate.Div(decimal.NewFromInt(daysInYear))
	return func(a model.Account, _ time.Time) decimal.Decimal {
		if !a.Balance.IsPositive() {
			return decimal.Zero
		}
		return a.Balance.Mul(perDay)
	}
}
