package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

const defaultScale = 2

// ISO 4217 minor units for currencies that do not use two decimals.
var currencyScales = map[string]int32{
	"BHD": 3,
	"IQD": 3,
	"JOD": 3,
	"KWD": 3,
	"LYD": 3,
	"OMR": 3,
	"TND": 3,
	"BIF": 0,
	"CLP": 0,
	"GNF": 0,
	"ISK": 0,
	"JPY": 0,
	"KRW": 0,
	"PYG": 0,
	"RWF": 0,
	"UGX": 0,
	"VND": 0,
	"XAF": 0,
	"XOF": 0,
}

// CurrencyScale returns the fixed number of decimal places for a currency code.
func CurrencyScale(code string) int32 {
	if s, ok := currencyScales[strings.ToUpper(code)]; ok {
		return s
	}
	return defaultScale
}

// RoundToCurrency rounds an amount to the currency's scale using banker's rounding.
func RoundToCurrency(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.RoundBank(CurrencyScale(code))
}
