package provider

import "github.com/shopspring/decimal"

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
