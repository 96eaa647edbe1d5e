package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of fractional digits monetary amounts are persisted with.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero to MoneyPlaces.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyPlaces)
}

// MoneyFromFloat converts a stored float amount into a decimal rounded to MoneyPlaces.
func MoneyFromFloat(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value).Round(MoneyPlaces)
}

// MoneyToFloat converts a decimal amount into the float representation used by the store and JSON payloads.
func MoneyToFloat(amount decimal.Decimal) float64 {
	return amount.Round(MoneyPlaces).InexactFloat64()
}
