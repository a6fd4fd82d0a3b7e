package core

import "time"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MerchantAmount represents expense spending aggregated by merchant.
type MerchantAmount struct {
	Merchant string
	Amount   Money
	Count    int
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Expense    Money
	Income     Money
	Net        Money // Income - Expense, may be negative
	ByCategory []CategoryAmount
	Merchants  []MerchantAmount
	Large      []Transaction
}

// Label returns the month as YYYY-MM.
func (m MonthOverview) Label() string {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
