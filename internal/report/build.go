// Package report turns the merged ledger into monthly summaries.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bills/internal/core"
	"bills/internal/ledger"
)

// Options controls the report window and list sizes.
type Options struct {
	// MonthsBack is the number of months shown, including the current one.
	MonthsBack int
	// TopMerchants limits the per-month merchant list.
	TopMerchants int
	// BigTop limits the per-month list of large expenses.
	BigTop int
	// BigMin is the smallest amount listed as a large expense; zero lists all.
	BigMin core.Money
	// Currency prefixes rendered amounts.
	Currency string
}

// DefaultOptions returns the values used when the environment sets none.
func DefaultOptions() Options {
	return Options{
		MonthsBack:   3,
		TopMerchants: 10,
		BigTop:       10,
		Currency:     "¥",
	}
}

// Totals aggregates a set of records.
type Totals struct {
	Expense core.Money
	Income  core.Money
	Net     core.Money
	Count   int
}

// Report is the renderer-independent result of Build.
type Report struct {
	GeneratedAt time.Time
	Options     Options

	// First and Last bound the dates of the whole ledger.
	First   time.Time
	Last    time.Time
	Records int

	// Months lists the window newest first; months without rows are omitted.
	Months []core.MonthOverview
	Window Totals
}

// Empty reports whether no month in the window has rows.
func (r Report) Empty() bool {
	return len(r.Months) == 0
}

// Generate reads the ledger at path and builds the report.
func Generate(path string, now time.Time, opts Options) (Report, error) {
	records, err := ledger.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load ledger: %w", err)
	}
	return Build(records, now, opts), nil
}

type monthKey struct {
	year  int
	month time.Month
}

// Build summarizes records for the trailing opts.MonthsBack months ending
// with the month of now.
func Build(records []core.Transaction, now time.Time, opts Options) Report {
	if opts.MonthsBack < 1 {
		opts.MonthsBack = 1
	}

	rep := Report{
		GeneratedAt: now,
		Options:     opts,
		Records:     len(records),
	}

	window := make(map[monthKey]int, opts.MonthsBack)
	keys := make([]monthKey, 0, opts.MonthsBack)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < opts.MonthsBack; i++ {
		m := start.AddDate(0, -i, 0)
		k := monthKey{m.Year(), m.Month()}
		window[k] = i
		keys = append(keys, k)
	}

	buckets := make([][]core.Transaction, len(keys))
	for _, r := range records {
		if rep.First.IsZero() || r.Date.Before(rep.First) {
			rep.First = r.Date
		}
		if r.Date.After(rep.Last) {
			rep.Last = r.Date
		}
		if i, ok := window[monthKey{r.Date.Year(), r.Date.Month()}]; ok {
			buckets[i] = append(buckets[i], r)
		}
	}

	for i, k := range keys {
		if len(buckets[i]) == 0 {
			continue
		}
		m := summarize(k, buckets[i], opts)
		rep.Months = append(rep.Months, m)
		rep.Window.Expense = rep.Window.Expense.Add(m.Expense)
		rep.Window.Income = rep.Window.Income.Add(m.Income)
		rep.Window.Count += len(buckets[i])
	}
	rep.Window.Net = rep.Window.Income.Sub(rep.Window.Expense)
	return rep
}

func summarize(k monthKey, records []core.Transaction, opts Options) core.MonthOverview {
	m := core.MonthOverview{Year: k.year, Month: int(k.month)}

	byCategory := make(map[string]core.Money)
	byMerchant := make(map[string]*core.MerchantAmount)
	var large []core.Transaction

	for _, r := range records {
		switch r.Type {
		case core.Income:
			m.Income = m.Income.Add(r.Amount)
		case core.Expense:
			m.Expense = m.Expense.Add(r.Amount)

			cat := strings.TrimSpace(r.Category)
			if cat == "" {
				cat = core.Uncategorized
			}
			byCategory[cat] = byCategory[cat].Add(r.Amount)

			ma, ok := byMerchant[r.Merchant]
			if !ok {
				ma = &core.MerchantAmount{Merchant: r.Merchant}
				byMerchant[r.Merchant] = ma
			}
			ma.Amount = ma.Amount.Add(r.Amount)
			ma.Count++

			if r.Amount.Cents >= opts.BigMin.Cents {
				large = append(large, r)
			}
		}
	}
	m.Net = m.Income.Sub(m.Expense)

	for name, amount := range byCategory {
		m.ByCategory = append(m.ByCategory, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(m.ByCategory, func(i, j int) bool {
		a, b := m.ByCategory[i], m.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})

	for _, ma := range byMerchant {
		m.Merchants = append(m.Merchants, *ma)
	}
	sort.Slice(m.Merchants, func(i, j int) bool {
		a, b := m.Merchants[i], m.Merchants[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Merchant < b.Merchant
	})
	if opts.TopMerchants >= 0 && len(m.Merchants) > opts.TopMerchants {
		m.Merchants = m.Merchants[:opts.TopMerchants]
	}

	// records arrive in ledger order, so equal amounts stay oldest first
	sort.SliceStable(large, func(i, j int) bool {
		return large[i].Amount.Cents > large[j].Amount.Cents
	})
	if opts.BigTop >= 0 && len(large) > opts.BigTop {
		large = large[:opts.BigTop]
	}
	m.Large = large
	return m
}
