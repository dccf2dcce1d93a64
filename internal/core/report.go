package core

import (
	"sort"
	"time"
)

// ForecastWindow is the number of trailing calendar months the spend
// forecast looks at.
const ForecastWindow = 6

// UncategorizedName labels the synthetic bucket for transactions without a
// category reference.
const UncategorizedName = "Uncategorized"

type (
	// MonthlyAggregate sums one calendar month of ledger activity.
	MonthlyAggregate struct {
		Month   string // "2006-01"
		Income  Money
		Expense Money
		Net     Money
	}

	// CategorySeries pairs a category with its monthly aggregates, aligned
	// to the same month keys as the global series (zero-filled months
	// included).
	CategorySeries struct {
		CategoryID int64
		Name       string
		Months     []MonthlyAggregate
	}

	// CategoryMonth is one slot of a year's per-category breakdown.
	CategoryMonth struct {
		Income  Money
		Expense Money
	}

	// CategoryTotals sums one category's activity for a single year, with a
	// January-to-December breakdown.
	CategoryTotals struct {
		CategoryID int64
		Name       string
		Income     Money
		Expense    Money
		Net        Money
		Months     [12]CategoryMonth
	}

	// SpendForecast estimates the next month's total expenses from the
	// trailing window of monthly totals.
	SpendForecast struct {
		Months    []MonthlyAggregate // trailing window, oldest first
		Average   Money
		LastMonth Money
		Projected Money
	}
)

// MonthlySeries reduces transactions into per-month income/expense/net
// totals, sorted ascending by month key. Transactions with a zero date are
// skipped rather than failing the reduction. The scan is order-independent.
func MonthlySeries(txs []Transaction) []MonthlyAggregate {
	buckets := make(map[string]*MonthlyAggregate)
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		key := tx.Date.MonthKey()
		agg, ok := buckets[key]
		if !ok {
			agg = &MonthlyAggregate{Month: key}
			buckets[key] = agg
		}
		addToBucket(agg, tx)
	}

	series := make([]MonthlyAggregate, 0, len(buckets))
	for _, agg := range buckets {
		agg.Net = agg.Income.Sub(agg.Expense)
		series = append(series, *agg)
	}
	// Zero-padded keys sort lexicographically in date order.
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })
	return series
}

// CategoryMonthlySeries reduces transactions into one series per category
// present in the input, plus an uncategorized bucket for transactions with
// no category reference. Every series spans exactly the month keys of the
// global monthly series; months without activity for a category report zero.
// Grouping is keyed by category id; the name is display metadata only.
func CategoryMonthlySeries(txs []Transaction) []CategorySeries {
	global := MonthlySeries(txs)
	monthIndex := make(map[string]int, len(global))
	for i, m := range global {
		monthIndex[m.Month] = i
	}

	type catBucket struct {
		name   string
		months []MonthlyAggregate
	}
	cats := make(map[int64]*catBucket)

	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		bucket, ok := cats[tx.CategoryID]
		if !ok {
			name := tx.CategoryName
			if tx.CategoryID == 0 || name == "" {
				name = UncategorizedName
			}
			bucket = &catBucket{name: name, months: make([]MonthlyAggregate, len(global))}
			for i, m := range global {
				bucket.months[i].Month = m.Month
			}
			cats[tx.CategoryID] = bucket
		}
		addToBucket(&bucket.months[monthIndex[tx.Date.MonthKey()]], tx)
	}

	series := make([]CategorySeries, 0, len(cats))
	for id, bucket := range cats {
		for i := range bucket.months {
			bucket.months[i].Net = bucket.months[i].Income.Sub(bucket.months[i].Expense)
		}
		series = append(series, CategorySeries{CategoryID: id, Name: bucket.name, Months: bucket.months})
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Name != series[j].Name {
			return series[i].Name < series[j].Name
		}
		return series[i].CategoryID < series[j].CategoryID
	})
	return series
}

// CategoryTotalsForYear reduces one calendar year of transactions into
// per-category totals with a month-indexed (0-11) breakdown. Transactions
// outside the year or without a date are ignored.
func CategoryTotalsForYear(txs []Transaction, year int) []CategoryTotals {
	totals := make(map[int64]*CategoryTotals)
	for _, tx := range txs {
		if tx.Date.IsZero() || tx.Date.Year() != year {
			continue
		}
		ct, ok := totals[tx.CategoryID]
		if !ok {
			name := tx.CategoryName
			if tx.CategoryID == 0 || name == "" {
				name = UncategorizedName
			}
			ct = &CategoryTotals{CategoryID: tx.CategoryID, Name: name}
			totals[tx.CategoryID] = ct
		}
		monthIdx := int(tx.Date.Month()) - 1
		switch tx.Type {
		case Income:
			ct.Income = ct.Income.Add(tx.Amount)
			ct.Months[monthIdx].Income = ct.Months[monthIdx].Income.Add(tx.Amount)
		case Expense:
			ct.Expense = ct.Expense.Add(tx.Amount)
			ct.Months[monthIdx].Expense = ct.Months[monthIdx].Expense.Add(tx.Amount)
		}
	}

	out := make([]CategoryTotals, 0, len(totals))
	for _, ct := range totals {
		ct.Net = ct.Income.Sub(ct.Expense)
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// AvailableYears returns the distinct calendar years present in the
// transactions, sorted descending. An empty ledger yields the current year
// so callers always have at least one selectable year.
func AvailableYears(txs []Transaction, now time.Time) []int {
	seen := make(map[int]bool)
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		seen[tx.Date.Year()] = true
	}
	if len(seen) == 0 {
		return []int{now.Year()}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// ForecastSpend estimates next month's total expenses from the trailing
// ForecastWindow calendar months ending with the month of now. The estimate
// is the window average pulled halfway toward the most recent month's total,
// so a recent jump or drop moves the projection without dominating it.
func ForecastSpend(txs []Transaction, now time.Time) SpendForecast {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	window := make([]MonthlyAggregate, ForecastWindow)
	index := make(map[string]int, ForecastWindow)
	for i := 0; i < ForecastWindow; i++ {
		month := current.AddDate(0, i-ForecastWindow+1, 0)
		key := month.Format("2006-01")
		window[i] = MonthlyAggregate{Month: key}
		index[key] = i
	}

	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		i, ok := index[tx.Date.MonthKey()]
		if !ok {
			continue
		}
		addToBucket(&window[i], tx)
	}

	var total int64
	for i := range window {
		window[i].Net = window[i].Income.Sub(window[i].Expense)
		total += window[i].Expense.Cents
	}

	avg := total / ForecastWindow
	last := window[ForecastWindow-1].Expense.Cents
	return SpendForecast{
		Months:    window,
		Average:   Money{Cents: avg},
		LastMonth: Money{Cents: last},
		Projected: Money{Cents: (avg + last) / 2},
	}
}

func addToBucket(agg *MonthlyAggregate, tx Transaction) {
	switch tx.Type {
	case Income:
		agg.Income = agg.Income.Add(tx.Amount)
	case Expense:
		agg.Expense = agg.Expense.Add(tx.Amount)
	}
}
