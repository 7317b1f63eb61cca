// Package stats computes the expense reports over an in-memory slice of
// expenses. The SQLite repository computes the same reports with window
// functions; this package is the reference used by the memory backend.
package stats

import (
	"cmp"
	"slices"
	"time"

	"expenses/internal/core"
)

type userKey struct {
	id   int64
	name string
}

type dayTotal struct {
	date  core.Date
	total core.Amount
}

type monthTotal struct {
	month core.Month
	total core.Amount
}

// TopDays keeps, for every user, the n calendar days with the highest
// total spend. Equal totals are ranked by earlier date first. Rows are
// ordered by user id, then total descending.
func TopDays(expenses []core.Expense, n int) []core.TopDayExpenditure {
	byUser := make(map[userKey]map[time.Time]core.Amount)
	for _, e := range expenses {
		k := userKey{e.UserID, e.UserName}
		days, ok := byUser[k]
		if !ok {
			days = make(map[time.Time]core.Amount)
			byUser[k] = days
		}
		days[e.Date.Time] = core.SumAmounts(days[e.Date.Time], e.Amount)
	}

	out := make([]core.TopDayExpenditure, 0)
	for _, k := range sortedUsers(byUser) {
		totals := make([]dayTotal, 0, len(byUser[k]))
		for day, total := range byUser[k] {
			totals = append(totals, dayTotal{date: core.Date{Time: day}, total: total})
		}
		slices.SortFunc(totals, func(a, b dayTotal) int {
			if c := b.total.Cmp(a.total.Decimal); c != 0 {
				return c
			}
			return a.date.Compare(b.date.Time)
		})
		for i, d := range totals {
			if i == n {
				break
			}
			out = append(out, core.TopDayExpenditure{
				UserID:      k.id,
				UserName:    k.name,
				Date:        d.date,
				TotalAmount: d.total,
				Rank:        i + 1,
			})
		}
	}
	return out
}

// MonthlyChanges pairs every month a user spent in with the previous month
// the user spent in, regardless of the gap between them. The earliest month
// of each user has no predecessor and is dropped. Rows are ordered by user
// id, then month descending.
func MonthlyChanges(expenses []core.Expense) []core.MonthlyPercentageChange {
	byUser := monthlyTotals(expenses, nil)

	out := make([]core.MonthlyPercentageChange, 0)
	for _, k := range sortedUsers(byUser) {
		months := sortedMonths(byUser[k])
		for i := len(months) - 1; i >= 1; i-- {
			cur, prev := months[i], months[i-1]
			out = append(out, core.MonthlyPercentageChange{
				UserID:             k.id,
				UserName:           k.name,
				CurrentMonth:       cur.month,
				CurrentMonthTotal:  cur.total,
				PreviousMonth:      prev.month,
				PreviousMonthTotal: prev.total,
				PercentageChange:   core.PercentageChange(cur.total, prev.total),
			})
		}
	}
	return out
}

// Predictions averages each user's non-zero totals over the three complete
// months before now. Users without spend in the window are omitted.
func Predictions(expenses []core.Expense, now time.Time) []core.ExpenditurePrediction {
	start, end := core.PredictionWindow(now)
	inWindow := func(e core.Expense) bool {
		return !e.Date.Before(start.Time) && e.Date.Before(end.Time)
	}
	byUser := monthlyTotals(expenses, inWindow)

	out := make([]core.ExpenditurePrediction, 0)
	for _, k := range sortedUsers(byUser) {
		totals := byUser[k]
		// month_1 is the most recent complete month.
		m1 := totals[end.AddMonths(-1).Time]
		m2 := totals[end.AddMonths(-2).Time]
		m3 := totals[end.AddMonths(-3).Time]
		if p, ok := core.NewPrediction(k.id, k.name, m1, m2, m3); ok {
			out = append(out, p)
		}
	}
	return out
}

// Compute builds all three reports.
func Compute(expenses []core.Expense, now time.Time) core.Statistics {
	return core.Statistics{
		TopDays:       TopDays(expenses, core.TopDaysPerUser),
		MonthlyChange: MonthlyChanges(expenses),
		Predictions:   Predictions(expenses, now),
	}
}

func monthlyTotals(expenses []core.Expense, keep func(core.Expense) bool) map[userKey]map[time.Time]core.Amount {
	byUser := make(map[userKey]map[time.Time]core.Amount)
	for _, e := range expenses {
		if keep != nil && !keep(e) {
			continue
		}
		k := userKey{e.UserID, e.UserName}
		months, ok := byUser[k]
		if !ok {
			months = make(map[time.Time]core.Amount)
			byUser[k] = months
		}
		m := e.Date.MonthStart().Time
		months[m] = core.SumAmounts(months[m], e.Amount)
	}
	return byUser
}

func sortedMonths(totals map[time.Time]core.Amount) []monthTotal {
	out := make([]monthTotal, 0, len(totals))
	for m, total := range totals {
		out = append(out, monthTotal{month: core.Month{Time: m}, total: total})
	}
	slices.SortFunc(out, func(a, b monthTotal) int {
		return a.month.Compare(b.month.Time)
	})
	return out
}

func sortedUsers[V any](m map[userKey]V) []userKey {
	keys := make([]userKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b userKey) int {
		return cmp.Compare(a.id, b.id)
	})
	return keys
}
