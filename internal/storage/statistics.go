package storage

import (
	"context"
	"fmt"
	"time"

	"expenses/internal/core"
)

// Daily totals per user ranked with ROW_NUMBER; equal totals go to the earlier date.
const topDaysQuery = `
WITH daily_totals AS (
    SELECT e.user_id, u.name AS user_name, e.date, SUM(e.amount_cents) AS total_cents
    FROM expenses e
    JOIN users u ON e.user_id = u.id
    GROUP BY e.user_id, u.name, e.date
),
ranked_days AS (
    SELECT user_id, user_name, date, total_cents,
           ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY total_cents DESC, date ASC) AS day_rank
    FROM daily_totals
)
SELECT user_id, user_name, date, total_cents, day_rank
FROM ranked_days
WHERE day_rank <= ?
ORDER BY user_id, total_cents DESC, date ASC`

// Each month paired with the user's previous month with spend via LAG.
const monthlyChangeQuery = `
WITH monthly_totals AS (
    SELECT e.user_id, u.name AS user_name, substr(e.date, 1, 7) AS month,
           SUM(e.amount_cents) AS total_cents
    FROM expenses e
    JOIN users u ON e.user_id = u.id
    GROUP BY e.user_id, u.name, substr(e.date, 1, 7)
),
paired AS (
    SELECT user_id, user_name, month, total_cents,
           LAG(month) OVER w AS previous_month,
           LAG(total_cents) OVER w AS previous_cents
    FROM monthly_totals
    WINDOW w AS (PARTITION BY user_id ORDER BY month)
)
SELECT user_id, user_name, month, total_cents, previous_month, previous_cents
FROM paired
WHERE previous_month IS NOT NULL
ORDER BY user_id, month DESC`

// Trailing window pivoted into month_1 (most recent) .. month_3.
const predictionQuery = `
WITH monthly_totals AS (
    SELECT e.user_id, u.name AS user_name, substr(e.date, 1, 7) AS month,
           SUM(e.amount_cents) AS total_cents
    FROM expenses e
    JOIN users u ON e.user_id = u.id
    WHERE e.date >= ? AND e.date < ?
    GROUP BY e.user_id, u.name, substr(e.date, 1, 7)
)
SELECT user_id, user_name,
       COALESCE(SUM(CASE WHEN month = ? THEN total_cents END), 0) AS month_1,
       COALESCE(SUM(CASE WHEN month = ? THEN total_cents END), 0) AS month_2,
       COALESCE(SUM(CASE WHEN month = ? THEN total_cents END), 0) AS month_3
FROM monthly_totals
GROUP BY user_id, user_name
HAVING SUM(total_cents) > 0
ORDER BY user_id`

func (r *SQLiteRepository) TopDays(ctx context.Context, perUser int) ([]core.TopDayExpenditure, error) {
	rows, err := r.db.QueryContext(ctx, topDaysQuery, perUser)
	if err != nil {
		return nil, fmt.Errorf("query top days: %w", err)
	}
	defer rows.Close()

	out := make([]core.TopDayExpenditure, 0)
	for rows.Next() {
		var (
			row   core.TopDayExpenditure
			date  string
			cents int64
		)
		if err := rows.Scan(&row.UserID, &row.UserName, &date, &cents, &row.Rank); err != nil {
			return nil, fmt.Errorf("scan top day: %w", err)
		}
		if row.Date, err = core.ParseDate(date); err != nil {
			return nil, err
		}
		row.TotalAmount = core.NewAmountFromCents(cents)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top days: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MonthlyChanges(ctx context.Context) ([]core.MonthlyPercentageChange, error) {
	rows, err := r.db.QueryContext(ctx, monthlyChangeQuery)
	if err != nil {
		return nil, fmt.Errorf("query monthly change: %w", err)
	}
	defer rows.Close()

	out := make([]core.MonthlyPercentageChange, 0)
	for rows.Next() {
		var (
			row              core.MonthlyPercentageChange
			month, prevMonth string
			cents, prevCents int64
		)
		if err := rows.Scan(&row.UserID, &row.UserName, &month, &cents, &prevMonth, &prevCents); err != nil {
			return nil, fmt.Errorf("scan monthly change: %w", err)
		}
		if row.CurrentMonth, err = core.ParseMonth(month); err != nil {
			return nil, err
		}
		if row.PreviousMonth, err = core.ParseMonth(prevMonth); err != nil {
			return nil, err
		}
		row.CurrentMonthTotal = core.NewAmountFromCents(cents)
		row.PreviousMonthTotal = core.NewAmountFromCents(prevCents)
		row.PercentageChange = core.PercentageChange(row.CurrentMonthTotal, row.PreviousMonthTotal)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly change: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Predictions(ctx context.Context, now time.Time) ([]core.ExpenditurePrediction, error) {
	start, end := core.PredictionWindow(now)
	rows, err := r.db.QueryContext(ctx, predictionQuery,
		start.Format(core.DateLayout), end.Format(core.DateLayout),
		end.AddMonths(-1).String(), end.AddMonths(-2).String(), end.AddMonths(-3).String())
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	out := make([]core.ExpenditurePrediction, 0)
	for rows.Next() {
		var (
			userID     int64
			userName   string
			m1, m2, m3 int64
		)
		if err := rows.Scan(&userID, &userName, &m1, &m2, &m3); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		p, ok := core.NewPrediction(userID, userName,
			core.NewAmountFromCents(m1), core.NewAmountFromCents(m2), core.NewAmountFromCents(m3))
		if ok {
			out = append(out, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}
