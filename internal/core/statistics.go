package core

import "time"

const (
	// TopDaysPerUser is how many highest-spending days are kept per user.
	TopDaysPerUser = 3
	// PredictionWindowMonths is the length of the trailing window used for predictions.
	PredictionWindowMonths = 3
)

type (
	TopDayExpenditure struct {
		UserID      int64  `json:"user_id"`
		UserName    string `json:"user_name"`
		Date        Date   `json:"date"`
		TotalAmount Amount `json:"total_amount"`
		Rank        int    `json:"rank"`
	}

	MonthlyPercentageChange struct {
		UserID             int64   `json:"user_id"`
		UserName           string  `json:"user_name"`
		CurrentMonth       Month   `json:"current_month"`
		CurrentMonthTotal  Amount  `json:"current_month_total"`
		PreviousMonth      Month   `json:"previous_month"`
		PreviousMonthTotal Amount  `json:"previous_month_total"`
		PercentageChange   Percent `json:"percentage_change"`
	}

	// ExpenditurePrediction holds the trailing monthly totals of a user,
	// Month1Total being the most recent complete month.
	ExpenditurePrediction struct {
		UserID             int64  `json:"user_id"`
		UserName           string `json:"user_name"`
		Month1Total        Amount `json:"month_1_total"`
		Month2Total        Amount `json:"month_2_total"`
		Month3Total        Amount `json:"month_3_total"`
		AverageSpending    Amount `json:"average_spending"`
		PredictedNextMonth Amount `json:"predicted_next_month"`
	}

	Statistics struct {
		TopDays       []TopDayExpenditure       `json:"topDaysExpenditure"`
		MonthlyChange []MonthlyPercentageChange `json:"monthlyPercentageChange"`
		Predictions   []ExpenditurePrediction   `json:"predictedExpenditure"`
	}
)

// PredictionWindow returns the half-open range [start, end) of the complete
// months preceding now.
func PredictionWindow(now time.Time) (start, end Month) {
	end = MonthOf(now)
	return end.AddMonths(-PredictionWindowMonths), end
}

// NewPrediction builds a prediction from the three trailing totals, most
// recent first. ok is false when all three are zero.
func NewPrediction(userID int64, userName string, m1, m2, m3 Amount) (ExpenditurePrediction, bool) {
	avg, ok := AverageOfNonZero(m1, m2, m3)
	if !ok {
		return ExpenditurePrediction{}, false
	}
	return ExpenditurePrediction{
		UserID:             userID,
		UserName:           userName,
		Month1Total:        m1,
		Month2Total:        m2,
		Month3Total:        m3,
		AverageSpending:    avg,
		PredictedNextMonth: avg,
	}, true
}
