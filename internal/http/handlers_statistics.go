package http

import (
	"net/http"

	"expenses/internal/log"
)

func (s *Server) handleTopDays(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statistics.TopDays(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch top days expenditure", log.OpReport)
		return
	}
	Success("Top 3 days expenditure for each user fetched successfully", rows).Write(w)
}

func (s *Server) handleMonthlyChange(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statistics.MonthlyChanges(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch monthly percentage change", log.OpReport)
		return
	}
	Success("Monthly percentage change for each user fetched successfully", rows).Write(w)
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statistics.Predictions(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch predicted expenditure", log.OpReport)
		return
	}
	Success("Predicted expenditure for next month fetched successfully", rows).Write(w)
}

// handleAllStatistics returns the three reports in one payload.
func (s *Server) handleAllStatistics(w http.ResponseWriter, r *http.Request) {
	all, err := s.statistics.All(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch statistics", log.OpReport)
		return
	}
	Success("All statistics fetched successfully", all).Write(w)
}
