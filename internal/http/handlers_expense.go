package http

import (
	"net/http"

	"expenses/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, page, err := ParseExpenseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch expenses", log.OpList)
		return
	}

	result, err := s.expenses.ListExpenses(r.Context(), filter, page)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch expenses", log.OpList)
		return
	}

	Success("Expenses fetched successfully", result.Expenses).
		Pagination(result.Pagination).
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseExpenseID(r)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch expense", log.OpRead)
		return
	}

	e, err := s.expenses.GetExpense(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch expense", log.OpRead)
		return
	}

	Success("Expense fetched successfully", e).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ne, err := ParseNewExpense(w, r)
	if err != nil {
		s.writeError(w, r, err, "Failed to create expense", log.OpCreate)
		return
	}

	e, err := s.expenses.CreateExpense(r.Context(), ne)
	if err != nil {
		s.writeError(w, r, err, "Failed to create expense", log.OpCreate)
		return
	}

	s.logger.InfoContext(r.Context(), "Expense created successfully",
		log.NewFields().WithComponent(log.ComponentExpense).WithOperation(log.OpCreate).WithExpense(e).ToSlice()...)

	Success("Expense created successfully", e).Status(http.StatusCreated).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseExpenseID(r)
	if err != nil {
		s.writeError(w, r, err, "Failed to update expense", log.OpUpdate)
		return
	}

	patch, err := ParseExpensePatch(w, r)
	if err != nil {
		s.writeError(w, r, err, "Failed to update expense", log.OpUpdate)
		return
	}

	e, err := s.expenses.UpdateExpense(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err, "Failed to update expense", log.OpUpdate)
		return
	}

	s.logger.InfoContext(r.Context(), "Expense updated successfully",
		log.NewFields().WithComponent(log.ComponentExpense).WithOperation(log.OpUpdate).WithExpense(e).ToSlice()...)

	Success("Expense updated successfully", e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseExpenseID(r)
	if err != nil {
		s.writeError(w, r, err, "Failed to delete expense", log.OpDelete)
		return
	}

	e, err := s.expenses.DeleteExpense(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "Failed to delete expense", log.OpDelete)
		return
	}

	s.logger.InfoContext(r.Context(), "Expense deleted successfully",
		log.NewFields().WithComponent(log.ComponentExpense).WithOperation(log.OpDelete).WithExpense(e).ToSlice()...)

	Success("Expense deleted successfully", e).Write(w)
}
