// Package storetest holds the behavioural test suite every backend.Store
// implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"expenses/internal/backend"
	"expenses/internal/core"
)

// StoreSuite runs against a fresh store per test. Open must return an empty
// store with the default categories.
type StoreSuite struct {
	suite.Suite
	Open func(t *testing.T) backend.Store

	ctx    context.Context
	store  backend.Store
	ann    core.User
	bob    core.User
	food   core.Category
	travel core.Category
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.Open(s.T())

	var err error
	s.ann, err = s.store.CreateUser(s.ctx, core.NewUser{Name: "Ann", Email: "ann@example.com"})
	s.Require().NoError(err)
	s.bob, err = s.store.CreateUser(s.ctx, core.NewUser{Name: "Bob", Email: "bob@example.com", Status: core.StatusInactive})
	s.Require().NoError(err)

	cats, err := s.store.ListCategories(s.ctx)
	s.Require().NoError(err)
	for _, c := range cats {
		switch c.Name {
		case "Food & Dining":
			s.food = c
		case "Travel":
			s.travel = c
		}
	}
	s.Require().NotZero(s.food.ID)
	s.Require().NotZero(s.travel.ID)
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *StoreSuite) add(user core.User, date, amount string) core.Expense {
	d, err := core.ParseDate(date)
	s.Require().NoError(err)
	e, err := s.store.CreateExpense(s.ctx, core.NewExpense{
		UserID:     user.ID,
		CategoryID: s.food.ID,
		Amount:     core.MustAmount(amount),
		Date:       d,
	})
	s.Require().NoError(err)
	return e
}

func (s *StoreSuite) count(f core.ExpenseFilter) int64 {
	page, err := s.store.ListExpenses(s.ctx, f, core.NewPageRequest(1, core.MaxLimit))
	s.Require().NoError(err)
	return page.Pagination.Total
}

func (s *StoreSuite) TestUsers() {
	all, err := s.store.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("Ann", all[0].Name)
	s.Equal(core.StatusActive, all[0].Status)

	active, err := s.store.ListActiveUsers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(s.ann.ID, active[0].ID)

	_, err = s.store.CreateUser(s.ctx, core.NewUser{Name: "Ann Again", Email: "ann@example.com"})
	s.ErrorIs(err, core.ErrEmailTaken)
}

func (s *StoreSuite) TestCategoriesSortedByName() {
	cats, err := s.store.ListCategories(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(cats, 10)
	s.Equal("Bills & Utilities", cats[0].Name)
	s.Equal("Travel", cats[len(cats)-1].Name)
}

func (s *StoreSuite) TestCreateExpense() {
	desc := "Dinner"
	created, err := s.store.CreateExpense(s.ctx, core.NewExpense{
		UserID:      s.ann.ID,
		CategoryID:  s.travel.ID,
		Amount:      core.MustAmount("250.5"),
		Date:        core.NewDate(2024, time.January, 10),
		Description: &desc,
	})
	s.Require().NoError(err)

	s.NotZero(created.ID)
	s.Equal("Ann", created.UserName)
	s.Equal("Travel", created.CategoryName)
	s.Equal("250.50", created.Amount.String())
	s.Equal("2024-01-10", created.Date.String())
	s.Require().NotNil(created.Description)
	s.Equal("Dinner", *created.Description)
	s.False(created.CreatedAt.IsZero())

	got, err := s.store.GetExpense(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal(created.Amount.String(), got.Amount.String())
}

func (s *StoreSuite) TestCreateExpenseUnknownReferences() {
	_, err := s.store.CreateExpense(s.ctx, core.NewExpense{
		UserID: 999, CategoryID: s.food.ID, Amount: core.MustAmount("1"), Date: core.NewDate(2024, 1, 1),
	})
	s.ErrorIs(err, core.ErrUserNotFound)

	_, err = s.store.CreateExpense(s.ctx, core.NewExpense{
		UserID: s.ann.ID, CategoryID: 999, Amount: core.MustAmount("1"), Date: core.NewDate(2024, 1, 1),
	})
	s.ErrorIs(err, core.ErrCategoryNotFound)

	s.Zero(s.count(core.ExpenseFilter{}), "failed creates must not insert")
}

func (s *StoreSuite) TestUpdateExpense() {
	e := s.add(s.ann, "2024-01-10", "100")

	amount := core.MustAmount("120.25")
	updated, err := s.store.UpdateExpense(s.ctx, e.ID, core.ExpensePatch{Amount: &amount})
	s.Require().NoError(err)
	s.Equal("120.25", updated.Amount.String())
	s.Equal(e.Date.String(), updated.Date.String())
	s.Equal(e.UserID, updated.UserID)
	s.Nil(updated.Description)
	s.False(updated.UpdatedAt.Before(e.UpdatedAt))

	bob := s.bob.ID
	travel := s.travel.ID
	updated, err = s.store.UpdateExpense(s.ctx, e.ID, core.ExpensePatch{UserID: &bob, CategoryID: &travel})
	s.Require().NoError(err)
	s.Equal("Bob", updated.UserName)
	s.Equal("Travel", updated.CategoryName)
	s.Equal("120.25", updated.Amount.String())
}

func (s *StoreSuite) TestUpdateExpenseFailures() {
	e := s.add(s.ann, "2024-01-10", "100")

	_, err := s.store.UpdateExpense(s.ctx, e.ID, core.ExpensePatch{})
	s.ErrorIs(err, core.ErrNoFieldsToUpdate)

	missing := int64(999)
	_, err = s.store.UpdateExpense(s.ctx, e.ID, core.ExpensePatch{CategoryID: &missing})
	s.ErrorIs(err, core.ErrCategoryNotFound)

	_, err = s.store.UpdateExpense(s.ctx, e.ID, core.ExpensePatch{UserID: &missing})
	s.ErrorIs(err, core.ErrUserNotFound)

	amount := core.MustAmount("1")
	_, err = s.store.UpdateExpense(s.ctx, 999, core.ExpensePatch{Amount: &amount})
	s.ErrorIs(err, core.ErrExpenseNotFound)

	got, err := s.store.GetExpense(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal("100.00", got.Amount.String(), "failed updates must not change the row")
	s.Equal(s.food.ID, got.CategoryID)
}

func (s *StoreSuite) TestDeleteExpense() {
	e := s.add(s.ann, "2024-01-10", "42")

	deleted, err := s.store.DeleteExpense(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, deleted.ID)
	s.Equal("Ann", deleted.UserName)
	s.Equal("42.00", deleted.Amount.String())

	_, err = s.store.GetExpense(s.ctx, e.ID)
	s.ErrorIs(err, core.ErrExpenseNotFound)

	_, err = s.store.DeleteExpense(s.ctx, e.ID)
	s.ErrorIs(err, core.ErrExpenseNotFound)
}

func (s *StoreSuite) TestListExpensesPagination() {
	for i := 1; i <= 25; i++ {
		s.add(s.ann, fmt.Sprintf("2024-01-%02d", i), "1")
	}

	page, err := s.store.ListExpenses(s.ctx, core.ExpenseFilter{}, core.NewPageRequest(3, 10))
	s.Require().NoError(err)
	s.Len(page.Expenses, 5)
	s.Equal(core.Pagination{Page: 3, Limit: 10, Total: 25, TotalPages: 3, HasNextPage: false, HasPrevPage: true}, page.Pagination)
	s.Equal("2024-01-05", page.Expenses[0].Date.String())
	s.Equal("2024-01-01", page.Expenses[4].Date.String())

	page, err = s.store.ListExpenses(s.ctx, core.ExpenseFilter{}, core.NewPageRequest(1, 10))
	s.Require().NoError(err)
	s.Len(page.Expenses, 10)
	s.Equal("2024-01-25", page.Expenses[0].Date.String())
	s.True(page.Pagination.HasNextPage)

	page, err = s.store.ListExpenses(s.ctx, core.ExpenseFilter{}, core.NewPageRequest(9, 10))
	s.Require().NoError(err)
	s.Empty(page.Expenses)
	s.NotNil(page.Expenses)
}

func (s *StoreSuite) TestListExpensesSameDayNewestFirst() {
	first := s.add(s.ann, "2024-02-01", "1")
	second := s.add(s.ann, "2024-02-01", "2")

	page, err := s.store.ListExpenses(s.ctx, core.ExpenseFilter{}, core.NewPageRequest(1, 10))
	s.Require().NoError(err)
	s.Require().Len(page.Expenses, 2)
	s.Equal(second.ID, page.Expenses[0].ID)
	s.Equal(first.ID, page.Expenses[1].ID)
}

func (s *StoreSuite) TestListExpensesFilters() {
	s.add(s.ann, "2024-01-10", "1")
	s.add(s.ann, "2024-02-10", "1")
	s.add(s.bob, "2024-02-15", "1")
	_, err := s.store.CreateExpense(s.ctx, core.NewExpense{
		UserID: s.ann.ID, CategoryID: s.travel.ID, Amount: core.MustAmount("1"), Date: core.NewDate(2024, 3, 1),
	})
	s.Require().NoError(err)

	ann := s.ann.ID
	travel := s.travel.ID
	feb1 := core.NewDate(2024, time.February, 1)
	feb15 := core.NewDate(2024, time.February, 15)

	s.Equal(int64(4), s.count(core.ExpenseFilter{}))
	s.Equal(int64(3), s.count(core.ExpenseFilter{UserID: &ann}))
	s.Equal(int64(1), s.count(core.ExpenseFilter{UserID: &ann, CategoryID: &travel}))
	s.Equal(int64(2), s.count(core.ExpenseFilter{StartDate: &feb1, EndDate: &feb15}), "date bounds are inclusive")
	s.Equal(int64(1), s.count(core.ExpenseFilter{UserID: &ann, StartDate: &feb1, EndDate: &feb15}))

	// Adding a filter never widens the result.
	base := core.ExpenseFilter{StartDate: &feb1}
	narrowed := base
	narrowed.UserID = &ann
	s.LessOrEqual(s.count(narrowed), s.count(base))
}

func (s *StoreSuite) TestMonthlyChanges() {
	s.add(s.ann, "2024-01-10", "100")
	s.add(s.ann, "2024-02-10", "150")

	got, err := s.store.MonthlyChanges(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("2024-02", got[0].CurrentMonth.String())
	s.Equal("2024-01", got[0].PreviousMonth.String())
	s.Equal("150.00", got[0].CurrentMonthTotal.String())
	s.Equal("100.00", got[0].PreviousMonthTotal.String())
	s.Equal("50.00", got[0].PercentageChange.String())
}

func (s *StoreSuite) TestTopDays() {
	s.add(s.ann, "2024-01-01", "10")
	s.add(s.ann, "2024-01-01", "15")
	s.add(s.ann, "2024-01-02", "40")
	s.add(s.ann, "2024-01-03", "20")
	s.add(s.ann, "2024-01-04", "20")
	s.add(s.bob, "2024-01-04", "5")

	got, err := s.store.TopDays(s.ctx, core.TopDaysPerUser)
	s.Require().NoError(err)
	s.Require().Len(got, 4)

	want := []struct {
		user  int64
		date  string
		total string
		rank  int
	}{
		{s.ann.ID, "2024-01-02", "40.00", 1},
		{s.ann.ID, "2024-01-01", "25.00", 2},
		{s.ann.ID, "2024-01-03", "20.00", 3},
		{s.bob.ID, "2024-01-04", "5.00", 1},
	}
	for i, w := range want {
		s.Equal(w.user, got[i].UserID, "row %d", i)
		s.Equal(w.date, got[i].Date.String(), "row %d", i)
		s.Equal(w.total, got[i].TotalAmount.String(), "row %d", i)
		s.Equal(w.rank, got[i].Rank, "row %d", i)
	}
}

func (s *StoreSuite) TestPredictions() {
	now := time.Date(2024, time.April, 20, 9, 0, 0, 0, time.UTC)
	s.add(s.ann, "2024-03-05", "300")
	s.add(s.ann, "2024-01-05", "300")
	s.add(s.ann, "2024-04-01", "5000")
	s.add(s.bob, "2023-12-31", "80")

	got, err := s.store.Predictions(s.ctx, now)
	s.Require().NoError(err)
	s.Require().Len(got, 1, "users without spend in the window are omitted")

	p := got[0]
	s.Equal(s.ann.ID, p.UserID)
	s.Equal("300.00", p.Month1Total.String())
	s.Equal("0.00", p.Month2Total.String())
	s.Equal("300.00", p.Month3Total.String())
	s.Equal("300.00", p.AverageSpending.String())
	s.Equal("300.00", p.PredictedNextMonth.String())
}
