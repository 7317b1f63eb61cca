// Package memory is a process-local Store used for demos and tests. It
// applies the same rules as the SQLite repository and computes reports with
// the stats package.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"expenses/internal/core"
	"expenses/internal/stats"
)

// DefaultCategories is the fixed category list both backends start with.
var DefaultCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Travel",
	"Education",
	"Personal Care",
	"Others",
}

type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	users      []core.User
	categories []core.Category
	expenses   []core.Expense
	nextID     int64
}

func New(categories []string) *Store {
	s := &Store{now: time.Now, nextID: 1}
	created := s.now().UTC()
	for i, name := range categories {
		s.categories = append(s.categories, core.Category{ID: int64(i + 1), Name: name, CreatedAt: created})
	}
	return s
}

// WithClock replaces the timestamp source, for deterministic tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.users, func(u core.User) string { return u.Name }), nil
}

func (s *Store) ListActiveUsers(context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Status == core.StatusActive {
			active = append(active, u)
		}
	}
	return sortedByName(active, func(u core.User) string { return u.Name }), nil
}

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByName(s.categories, func(c core.Category) string { return c.Name }), nil
}

func (s *Store) CreateUser(_ context.Context, nu core.NewUser) (core.User, error) {
	if err := nu.Validate(); err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, nu.Email) {
			return core.User{}, core.ErrEmailTaken
		}
	}
	status := nu.Status
	if status == "" {
		status = core.StatusActive
	}
	ts := s.now().UTC()
	u := core.User{
		ID:        int64(len(s.users) + 1),
		Name:      nu.Name,
		Email:     nu.Email,
		Status:    status,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) ListExpenses(_ context.Context, f core.ExpenseFilter, p core.PageRequest) (core.ExpensePage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if f.Matches(e) {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b core.Expense) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})

	page := make([]core.Expense, 0, p.Limit)
	if off := p.Offset(); off < len(matched) {
		page = append(page, matched[off:min(off+p.Limit, len(matched))]...)
	}
	return core.ExpensePage{
		Expenses:   page,
		Pagination: core.NewPagination(p, int64(len(matched))),
	}, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	return s.expenses[i], nil
}

func (s *Store) CreateExpense(_ context.Context, ne core.NewExpense) (core.Expense, error) {
	if err := ne.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.user(ne.UserID)
	if !ok {
		return core.Expense{}, core.ErrUserNotFound
	}
	cat, ok := s.category(ne.CategoryID)
	if !ok {
		return core.Expense{}, core.ErrCategoryNotFound
	}

	ts := s.now().UTC()
	e := core.Expense{
		ID:           s.nextID,
		UserID:       user.ID,
		CategoryID:   cat.ID,
		Amount:       ne.Amount,
		Date:         ne.Date,
		Description:  ne.Description,
		CreatedAt:    ts,
		UpdatedAt:    ts,
		UserName:     user.Name,
		CategoryName: cat.Name,
	}
	s.nextID++
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	if err := p.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if p.IsEmpty() {
		return core.Expense{}, core.ErrNoFieldsToUpdate
	}

	e := p.Apply(s.expenses[i])
	if p.UserID != nil {
		user, ok := s.user(*p.UserID)
		if !ok {
			return core.Expense{}, core.ErrUserNotFound
		}
		e.UserName = user.Name
	}
	if p.CategoryID != nil {
		cat, ok := s.category(*p.CategoryID)
		if !ok {
			return core.Expense{}, core.ErrCategoryNotFound
		}
		e.CategoryName = cat.Name
	}
	e.UpdatedAt = s.now().UTC()
	s.expenses[i] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	deleted := s.expenses[i]
	s.expenses = slices.Delete(s.expenses, i, i+1)
	return deleted, nil
}

func (s *Store) TopDays(_ context.Context, perUser int) ([]core.TopDayExpenditure, error) {
	return stats.TopDays(s.snapshot(), perUser), nil
}

func (s *Store) MonthlyChanges(context.Context) ([]core.MonthlyPercentageChange, error) {
	return stats.MonthlyChanges(s.snapshot()), nil
}

func (s *Store) Predictions(_ context.Context, now time.Time) ([]core.ExpenditurePrediction, error) {
	return stats.Predictions(s.snapshot(), now), nil
}

func (s *Store) snapshot() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.expenses)
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.expenses, func(e core.Expense) bool { return e.ID == id })
}

func (s *Store) user(id int64) (core.User, bool) {
	i := slices.IndexFunc(s.users, func(u core.User) bool { return u.ID == id })
	if i < 0 {
		return core.User{}, false
	}
	return s.users[i], true
}

func (s *Store) category(id int64) (core.Category, bool) {
	i := slices.IndexFunc(s.categories, func(c core.Category) bool { return c.ID == id })
	if i < 0 {
		return core.Category{}, false
	}
	return s.categories[i], true
}

func sortedByName[T any](items []T, name func(T) string) []T {
	out := slices.Clone(items)
	if out == nil {
		out = []T{}
	}
	slices.SortStableFunc(out, func(a, b T) int { return strings.Compare(name(a), name(b)) })
	return out
}
