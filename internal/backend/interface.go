package backend

import (
	"context"
	"time"

	"expenses/internal/core"
)

// ReferenceReader lists the fixed reference data expenses point at.
type ReferenceReader interface {
	ListUsers(ctx context.Context) ([]core.User, error)
	ListActiveUsers(ctx context.Context) ([]core.User, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// UserWriter registers users. Only the admin CLI and seeding use it.
type UserWriter interface {
	CreateUser(ctx context.Context, u core.NewUser) (core.User, error)
}

// ExpenseStore is the expense CRUD surface. Every write runs the existence
// checks and the mutation atomically.
type ExpenseStore interface {
	ListExpenses(ctx context.Context, f core.ExpenseFilter, p core.PageRequest) (core.ExpensePage, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (core.Expense, error)
}

// StatisticsReader computes the per-user reports.
type StatisticsReader interface {
	TopDays(ctx context.Context, perUser int) ([]core.TopDayExpenditure, error)
	MonthlyChanges(ctx context.Context) ([]core.MonthlyPercentageChange, error)
	Predictions(ctx context.Context, now time.Time) ([]core.ExpenditurePrediction, error)
}

// Store represents a unified backend interface that provides all necessary operations
type Store interface {
	ReferenceReader
	UserWriter
	ExpenseStore
	StatisticsReader
	Ping(ctx context.Context) error
	Close() error
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
