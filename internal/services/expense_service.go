package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	Publish(ctx context.Context, ev amqp.ExpenseEvent) error
	Close() error
}

// Invalidator drops derived data after a write.
type Invalidator interface {
	Invalidate()
}

// ExpenseService validates expense writes, stores them and then announces
// them. The store is the source of truth: once it commits, the request
// succeeds whatever happens to the event.
type ExpenseService struct {
	store     backend.ExpenseStore
	publisher EventPublisher
	stats     Invalidator
	metrics   *metrics.Metrics
}

// NewExpenseService wires the service. publisher, stats and m may be nil.
func NewExpenseService(store backend.ExpenseStore, publisher EventPublisher, stats Invalidator, m *metrics.Metrics) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		stats:     stats,
		metrics:   m,
	}
}

func (s *ExpenseService) ListExpenses(ctx context.Context, f core.ExpenseFilter, p core.PageRequest) (core.ExpensePage, error) {
	return s.store.ListExpenses(ctx, f, p)
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

func (s *ExpenseService) CreateExpense(ctx context.Context, ne core.NewExpense) (core.Expense, error) {
	if err := ne.Validate(); err != nil {
		return core.Expense{}, err
	}
	e, err := s.store.CreateExpense(ctx, ne)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.afterWrite(ctx, amqp.EventExpenseCreated, e)
	return e, nil
}

// UpdateExpense applies the fields present in p. An empty patch is
// rejected only after the expense is known to exist, so a missing id
// always reports not found.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	if err := p.Validate(); err != nil {
		return core.Expense{}, err
	}
	e, err := s.store.UpdateExpense(ctx, id, p)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	s.afterWrite(ctx, amqp.EventExpenseUpdated, e)
	return e, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.store.DeleteExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.afterWrite(ctx, amqp.EventExpenseDeleted, e)
	return e, nil
}

func (s *ExpenseService) afterWrite(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.stats != nil {
		s.stats.Invalidate()
	}

	fields := log.NewFields().WithExpense(e).WithComponent(log.ComponentExpense).WithOperation(log.OpPublish)
	fields[log.FieldEventType] = string(t)

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping expense event", fields.ToSlice()...)
		return
	}
	err := s.publisher.Publish(ctx, amqp.NewExpenseEvent(t, e))
	s.metrics.EventPublished(string(t), err)
	if err != nil {
		// Don't fail the request, the expense is committed.
		slog.ErrorContext(ctx, "Failed to publish expense event", fields.WithError(err).ToSlice()...)
	}
}

// Close closes the publisher, if any. The store is owned by the caller.
func (s *ExpenseService) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close expense service: %w", err)
	}
	return nil
}
