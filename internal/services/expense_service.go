package services

import (
	"context"
	"fmt"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/storage"
)

// EventPublisher delivers expense change events to a broker.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
	Close() error
}

// ExpenseService validates input, runs it against the store gateway and
// announces successful writes.
type ExpenseService struct {
	gateway   storage.Gateway
	publisher EventPublisher
}

// NewExpenseService wires a gateway and an optional publisher. A nil publisher
// disables events.
func NewExpenseService(gateway storage.Gateway, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		gateway:   gateway,
		publisher: publisher,
	}
}

func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	return s.gateway.ListAll(ctx)
}

func (s *ExpenseService) Get(ctx context.Context, id string) (core.Expense, error) {
	if !core.ValidID(id) {
		return core.Expense{}, core.ErrInvalidID
	}
	return s.gateway.Get(ctx, id)
}

// Create validates every field, saves the expense and publishes a created event.
func (s *ExpenseService) Create(ctx context.Context, in core.Input) (core.Expense, error) {
	p, err := core.Validate(in, core.Full)
	if err != nil {
		return core.Expense{}, err
	}

	e, err := s.gateway.Create(ctx, p)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	// Don't fail the request, the expense is already stored
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventCreated, e))
	return e, nil
}

// Update checks the id, validates the supplied fields and applies them. Nothing
// reaches the store unless all of them are valid.
func (s *ExpenseService) Update(ctx context.Context, id string, in core.Input) (core.Expense, error) {
	if !core.ValidID(id) {
		return core.Expense{}, core.ErrInvalidID
	}

	p, err := core.Validate(in, core.Partial)
	if err != nil {
		return core.Expense{}, err
	}
	if p.IsEmpty() {
		return core.Expense{}, core.ErrEmptyPayload
	}

	e, err := s.gateway.UpdatePartial(ctx, id, p)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventUpdated, e))
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	if !core.ValidID(id) {
		return core.ErrInvalidID
	}

	if err := s.gateway.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publish(ctx, amqp.NewDeletedEvent(id))
	return nil
}

// Ready reports whether the store answers.
func (s *ExpenseService) Ready(ctx context.Context) error {
	return s.gateway.Ping(ctx)
}

// publish sends ev and logs a failure through the request logger, so the
// entry carries the request id. The caller's write has already succeeded.
func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAMQP)
	if s.publisher == nil {
		logger.DebugContext(ctx, "AMQP publisher not configured, skipping expense event",
			applog.FieldEventType, ev.Type)
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		logger.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldEventType, ev.Type,
			applog.FieldExpenseID, ev.ID,
			applog.FieldOperation, applog.OpPublish,
			applog.FieldError, err.Error())
	}
}
