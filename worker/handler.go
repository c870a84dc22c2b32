// Package worker applies order mutations from the work queue to the Orders
// table.
//
// Delivery is at-least-once. A message is either applied, recognized as a
// duplicate, or dropped as permanently invalid; only storage failures are
// returned as errors so the queue redelivers the message.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/storefront/internal/metrics"
	"github.com/jacentio/storefront/store"
)

// Outcome is the terminal state of one message.
type Outcome int

const (
	// Failed means a storage failure occurred; the message must be redelivered.
	Failed Outcome = iota
	// Applied means the mutation was written.
	Applied
	// Duplicate means the same order was already stored; nothing was written.
	Duplicate
	// Dropped means the message can never be applied and must not be redelivered.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case Dropped:
		return "dropped"
	}
	return "failed"
}

// Handler applies order messages to the entity store.
type Handler struct {
	store   *store.Store
	config  Config
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewHandler creates a new order handler. metrics may be nil.
func NewHandler(s *store.Store, config Config, m *metrics.Collector, logger *slog.Logger) *Handler {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   s,
		config:  config,
		metrics: m,
		logger:  logger,
	}
}

// Handle applies one message body. A non-nil error is always a storage
// failure and comes with Outcome Failed.
func (h *Handler) Handle(ctx context.Context, body string) (Outcome, error) {
	start := time.Now()

	msg, err := parseMessage(body)
	if err != nil {
		h.logger.Error("dropping invalid order message", "error", err, "body", body)
		h.metrics.RecordOrderOutcome("invalid", Dropped.String(), time.Since(start))
		return Dropped, nil
	}

	logger := h.logger.With(
		"action", msg.Action,
		"orderId", msg.OrderID,
		"customerId", msg.CustomerID,
	)

	var outcome Outcome
	switch msg.action() {
	case ActionCreateOrder:
		outcome, err = h.createOrder(ctx, logger, msg)
	case ActionStatusUpdate:
		outcome, err = h.updateStatus(ctx, logger, msg)
	default:
		logger.Warn("dropping order message with unknown action")
		outcome = Dropped
	}

	if err != nil {
		logger.Error("order message failed", "error", err)
	}
	h.metrics.RecordOrderOutcome(msg.action(), outcome.String(), time.Since(start))
	return outcome, err
}

// HandleSQS processes a Lambda SQS batch. Messages that failed with a storage
// error are reported as batch item failures so only they are redelivered.
// This function is designed to be used as an AWS Lambda handler.
//
// The event source mapping must list ReportBatchItemFailures in its
// FunctionResponseTypes. Without it Lambda ignores the response and deletes
// the whole batch, so failed messages are lost instead of retried.
func (h *Handler) HandleSQS(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, record := range event.Records {
		if _, err := h.Handle(ctx, record.Body); err != nil {
			h.logger.Error("failed to process message",
				"messageId", record.MessageId,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}
	return resp, nil
}

// createOrder inserts the order. An existing record with the same content is
// a redelivery; one with different content is a key collision. Neither is
// retried.
func (h *Handler) createOrder(ctx context.Context, logger *slog.Logger, msg *OrderMessage) (Outcome, error) {
	rec := msg.record()
	incoming := fingerprint(rec.Fields)

	for attempt := 1; attempt <= h.config.MaxAttempts; attempt++ {
		err := h.store.Insert(ctx, h.config.Table, rec)
		if err == nil {
			logger.Info("order created", "status", msg.Status)
			return Applied, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return Failed, fmt.Errorf("insert order: %w", err)
		}

		existing, err := h.store.Get(ctx, h.config.Table, msg.CustomerID, msg.OrderID)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between the insert and the read.
			continue
		}
		if err != nil {
			return Failed, fmt.Errorf("read existing order: %w", err)
		}

		stored := fingerprint(existing.Fields)
		if stored == incoming {
			logger.Info("order already created, ignoring duplicate delivery")
			return Duplicate, nil
		}
		logger.Warn("order key collision, dropping create with different content",
			"storedDigest", stored,
			"incomingDigest", incoming,
		)
		return Dropped, nil
	}

	return Failed, fmt.Errorf("create order %s: %w after %d attempts", msg.OrderID, store.ErrAlreadyExists, h.config.MaxAttempts)
}

// updateStatus sets Status on the stored order. An order the store has not
// seen yet is inserted from the message, which covers a status update
// delivered before its create.
func (h *Handler) updateStatus(ctx context.Context, logger *slog.Logger, msg *OrderMessage) (Outcome, error) {
	var lastErr error

	for attempt := 1; attempt <= h.config.MaxAttempts; attempt++ {
		current, err := h.store.Get(ctx, h.config.Table, msg.CustomerID, msg.OrderID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			logger.Warn("order not found, creating from status update")
			err = h.store.Insert(ctx, h.config.Table, msg.record())
			if err == nil {
				logger.Info("created missing order", "status", msg.Status)
				return Applied, nil
			}
			if !errors.Is(err, store.ErrAlreadyExists) {
				return Failed, fmt.Errorf("insert order: %w", err)
			}
			// A create landed first; apply the status on top of it.
			lastErr = err

		case err != nil:
			return Failed, fmt.Errorf("read order: %w", err)

		default:
			current.Fields[fieldStatus] = optionalString(msg.Status)
			err = h.store.Replace(ctx, h.config.Table, current)
			if err == nil {
				logger.Info("order status updated", "status", msg.Status, "version", current.Version)
				return Applied, nil
			}
			if !errors.Is(err, store.ErrConcurrentModification) {
				return Failed, fmt.Errorf("replace order: %w", err)
			}
			lastErr = err
		}

		logger.Debug("retrying status update", "attempt", attempt, "error", lastErr)
	}

	return Failed, fmt.Errorf("update status of order %s after %d attempts: %w", msg.OrderID, h.config.MaxAttempts, lastErr)
}
