package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jacentio/storefront/queue"
)

// Receiver is the queue surface the Poller consumes. *queue.Queue satisfies it.
type Receiver interface {
	Receive(ctx context.Context, name string, max int) ([]queue.Message, error)
	Delete(ctx context.Context, name, receipt string) error
}

// Poller consumes the orders queue outside of Lambda. Messages that end in
// any outcome but Failed are deleted; failed ones stay on the queue and
// reappear after the visibility timeout.
type Poller struct {
	handler  *Handler
	receiver Receiver
	config   Config
	logger   *slog.Logger
}

// NewPoller creates a poller feeding handler from receiver.
func NewPoller(handler *Handler, receiver Receiver, config Config, logger *slog.Logger) *Poller {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		handler:  handler,
		receiver: receiver,
		config:   config,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. It returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("order poller started", "queue", p.config.Queue)
	defer p.logger.Info("order poller stopped", "queue", p.config.Queue)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("receive failed, backing off",
				"error", err,
				"backoff", p.config.ErrorBackoff,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.ErrorBackoff):
			}
		}
	}
}

// PollOnce receives one batch and handles every message in it. It returns
// the number of messages received; the error reports a failed receive only.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	messages, err := p.receiver.Receive(ctx, p.config.Queue, p.config.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, m := range messages {
		outcome, err := p.handler.Handle(ctx, m.Body)
		if err != nil {
			p.logger.Warn("leaving message for redelivery",
				"messageId", m.ID,
				"error", err,
			)
			continue
		}
		if err := p.receiver.Delete(ctx, p.config.Queue, m.Receipt); err != nil {
			p.logger.Error("failed to delete message",
				"messageId", m.ID,
				"outcome", outcome.String(),
				"error", err,
			)
		}
	}
	return len(messages), nil
}
