// Package notify implements the best-effort notification dispatcher: a
// bounded channel feeding one worker goroutine. Callers never block on
// delivery; a full buffer drops the notification with a log line.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"signet/internal/domain"
)

type Delivery struct {
	Recipient string
	Event     domain.NotifyEvent
	Payload   map[string]any
}

// Sender performs the actual delivery. The default LogSender only logs;
// the port is where a mail or webhook sender plugs in.
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}

type Dispatcher struct {
	ch     chan Delivery
	sender Sender
	logger *zap.Logger

	startOnce sync.Once
	done      chan struct{}
}

func NewDispatcher(buffer int, sender Sender, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		ch:     make(chan Delivery, buffer),
		sender: sender,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine. It returns immediately; the
// worker drains the queue until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

func (d *Dispatcher) Notify(ctx context.Context, recipient string, event domain.NotifyEvent, payload map[string]any) {
	if recipient == "" || event == "" {
		return
	}
	select {
	case d.ch <- Delivery{Recipient: recipient, Event: event, Payload: payload}:
	default:
		d.logger.Warn("notification dropped, queue full",
			zap.String("recipient", recipient),
			zap.String("event", string(event)))
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case delivery := <-d.ch:
			if err := d.sender.Send(ctx, delivery); err != nil {
				d.logger.Warn("notification delivery failed",
					zap.String("recipient", delivery.Recipient),
					zap.String("event", string(delivery.Event)),
					zap.Error(err))
			}
		}
	}
}

// Done closes once the worker has stopped; tests use it to synchronize
// shutdown.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, d Delivery) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification",
		zap.String("recipient", d.Recipient),
		zap.String("event", string(d.Event)),
		zap.Any("payload", d.Payload))
	return nil
}
