// Package notify delivers claim outcome notifications. Delivery is
// fire-and-forget: sinks log their own failures and never return them.
package notify

import (
	"context"

	"github.com/aatumaykin/autoclaim/internal/logger"
)

// Notifier is a notification sink.
type Notifier interface {
	Notify(ctx context.Context, title, body string)
	NotifyWithLink(ctx context.Context, title, body, url string)
}

// Log writes notifications to the decision log.
type Log struct {
	logger *logger.Logger
}

// NewLog creates a log sink.
func NewLog(log *logger.Logger) *Log {
	return &Log{logger: log}
}

func (l *Log) Notify(_ context.Context, title, body string) {
	l.logger.Info(title, logger.Field{Key: "body", Value: body})
}

func (l *Log) NotifyWithLink(_ context.Context, title, body, url string) {
	l.logger.Info(title,
		logger.Field{Key: "body", Value: body},
		logger.Field{Key: "link", Value: url})
}

// Multi fans a notification out to several sinks in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, title, body string) {
	for _, n := range m {
		n.Notify(ctx, title, body)
	}
}

func (m Multi) NotifyWithLink(ctx context.Context, title, body, url string) {
	for _, n := range m {
		n.NotifyWithLink(ctx, title, body, url)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, string, string)                 {}
func (Discard) NotifyWithLink(context.Context, string, string, string) {}
