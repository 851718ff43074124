// README: Log and fan-out sinks.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (l *LogSink) Publish(ctx context.Context, e Event) error {
	l.log.InfoContext(ctx, "notify",
		"type", e.Type,
		"recipient_id", e.RecipientID,
		"trip_id", e.Trip.ID,
		"kind", e.Trip.Kind,
	)
	return nil
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
