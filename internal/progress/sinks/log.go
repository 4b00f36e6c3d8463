package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/journal-email-crawler/internal/progress"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event. Errors are logged at warn level.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Journal != "" {
			fields = append(fields, zap.String("journal", evt.Journal))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.UI != "" {
			fields = append(fields, zap.String("ui", evt.UI))
		}
		fields = append(fields,
			zap.Int64("authors", evt.Authors),
			zap.Int64("volumes", evt.Volumes),
			zap.Duration("dur", evt.Dur),
		)
		if evt.Stage == progress.StageJournalError {
			s.logger.Warn("progress", append(fields, zap.String("error", evt.Note))...)
			continue
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress", fields...)
	}
	return nil
}

// Close performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
