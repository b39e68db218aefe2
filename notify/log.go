package notify

import (
	"context"
	"log/slog"
)

// ============================================================================
// LOG NOTIFIER
// ============================================================================

// LogNotifier writes notices to the structured log. It is the default
// channel when no webhook is configured.
type LogNotifier struct {
	name   string
	logger *slog.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(name string, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{name: name, logger: logger}
}

// Name implements Notifier.Name
func (l *LogNotifier) Name() string {
	return l.name
}

// NotifySuccess implements Notifier.NotifySuccess
func (l *LogNotifier) NotifySuccess(_ context.Context, notice *SuccessNotice) error {
	l.logger.Info("pipeline notification",
		"subject", notice.Subject(),
		"message", notice.Message(),
		"pipeline", notice.Pipeline,
		"run_id", notice.RunID)
	return nil
}

// NotifyFailure implements Notifier.NotifyFailure
func (l *LogNotifier) NotifyFailure(_ context.Context, notice *FailureNotice) error {
	l.logger.Error("pipeline failure notification",
		"subject", notice.Subject(),
		"message", notice.Message(),
		"pipeline", notice.Pipeline,
		"run_id", notice.RunID,
		"failing_step", notice.FailingStep)
	return nil
}
