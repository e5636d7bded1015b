// Package notify is the user-facing notification surface: the headless
// equivalent of the toast popups a browser client shows. Errors inside the
// sessions are reported here instead of being propagated to callers.
package notify

import "go.uber.org/zap"

// Notification is one user-visible toast.
type Notification struct {
	Title       string
	Description string
	AvatarID    string
}

type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the process log. It is the default
// sink for headless runs.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(n Notification) {
	l.logger.Info("notification",
		zap.String("title", n.Title),
		zap.String("description", n.Description),
	)
}
