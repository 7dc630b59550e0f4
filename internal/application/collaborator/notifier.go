package collaborator

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoggingNotifier is the default Notifier: it logs the notification instead
// of calling an external endpoint.
type LoggingNotifier struct {
	logger *logrus.Logger
}

// NewLoggingNotifier creates a notifier that only logs
func NewLoggingNotifier(logger *logrus.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

func (n *LoggingNotifier) Notify(ctx context.Context, kind string, receiptID uuid.UUID, payload string) error {
	n.logger.WithFields(logrus.Fields{
		"kind":       kind,
		"receipt_id": receiptID,
	}).Info("notification dispatched")
	return nil
}
