package collaborator

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/sirupsen/logrus"
)

// LoggingGateway is a development PaymentGateway: it accepts every initiation
// and logs it. Real deployments plug in their M-Pesa/card processor here and
// call back into the settlement processor on confirmation.
type LoggingGateway struct {
	logger *logrus.Logger
}

// NewLoggingGateway creates a gateway that only logs initiations
func NewLoggingGateway(logger *logrus.Logger) *LoggingGateway {
	return &LoggingGateway{logger: logger}
}

func (g *LoggingGateway) InitiatePayment(ctx context.Context, method enum.PaymentMethod, amount int64, reference string) error {
	g.logger.WithFields(logrus.Fields{
		"method":    method,
		"amount":    amount,
		"reference": reference,
	}).Info("payment initiation dispatched")
	return nil
}
