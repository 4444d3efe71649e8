package mail

import (
	"context"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
)

// LogDispatcher records that a message would have been sent. Only the
// recipient and subject are logged.
type LogDispatcher struct {
	logger logging.Logger
}

func NewLogDispatcher(logger logging.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With("module", "mail")}
}

func (d *LogDispatcher) Send(ctx context.Context, msg Message) error {
	d.logger.Info(ctx, "message dispatched", "to", msg.To, "subject", msg.Subject)
	return nil
}
