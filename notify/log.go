// ABOUTME: Notifier that renders messages into the structured log
// ABOUTME: Default when no delivery channel is configured
package notify

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/harperreed/consult/models"
)

type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.WithPrefix("notify")}
}

func (n *LogNotifier) Send(ctx context.Context, msg models.Notification) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}
	n.logger.Info("notification",
		"template", msg.Template,
		"to", rendered.To,
		"subject", rendered.Subject,
		"booking_id", msg.Booking.ID)
	n.logger.Debug(rendered.Body)
	return nil
}
