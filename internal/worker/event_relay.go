package worker

import (
	"github.com/supportdesk/ticketflow/internal/service"
)

// StartEventRelay registers the handlers that carry committed workflow
// events to the log and the configured sinks.
func StartEventRelay(notifications *service.NotificationService) {
	if notifications == nil {
		return
	}
	notifications.RegisterHandlers()
}
