package dashboard

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Notification is a transient message that removes itself after the
// controller's notification lifetime.
type Notification struct {
	ID        string
	Message   string
	Severity  Severity
	CreatedAt time.Time
}

// ShowNotification adds a notification and schedules its removal. It
// returns the notification id.
func (c *Controller) ShowNotification(message string, severity Severity) string {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: c.sched.Now(),
	}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return n.ID
	}
	c.notifications = append(c.notifications, n)
	c.expiries[n.ID] = c.sched.After(c.cfg.NotificationTTL, func() {
		c.DismissNotification(n.ID)
	})
	c.mutex.Unlock()

	c.logger.Debug("Notification shown",
		slog.String("id", n.ID),
		slog.String("severity", string(severity)),
		slog.String("message", message))

	c.changed()
	return n.ID
}

// DismissNotification removes the notification with id. Removing an
// unknown or already removed notification is a no-op and returns false.
func (c *Controller) DismissNotification(id string) bool {
	c.mutex.Lock()

	if h, ok := c.expiries[id]; ok {
		h.Stop()
		delete(c.expiries, id)
	}

	idx := -1
	for i, n := range c.notifications {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mutex.Unlock()
		return false
	}

	c.notifications = append(c.notifications[:idx], c.notifications[idx+1:]...)
	c.mutex.Unlock()

	c.changed()
	return true
}

// stopExpiries must be called with the mutex held.
func (c *Controller) stopExpiries() {
	for id, h := range c.expiries {
		h.Stop()
		delete(c.expiries, id)
	}
}
