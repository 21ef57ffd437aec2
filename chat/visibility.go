package chat

import (
	"time"

	"cleaning-booking-server/models"
)

const (
	VisibleBefore = 72 * time.Hour
	VisibleAfter  = 48 * time.Hour
)

// IsVisible reports whether a thread is shown at now. Admin threads and
// threads without a scheduled reservation are always visible; the rest
// only within [scheduledAt-72h, scheduledAt+48h].
func IsVisible(chat models.Chat, scheduledAt *time.Time, now time.Time) bool {
	if chat.IsAdminChat || chat.ReservationID == nil || scheduledAt == nil {
		return true
	}
	from := scheduledAt.Add(-VisibleBefore)
	until := scheduledAt.Add(VisibleAfter)
	return !now.Before(from) && !now.After(until)
}

// UnreadCount counts messages the viewer did not write and has not read.
func UnreadCount(messages []models.ChatMessage, viewerID uint) int {
	n := 0
	for _, m := range messages {
		if m.SenderID != viewerID && !m.IsRead {
			n++
		}
	}
	return n
}
