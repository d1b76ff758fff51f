// internal/tracker/session.go
package tracker

import (
	"time"

	"github.com/google/uuid"

	"mcp-food-log/internal/models"
)

// Session owns the photo and the logged items of one app session.
// It is not safe for concurrent use.
type Session struct {
	ID        string
	StartedAt time.Time
	Photo     *models.Photo

	items []models.LoggedItem
}

func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// RestoreSession rebuilds a session from previously logged items, keeping their order.
func RestoreSession(id string, startedAt time.Time, items []models.LoggedItem) *Session {
	return &Session{
		ID:        id,
		StartedAt: startedAt,
		items:     append([]models.LoggedItem(nil), items...),
	}
}

// Items returns the logged items in logging order.
func (s *Session) Items() []models.LoggedItem {
	return append([]models.LoggedItem(nil), s.items...)
}

func (s *Session) Len() int {
	return len(s.items)
}

// Totals is always recomputed from the item list.
func (s *Session) Totals() models.Totals {
	return Aggregate(s.items)
}

func (s *Session) append(item models.LoggedItem) {
	s.items = append(s.items, item)
}
