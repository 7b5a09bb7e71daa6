package realtime

import (
	"sync"

	"pasarlive/internal/domain/entity"
)

// NotificationBuffer holds events for offline users in insertion order until
// their next connection drains it. Contents do not survive a restart.
//
// TODO: bound per-user length and expire stale entries once retention
// requirements for buffered events are agreed.
type NotificationBuffer struct {
	mu      sync.Mutex
	pending map[string][]entity.NotificationPayload
}

func NewNotificationBuffer() *NotificationBuffer {
	return &NotificationBuffer{
		pending: make(map[string][]entity.NotificationPayload),
	}
}

func (b *NotificationBuffer) Enqueue(userID string, payload entity.NotificationPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[userID] = append(b.pending[userID], payload)
}

// Drain returns and clears the user's buffered events in one step.
func (b *NotificationBuffer) Drain(userID string) []entity.NotificationPayload {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.pending[userID]
	delete(b.pending, userID)
	return items
}

func (b *NotificationBuffer) Len(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending[userID])
}

// Size is the number of buffered events across all users.
func (b *NotificationBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, items := range b.pending {
		total += len(items)
	}
	return total
}
