package entity

import (
	"encoding/json"
	"time"
)

type SyncEntityType string

const (
	SyncEntityMessage      SyncEntityType = "message"
	SyncEntityNotification SyncEntityType = "notification"
)

func (t SyncEntityType) Valid() bool {
	return t == SyncEntityMessage || t == SyncEntityNotification
}

type SyncOperation string

const (
	SyncOperationCreate SyncOperation = "create"
	SyncOperationUpdate SyncOperation = "update"
	SyncOperationDelete SyncOperation = "delete"
)

func (o SyncOperation) Valid() bool {
	return o == SyncOperationCreate || o == SyncOperationUpdate || o == SyncOperationDelete
}

type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

func (s SyncStatus) Valid() bool {
	return s == SyncStatusPending || s == SyncStatusCompleted || s == SyncStatusFailed
}

// SyncQueueItem is a client-originated offline operation awaiting replay.
// Pending items for one (UserID, EntityID, EntityType) hold at most one of each
// operation, in create, update, delete order: a second update coalesces into
// the pending one and nothing is queued behind a pending delete.
type SyncQueueItem struct {
	ID         string          `json:"id" firestore:"id"`
	UserID     string          `json:"user_id" firestore:"userId"`
	EntityType SyncEntityType  `json:"entity_type" firestore:"entityType"`
	EntityID   string          `json:"entity_id" firestore:"entityId"`
	Operation  SyncOperation   `json:"operation" firestore:"operation"`
	Data       json.RawMessage `json:"data" firestore:"-"`
	Status     SyncStatus      `json:"status" firestore:"status"`
	Attempts   int             `json:"attempts" firestore:"attempts"`
	LastError  string          `json:"last_error,omitempty" firestore:"lastError,omitempty"`
	CreatedAt  time.Time       `json:"created_at" firestore:"createdAt"`
	UpdatedAt  time.Time       `json:"updated_at" firestore:"updatedAt"`
	SyncedAt   *time.Time      `json:"synced_at,omitempty" firestore:"syncedAt,omitempty"`
}

// SyncStatusCounts backs the client-side sync status indicator.
type SyncStatusCounts struct {
	Pending   int64 `json:"pending"`
	Failed    int64 `json:"failed"`
	Completed int64 `json:"completed"`
}
