package entity

// EventType names a live event pushed to a connected user.
type EventType string

const (
	EventMessage   EventType = "message"
	EventRead      EventType = "read"
	EventTyping    EventType = "typing"
	EventArchive   EventType = "archive"
	EventUnarchive EventType = "unarchive"
)

// NotificationPayload is a transient event routed to a user. It lives only in
// memory: emitted live or held in the notification buffer until drained.
type NotificationPayload struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

type TypingEvent struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}
