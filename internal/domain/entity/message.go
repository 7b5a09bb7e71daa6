package entity

import "time"

// Message is a direct message between two marketplace users. Archiving is
// tracked per side; a message is never removed by archiving.
type Message struct {
	ID                  string    `json:"id" firestore:"id"`
	SenderID            string    `json:"sender_id" firestore:"senderId"`
	RecipientID         string    `json:"recipient_id" firestore:"recipientId"`
	ProductID           string    `json:"product_id,omitempty" firestore:"productId,omitempty"`
	Content             string    `json:"content" firestore:"content"`
	Read                bool      `json:"read" firestore:"read"`
	ArchivedBySender    bool      `json:"archived_by_sender" firestore:"archivedBySender"`
	ArchivedByRecipient bool      `json:"archived_by_recipient" firestore:"archivedByRecipient"`
	CreatedAt           time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt           time.Time `json:"updated_at" firestore:"updatedAt"`
}

// IsParticipant reports whether userID is the sender or the recipient.
func (m *Message) IsParticipant(userID string) bool {
	return userID != "" && (m.SenderID == userID || m.RecipientID == userID)
}

// Counterpart returns the other side of the conversation for userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// SetArchived flips only the archive flag that belongs to userID's side.
func (m *Message) SetArchived(userID string, archived bool) bool {
	switch userID {
	case m.SenderID:
		m.ArchivedBySender = archived
	case m.RecipientID:
		m.ArchivedByRecipient = archived
	default:
		return false
	}
	return true
}

// ArchivedFor reports whether userID's side has archived the message.
func (m *Message) ArchivedFor(userID string) bool {
	if m.SenderID == userID {
		return m.ArchivedBySender
	}
	if m.RecipientID == userID {
		return m.ArchivedByRecipient
	}
	return false
}
