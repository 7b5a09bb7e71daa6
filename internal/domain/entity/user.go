package entity

import (
	"time"
)

// User is the marketplace profile as seen by the messaging subsystem. The
// full profile is owned by the catalog service.
type User struct {
	ID       string `json:"id" firestore:"id"`
	Email    string `json:"email" firestore:"email"`
	Username string `json:"username" firestore:"username"`
	Role     string `json:"role" firestore:"role"`
	Status   string `json:"status" firestore:"status"`

	AvatarURL  string    `json:"avatar_url,omitempty" firestore:"avatarURL,omitempty"`
	LastSeen   time.Time `json:"last_seen" firestore:"lastSeen"`
	PushTokens []string  `json:"-" firestore:"pushTokens,omitempty"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}
