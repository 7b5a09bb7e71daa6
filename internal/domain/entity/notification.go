package entity

import "time"

type Notification struct {
	ID        string                 `json:"id" firestore:"id"`
	UserID    string                 `json:"user_id" firestore:"userId"`
	Title     string                 `json:"title" firestore:"title"`
	Message   string                 `json:"message" firestore:"message"`
	Type      string                 `json:"type" firestore:"type"`
	Data      map[string]interface{} `json:"data,omitempty" firestore:"data,omitempty"`
	Read      bool                   `json:"read" firestore:"read"`
	CreatedAt time.Time              `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time              `json:"updated_at" firestore:"updatedAt"`
}
