package entity

import (
	"time"
)

// Product is a listing a message may refer to. Only existence matters here.
type Product struct {
	ID        string     `json:"id" firestore:"id"`
	SellerID  string     `json:"seller_id" firestore:"sellerId"`
	Title     string     `json:"title" firestore:"title"`
	Status    string     `json:"status" firestore:"status"`
	CreatedAt time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time  `json:"updated_at" firestore:"updatedAt"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" firestore:"deletedAt,omitempty"`
}
