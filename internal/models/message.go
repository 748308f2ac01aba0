// internal/models/message.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable once created. Thread order is created_at ascending,
// ties broken by insertion order.
type Message struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BarterRequestID uuid.UUID `gorm:"type:uuid;not null;index" json:"barter_request_id"`
	SenderID        uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`

	Content string `gorm:"type:text;not null" json:"content"`

	CreatedAt time.Time `json:"created_at"`
}
