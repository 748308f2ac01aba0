// internal/models/barter.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type BarterStatus string

const (
	BarterPending   BarterStatus = "pending"
	BarterAccepted  BarterStatus = "accepted"
	BarterDeclined  BarterStatus = "declined"
	BarterCompleted BarterStatus = "completed"
)

// ValidBarterStatus reports whether s is one of the enumerated statuses.
// Transitions are stored, not enforced.
func ValidBarterStatus(s BarterStatus) bool {
	switch s {
	case BarterPending, BarterAccepted, BarterDeclined, BarterCompleted:
		return true
	}
	return false
}

// BarterRequest is both a swap proposal and the conversation identity:
// one request id = one message thread. Its two participants are the
// requester and the owner of the requested skill; the owner is resolved
// through the skill, never stored on the row.
type BarterRequest struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`

	RequesterID      uuid.UUID `gorm:"type:uuid;not null;index" json:"requester_id"`
	RequestedSkillID uuid.UUID `gorm:"type:uuid;not null;index" json:"requested_skill_id"`
	OfferedSkillID   uuid.UUID `gorm:"type:uuid;not null" json:"offered_skill_id"`

	Status  BarterStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Message string       `gorm:"type:text" json:"message"` // optional note attached to the proposal

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"` // bumped on every new message

	RequestedSkill *Skill `gorm:"foreignKey:RequestedSkillID" json:"requested_skill,omitempty"`
	OfferedSkill   *Skill `gorm:"foreignKey:OfferedSkillID" json:"offered_skill,omitempty"`
}
