// internal/chat/conversation.go
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/models"
)

// MessagePreview is the denormalized last message of a thread.
type MessagePreview struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the derived, session-local view of one thread: the barter
// request's identity, the counterpart's public profile and the last-message
// preview. It is never persisted.
type Conversation struct {
	RequestID   uuid.UUID           `json:"request_id"`
	Status      models.BarterStatus `json:"status"`
	Other       models.Profile      `json:"other"`
	LastMessage *MessagePreview     `json:"last_message,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Conversations derives the user's conversation list, ordered by the
// request's last activity, newest first. A request the user does not
// participate in, or whose counterpart cannot be resolved, is skipped;
// only the initial fetch can fail the whole derivation.
func (s *Service) Conversations(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	reqs, err := s.store.BarterRequests(ctx)
	if err != nil {
		return nil, err
	}

	convs := make([]Conversation, 0, len(reqs))
	for _, req := range reqs {
		conv, ok := s.deriveOne(ctx, userID, req)
		if !ok {
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// deriveOne builds a single Conversation. Any per-request lookup failure
// drops the request from the list instead of failing the derivation.
func (s *Service) deriveOne(ctx context.Context, userID uuid.UUID, req models.BarterRequest) (Conversation, bool) {
	skill, err := s.store.SkillByID(ctx, req.RequestedSkillID)
	if err != nil || skill == nil {
		s.log.Debug().Err(err).Str("request_id", req.ID.String()).Msg("skipping request without resolvable skill")
		return Conversation{}, false
	}

	var otherID uuid.UUID
	switch userID {
	case req.RequesterID:
		otherID = skill.UserID
	case skill.UserID:
		otherID = req.RequesterID
	default:
		// not a participant
		return Conversation{}, false
	}
	if otherID == uuid.Nil || otherID == userID {
		return Conversation{}, false
	}

	profile, err := s.store.ProfileByID(ctx, otherID)
	if err != nil || profile == nil {
		s.log.Debug().Err(err).Str("request_id", req.ID.String()).Msg("skipping request without counterpart profile")
		return Conversation{}, false
	}

	conv := Conversation{
		RequestID: req.ID,
		Status:    req.Status,
		Other:     *profile,
		UpdatedAt: req.UpdatedAt,
	}

	last, err := s.store.LastMessage(ctx, req.ID)
	if err != nil {
		s.log.Debug().Err(err).Str("request_id", req.ID.String()).Msg("skipping request, last message unavailable")
		return Conversation{}, false
	}
	if last != nil {
		conv.LastMessage = &MessagePreview{Content: last.Content, CreatedAt: last.CreatedAt}
	}
	return conv, true
}
