// internal/chat/bootstrap.go
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/models"
)

// GetOrCreate returns a barter request usable as the conversation container
// between two users, creating one when none exists. Matching is keyed by the
// participant pair in either role. The created request targets the other
// user's most recent active skill so that they resolve as a participant;
// live sessions pick the new conversation up through the request-insert
// event. The second return value reports whether a request was created.
func (s *Service) GetOrCreate(ctx context.Context, currentID, otherID uuid.UUID, offeredSkillID *uuid.UUID) (uuid.UUID, bool, error) {
	if currentID == uuid.Nil {
		return uuid.Nil, false, ErrAuthRequired
	}
	if currentID == otherID {
		return uuid.Nil, false, validation("user_id", "cannot start a conversation with yourself")
	}
	if otherID == uuid.Nil {
		return uuid.Nil, false, validation("user_id", "user is required")
	}

	existing, err := s.store.FirstRequestBetween(ctx, currentID, otherID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	if offeredSkillID == nil || *offeredSkillID == uuid.Nil {
		return uuid.Nil, false, validation("offered_skill_id", "must select a skill to offer")
	}

	requested, err := s.store.LatestActiveSkill(ctx, otherID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if requested == nil {
		return uuid.Nil, false, validation("user_id", "user has no active skills to request")
	}

	now := time.Now()
	req := &models.BarterRequest{
		ID:               uuid.New(),
		RequesterID:      currentID,
		RequestedSkillID: requested.ID,
		OfferedSkillID:   *offeredSkillID,
		Status:           models.BarterPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateBarterRequest(ctx, req); err != nil {
		return uuid.Nil, false, err
	}
	return req.ID, true, nil
}
