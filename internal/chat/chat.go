// Package chat is the conversation/message synchronization core: it derives
// a user's conversation list from barter-request rows, loads and appends
// thread messages, and keeps per-session in-memory state live through the
// store's change-notification bus.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-api/internal/models"
)

// Store is the slice of the store gateway this package consumes. Single-row
// lookups return (nil, nil) when the row does not exist.
type Store interface {
	BarterRequests(ctx context.Context) ([]models.BarterRequest, error)
	BarterRequestByID(ctx context.Context, id uuid.UUID) (*models.BarterRequest, error)
	FirstRequestBetween(ctx context.Context, a, b uuid.UUID) (*models.BarterRequest, error)
	CreateBarterRequest(ctx context.Context, req *models.BarterRequest) error
	TouchBarterRequest(ctx context.Context, id uuid.UUID, at time.Time) error

	SkillByID(ctx context.Context, id uuid.UUID) (*models.Skill, error)
	LatestActiveSkill(ctx context.Context, ownerID uuid.UUID) (*models.Skill, error)

	Messages(ctx context.Context, requestID uuid.UUID) ([]models.Message, error)
	LastMessage(ctx context.Context, requestID uuid.UUID) (*models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error

	ProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log.With().Str("component", "chat").Logger()}
}

// Participants resolves the two parties of a request: the requester and the
// owner of the requested skill. ErrNotFound covers both a missing request
// and a request whose skill owner cannot be resolved (an orphan is not a
// valid conversation).
func (s *Service) Participants(ctx context.Context, requestID uuid.UUID) (requester, owner uuid.UUID, err error) {
	req, err := s.store.BarterRequestByID(ctx, requestID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if req == nil {
		return uuid.Nil, uuid.Nil, ErrNotFound
	}
	skill, err := s.store.SkillByID(ctx, req.RequestedSkillID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if skill == nil {
		return uuid.Nil, uuid.Nil, ErrNotFound
	}
	return req.RequesterID, skill.UserID, nil
}
