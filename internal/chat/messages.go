// internal/chat/messages.go
package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/models"
)

// MaxMessageLen is the user-visible message length limit, in characters,
// enforced before any store call.
const MaxMessageLen = 2000

// History returns the full thread for a request, created_at ascending.
// The result is all-or-nothing; a fetch failure returns no messages.
func (s *Service) History(ctx context.Context, requestID uuid.UUID) ([]models.Message, error) {
	return s.store.Messages(ctx, requestID)
}

// Append validates and stores a new message, then bumps the parent
// request's activity timestamp. The two writes are not atomic: if the bump
// fails after the insert succeeded, the message is still delivered and the
// stale thread ordering heals on the next event, so the failure is logged
// and not returned.
func (s *Service) Append(ctx context.Context, requestID, senderID uuid.UUID, content string) (*models.Message, error) {
	if senderID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validation("content", "message content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLen {
		return nil, validation("content", "message is too long")
	}

	msg := &models.Message{
		ID:              uuid.New(),
		BarterRequestID: requestID,
		SenderID:        senderID,
		Content:         content,
		CreatedAt:       time.Now(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.store.TouchBarterRequest(ctx, requestID, msg.CreatedAt); err != nil {
		s.log.Warn().Err(err).
			Str("request_id", requestID.String()).
			Msg("message stored but activity bump failed, thread ordering stale until next event")
	}
	return msg, nil
}
