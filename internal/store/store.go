// Package store is the typed gateway to the relational datastore plus the
// change-notification bus. Single-row lookups return (nil, nil) when the row
// does not exist; any other failure wraps ErrUnavailable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/skillswap/skillswap-api/internal/models"
)

// ErrUnavailable marks failures to reach the datastore.
var ErrUnavailable = errors.New("store unreachable")

type Gorm struct {
	db  *gorm.DB
	bus Bus
	log zerolog.Logger
}

func NewGorm(db *gorm.DB, bus Bus, log zerolog.Logger) *Gorm {
	return &Gorm{db: db, bus: bus, log: log.With().Str("component", "store").Logger()}
}

func wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// one maps gorm's not-found error to the (nil, nil) contract.
func one[T any](out *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrap(err)
	}
	return out, nil
}

// notify publishes a change event; delivery is best effort, a missed
// notification is recovered by the next manual refresh.
func (s *Gorm) notify(ctx context.Context, table string, typ EventType, record any) {
	if s.bus == nil {
		return
	}
	ev := Event{Table: table, Type: typ}
	if record != nil {
		raw, err := json.Marshal(record)
		if err != nil {
			s.log.Warn().Err(err).Str("table", table).Msg("cannot encode event record")
			return
		}
		ev.Record = raw
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("event publish failed")
	}
}

// --- barter requests -------------------------------------------------

// BarterRequests returns every request ordered by last activity, newest
// first. The caller classifies which rows it participates in.
func (s *Gorm) BarterRequests(ctx context.Context) ([]models.BarterRequest, error) {
	var reqs []models.BarterRequest
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&reqs).Error; err != nil {
		return nil, wrap(err)
	}
	return reqs, nil
}

func (s *Gorm) BarterRequestByID(ctx context.Context, id uuid.UUID) (*models.BarterRequest, error) {
	var req models.BarterRequest
	return one(&req, s.db.WithContext(ctx).First(&req, "id = ?", id).Error)
}

// FirstRequestBetween finds an existing request whose participants are
// exactly the (a, b) pair in either role, newest activity first.
func (s *Gorm) FirstRequestBetween(ctx context.Context, a, b uuid.UUID) (*models.BarterRequest, error) {
	var req models.BarterRequest
	err := s.db.WithContext(ctx).
		Joins("JOIN skills ON skills.id = barter_requests.requested_skill_id").
		Where("(barter_requests.requester_id = ? AND skills.user_id = ?) OR (barter_requests.requester_id = ? AND skills.user_id = ?)",
			a, b, b, a).
		Order("barter_requests.updated_at DESC").
		First(&req).Error
	return one(&req, err)
}

// BarterRequestsForUser returns the requests the user participates in,
// as requester or as requested-skill owner, newest activity first.
func (s *Gorm) BarterRequestsForUser(ctx context.Context, userID uuid.UUID) ([]models.BarterRequest, error) {
	var reqs []models.BarterRequest
	err := s.db.WithContext(ctx).
		Preload("RequestedSkill").
		Preload("OfferedSkill").
		Joins("JOIN skills ON skills.id = barter_requests.requested_skill_id").
		Where("barter_requests.requester_id = ? OR skills.user_id = ?", userID, userID).
		Order("barter_requests.updated_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, wrap(err)
	}
	return reqs, nil
}

func (s *Gorm) CreateBarterRequest(ctx context.Context, req *models.BarterRequest) error {
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return wrap(err)
	}
	s.notify(ctx, TableBarterRequests, EventInsert, req)
	return nil
}

func (s *Gorm) UpdateBarterStatus(ctx context.Context, id uuid.UUID, status models.BarterStatus) error {
	res := s.db.WithContext(ctx).Model(&models.BarterRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return wrap(res.Error)
	}
	s.notify(ctx, TableBarterRequests, EventUpdate, map[string]interface{}{"id": id, "status": status})
	return nil
}

// TouchBarterRequest bumps the request's activity timestamp.
func (s *Gorm) TouchBarterRequest(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.BarterRequest{}).
		Where("id = ?", id).
		Update("updated_at", at)
	if res.Error != nil {
		return wrap(res.Error)
	}
	s.notify(ctx, TableBarterRequests, EventUpdate, map[string]interface{}{"id": id, "updated_at": at})
	return nil
}

// --- skills ----------------------------------------------------------

func (s *Gorm) SkillByID(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	var skill models.Skill
	return one(&skill, s.db.WithContext(ctx).First(&skill, "id = ?", id).Error)
}

func (s *Gorm) Skills(ctx context.Context, category string) ([]models.Skill, error) {
	q := s.db.WithContext(ctx).Where("is_active = true").Order("created_at DESC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var skills []models.Skill
	if err := q.Find(&skills).Error; err != nil {
		return nil, wrap(err)
	}
	return skills, nil
}

func (s *Gorm) SkillsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Skill, error) {
	var skills []models.Skill
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&skills).Error
	if err != nil {
		return nil, wrap(err)
	}
	return skills, nil
}

// LatestActiveSkill returns the owner's most recently created active
// skill, or (nil, nil) if they have none.
func (s *Gorm) LatestActiveSkill(ctx context.Context, ownerID uuid.UUID) (*models.Skill, error) {
	var skill models.Skill
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = true", ownerID).
		Order("created_at DESC").
		First(&skill).Error
	return one(&skill, err)
}

func (s *Gorm) CreateSkill(ctx context.Context, skill *models.Skill) error {
	if err := s.db.WithContext(ctx).Create(skill).Error; err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Gorm) SetSkillActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.db.WithContext(ctx).Model(&models.Skill{}).
		Where("id = ?", id).
		Update("is_active", active).Error; err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Gorm) SkillCategories(ctx context.Context) ([]string, error) {
	var cats []string
	err := s.db.WithContext(ctx).Model(&models.Skill{}).
		Where("is_active = true").
		Distinct("category").
		Order("category").
		Pluck("category", &cats).Error
	if err != nil {
		return nil, wrap(err)
	}
	return cats, nil
}

// --- messages --------------------------------------------------------

// Messages returns the full thread, created_at ascending with id as the
// tie-breaker so replays keep a stable order.
func (s *Gorm) Messages(ctx context.Context, requestID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("barter_request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, wrap(err)
	}
	return msgs, nil
}

func (s *Gorm) LastMessage(ctx context.Context, requestID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("barter_request_id = ?", requestID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	return one(&msg, err)
}

func (s *Gorm) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return wrap(err)
	}
	s.notify(ctx, TableMessages, EventInsert, msg)
	return nil
}

// --- users / profiles ------------------------------------------------

// ProfileByID reads the public projection, never the raw user row.
func (s *Gorm) ProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	return one(&p, s.db.WithContext(ctx).First(&p, "id = ?", id).Error)
}

func (s *Gorm) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	return one(&u, s.db.WithContext(ctx).First(&u, "id = ?", id).Error)
}

func (s *Gorm) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	return one(&u, s.db.WithContext(ctx).First(&u, "email = ?", email).Error)
}

func (s *Gorm) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return wrap(err)
	}
	return nil
}
