package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/store"
)

// memStore is an in-memory stand-in for the store gateway.
type memStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]models.BarterRequest
	skills   map[uuid.UUID]models.Skill
	profiles map[uuid.UUID]models.Profile
	messages []models.Message

	failAll   bool // every call errors
	failTouch bool // only the activity bump errors
	calls     map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[uuid.UUID]models.BarterRequest),
		skills:   make(map[uuid.UUID]models.Skill),
		profiles: make(map[uuid.UUID]models.Profile),
		calls:    make(map[string]int),
	}
}

var errStoreDown = errors.New("store unreachable: connection refused")

func (m *memStore) record(op string) error {
	m.calls[op]++
	if m.failAll {
		return errStoreDown
	}
	return nil
}

func (m *memStore) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memStore) addUser(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.profiles[id] = models.Profile{ID: id, FullName: name}
	return id
}

func (m *memStore) addSkill(owner uuid.UUID, title string, active bool) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.skills[id] = models.Skill{
		ID: id, UserID: owner, Title: title, Category: "misc",
		IsActive: active, CreatedAt: time.Now(),
	}
	return id
}

func (m *memStore) addRequest(requester, requestedSkill, offeredSkill uuid.UUID, updatedAt time.Time) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.requests[id] = models.BarterRequest{
		ID: id, RequesterID: requester,
		RequestedSkillID: requestedSkill, OfferedSkillID: offeredSkill,
		Status: models.BarterPending, CreatedAt: updatedAt, UpdatedAt: updatedAt,
	}
	return id
}

func (m *memStore) addMessage(requestID, sender uuid.UUID, content string, at time.Time) models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := models.Message{
		ID: uuid.New(), BarterRequestID: requestID,
		SenderID: sender, Content: content, CreatedAt: at,
	}
	m.messages = append(m.messages, msg)
	return msg
}

func (m *memStore) BarterRequests(ctx context.Context) ([]models.BarterRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("BarterRequests"); err != nil {
		return nil, err
	}
	out := make([]models.BarterRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) BarterRequestByID(ctx context.Context, id uuid.UUID) (*models.BarterRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("BarterRequestByID"); err != nil {
		return nil, err
	}
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memStore) FirstRequestBetween(ctx context.Context, a, b uuid.UUID) (*models.BarterRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FirstRequestBetween"); err != nil {
		return nil, err
	}
	var found *models.BarterRequest
	for _, r := range m.requests {
		skill, ok := m.skills[r.RequestedSkillID]
		if !ok {
			continue
		}
		pair := (r.RequesterID == a && skill.UserID == b) || (r.RequesterID == b && skill.UserID == a)
		if !pair {
			continue
		}
		r := r
		if found == nil || r.UpdatedAt.After(found.UpdatedAt) {
			found = &r
		}
	}
	return found, nil
}

func (m *memStore) CreateBarterRequest(ctx context.Context, req *models.BarterRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateBarterRequest"); err != nil {
		return err
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *memStore) TouchBarterRequest(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("TouchBarterRequest"); err != nil {
		return err
	}
	if m.failTouch {
		return errStoreDown
	}
	if r, ok := m.requests[id]; ok {
		r.UpdatedAt = at
		m.requests[id] = r
	}
	return nil
}

func (m *memStore) SkillByID(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SkillByID"); err != nil {
		return nil, err
	}
	if s, ok := m.skills[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memStore) LatestActiveSkill(ctx context.Context, ownerID uuid.UUID) (*models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("LatestActiveSkill"); err != nil {
		return nil, err
	}
	var found *models.Skill
	for _, s := range m.skills {
		if s.UserID != ownerID || !s.IsActive {
			continue
		}
		s := s
		if found == nil || s.CreatedAt.After(found.CreatedAt) {
			found = &s
		}
	}
	return found, nil
}

func (m *memStore) Messages(ctx context.Context, requestID uuid.UUID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Messages"); err != nil {
		return nil, err
	}
	var out []models.Message
	for _, msg := range m.messages {
		if msg.BarterRequestID == requestID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) LastMessage(ctx context.Context, requestID uuid.UUID) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("LastMessage"); err != nil {
		return nil, err
	}
	var found *models.Message
	for i := range m.messages {
		msg := m.messages[i]
		if msg.BarterRequestID != requestID {
			continue
		}
		if found == nil || !msg.CreatedAt.Before(found.CreatedAt) {
			found = &msg
		}
	}
	return found, nil
}

func (m *memStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateMessage"); err != nil {
		return err
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) ProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ProfileByID"); err != nil {
		return nil, err
	}
	if p, ok := m.profiles[id]; ok {
		return &p, nil
	}
	return nil, nil
}

// memBus is an in-memory change-event bus.
type memBus struct {
	mu            sync.Mutex
	subs          map[string][]*memSub
	failSubscribe bool
}

func newMemBus() *memBus {
	return &memBus{subs: make(map[string][]*memSub)}
}

type memSub struct {
	bus   *memBus
	table string
	ch    chan store.Event
	once  sync.Once
}

func (s *memSub) Events() <-chan store.Event { return s.ch }

func (s *memSub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		subs := s.bus.subs[s.table]
		for i, sub := range subs {
			if sub == s {
				s.bus.subs[s.table] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(s.ch)
	})
	return nil
}

func (b *memBus) Publish(ctx context.Context, ev store.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[ev.Table] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, table string) (store.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSubscribe {
		return nil, errStoreDown
	}
	sub := &memSub{bus: b, table: table, ch: make(chan store.Event, 64)}
	b.subs[table] = append(b.subs[table], sub)
	return sub, nil
}
