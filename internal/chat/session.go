// internal/chat/session.go
package chat

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/store"
)

// ChannelState tracks one subscription channel of a session.
type ChannelState int32

const (
	StateDisconnected ChannelState = iota
	StateSubscribing
	StateActive
	StateError
)

func (s ChannelState) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// Update is what a session pushes to its transport.
type Update struct {
	Type          string          `json:"type"` // "message" | "conversations"
	Message       *models.Message `json:"message,omitempty"`
	Conversations []Conversation  `json:"conversations,omitempty"`
}

type refreshResult struct {
	convs []Conversation
	err   error
}

// Session is the live sync engine for one user session. A single goroutine
// (Run) owns all mutable state: events from the two subscription channels,
// locally injected writes and refresh triggers all funnel into that loop,
// so merges never race with an in-flight recomputation. The derived
// conversation list is swapped wholesale as a snapshot; readers see the old
// or the new list, never a partial one.
type Session struct {
	user uuid.UUID
	svc  *Service
	bus  store.Bus
	log  zerolog.Logger

	threads map[uuid.UUID][]models.Message
	seen    map[uuid.UUID]struct{}

	convs atomic.Value // []Conversation, last-known-good

	events    chan store.Event
	ops       chan func()
	refreshCh chan struct{}
	updates   chan Update

	msgState atomic.Int32
	reqState atomic.Int32

	done chan struct{}
}

func NewSession(user uuid.UUID, svc *Service, bus store.Bus, log zerolog.Logger) *Session {
	s := &Session{
		user:      user,
		svc:       svc,
		bus:       bus,
		log:       log.With().Str("component", "session").Str("user_id", user.String()).Logger(),
		threads:   make(map[uuid.UUID][]models.Message),
		seen:      make(map[uuid.UUID]struct{}),
		events:    make(chan store.Event, 64),
		ops:       make(chan func(), 32),
		refreshCh: make(chan struct{}, 1),
		updates:   make(chan Update, 64),
		done:      make(chan struct{}),
	}
	s.convs.Store([]Conversation(nil))
	return s
}

func (s *Session) UserID() uuid.UUID { return s.user }

// Updates delivers engine output. The channel is closed when Run returns.
func (s *Session) Updates() <-chan Update { return s.updates }

// Conversations returns the last successfully derived list.
func (s *Session) Conversations() []Conversation {
	convs, _ := s.convs.Load().([]Conversation)
	return convs
}

// MessageChannelState and RequestChannelState expose the two subscription
// channel states, mainly for logging and tests.
func (s *Session) MessageChannelState() ChannelState { return ChannelState(s.msgState.Load()) }
func (s *Session) RequestChannelState() ChannelState { return ChannelState(s.reqState.Load()) }

// Refresh requests a conversation-list recomputation. Triggers coalesce:
// requesting while one is queued or running is never lost and never stacks.
func (s *Session) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// Inject merges a locally written message without waiting for the bus
// round trip. The id-based merge makes the later bus delivery a no-op.
func (s *Session) Inject(msg models.Message) {
	select {
	case s.ops <- func() { s.mergeMessage(msg) }:
	case <-s.done:
	}
}

// LoadThread fetches a thread's history and seeds the in-memory thread
// state with it, returning the merged result.
func (s *Session) LoadThread(ctx context.Context, requestID uuid.UUID) ([]models.Message, error) {
	msgs, err := s.svc.History(ctx, requestID)
	if err != nil {
		return nil, err
	}

	out := make(chan []models.Message, 1)
	op := func() {
		for _, m := range msgs {
			s.mergeMessage(m)
		}
		out <- s.threadCopy(requestID)
	}
	select {
	case s.ops <- op:
	case <-s.done:
		return msgs, nil
	}
	select {
	case merged := <-out:
		return merged, nil
	case <-s.done:
		return msgs, nil
	}
}

// Thread returns a copy of the in-memory thread state.
func (s *Session) Thread(requestID uuid.UUID) []models.Message {
	out := make(chan []models.Message, 1)
	select {
	case s.ops <- func() { out <- s.threadCopy(requestID) }:
	case <-s.done:
		return nil
	}
	select {
	case msgs := <-out:
		return msgs
	case <-s.done:
		return nil
	}
}

// Run subscribes to both change channels and drives the reconciliation
// loop until ctx is cancelled. Both subscriptions are torn down on every
// exit path.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	defer close(s.updates)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.pump(ctx, store.TableMessages, &s.msgState)
	}()
	go func() {
		defer wg.Done()
		s.pump(ctx, store.TableBarterRequests, &s.reqState)
	}()
	defer wg.Wait()

	// initial derivation
	s.Refresh()

	var inFlight, pending bool
	results := make(chan refreshResult, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-s.events:
			s.handleEvent(ev)

		case op := <-s.ops:
			op()

		case <-s.refreshCh:
			if inFlight {
				pending = true
				continue
			}
			inFlight = true
			s.startRecompute(ctx, results)

		case res := <-results:
			inFlight = false
			if res.err != nil {
				// keep last-known-good snapshot
				s.log.Warn().Err(res.err).Msg("conversation recompute failed")
			} else {
				s.convs.Store(res.convs)
				s.emit(Update{Type: "conversations", Conversations: res.convs})
			}
			if pending {
				pending = false
				inFlight = true
				s.startRecompute(ctx, results)
			}
		}
	}
}

func (s *Session) startRecompute(ctx context.Context, results chan<- refreshResult) {
	go func() {
		convs, err := s.svc.Conversations(ctx, s.user)
		results <- refreshResult{convs: convs, err: err}
	}()
}

// handleEvent reconciles one bus event. Message inserts merge into thread
// state and refresh the list; any barter-request change invalidates the
// list wholesale, with no field diffing.
func (s *Session) handleEvent(ev store.Event) {
	switch ev.Table {
	case store.TableMessages:
		if ev.Type != store.EventInsert {
			return
		}
		var msg models.Message
		if err := json.Unmarshal(ev.Record, &msg); err != nil {
			s.log.Warn().Err(err).Msg("dropping undecodable message event")
			return
		}
		if msg.BarterRequestID == uuid.Nil {
			s.log.Debug().Msg("dropping message event without request id")
			return
		}
		s.mergeMessage(msg)

	case store.TableBarterRequests:
		s.Refresh()
	}
}

// mergeMessage inserts one message into its thread, keyed by message id:
// delivering the same message twice (reconnect replay, or the redundant
// local+bus write paths) is a no-op. Runs only on the Run goroutine.
func (s *Session) mergeMessage(msg models.Message) {
	if _, dup := s.seen[msg.ID]; dup {
		return
	}
	s.seen[msg.ID] = struct{}{}

	thread := s.threads[msg.BarterRequestID]
	// usually an append; otherwise place by created_at, keeping arrival
	// order for equal timestamps
	i := sort.Search(len(thread), func(i int) bool {
		return thread[i].CreatedAt.After(msg.CreatedAt)
	})
	thread = append(thread, models.Message{})
	copy(thread[i+1:], thread[i:])
	thread[i] = msg
	s.threads[msg.BarterRequestID] = thread

	s.emit(Update{Type: "message", Message: &msg})

	// refresh ordering and preview; transient staleness between the merge
	// and the list swap is acceptable and self-heals
	s.Refresh()
}

func (s *Session) threadCopy(requestID uuid.UUID) []models.Message {
	thread := s.threads[requestID]
	out := make([]models.Message, len(thread))
	copy(out, thread)
	return out
}

// emit never blocks the reconciliation loop; a slow consumer loses
// updates and recovers through refresh.
func (s *Session) emit(upd Update) {
	select {
	case s.updates <- upd:
	default:
		s.log.Warn().Str("type", upd.Type).Msg("update buffer full, dropping update")
	}
}

// pump owns one subscription channel: subscribe, forward events into the
// reconciliation loop, and re-subscribe with backoff when the feed drops.
// Replayed events after a reconnect are absorbed by the id-based merge.
func (s *Session) pump(ctx context.Context, table string, state *atomic.Int32) {
	defer state.Store(int32(StateDisconnected))

	backoff := time.Second
	for ctx.Err() == nil {
		state.Store(int32(StateSubscribing))
		sub, err := s.bus.Subscribe(ctx, table)
		if err != nil {
			state.Store(int32(StateError))
			s.log.Warn().Err(err).Str("table", table).Dur("retry_in", backoff).Msg("subscribe failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		state.Store(int32(StateActive))
		backoff = time.Second
		s.forward(ctx, sub)
		if ctx.Err() == nil {
			state.Store(int32(StateError))
			s.log.Warn().Str("table", table).Msg("subscription dropped, resubscribing")
		}
	}
}

// forward drains one subscription until it ends or ctx is cancelled. The
// subscription is always closed before returning.
func (s *Session) forward(ctx context.Context, sub store.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
