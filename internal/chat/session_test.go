package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/store"
)

func startSession(t *testing.T, st *memStore, bus *memBus, user uuid.UUID) *Session {
	t.Helper()
	sess := NewSession(user, testService(st), bus, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sess.Run(ctx)

	// keep the update channel drained; tests assert on state, not output
	go func() {
		for range sess.Updates() {
		}
	}()
	return sess
}

func waitActive(t *testing.T, sess *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sess.MessageChannelState() == StateActive && sess.RequestChannelState() == StateActive
	}, 2*time.Second, 10*time.Millisecond, "both channels must reach Active")
}

func publishMessage(t *testing.T, bus *memBus, msg models.Message) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), store.Event{
		Table: store.TableMessages, Type: store.EventInsert, Record: raw,
	}))
}

// waitMerged publishes a sentinel message and blocks until it shows up,
// which proves every previously published event has been reconciled.
func waitMerged(t *testing.T, bus *memBus, sess *Session) {
	t.Helper()
	sentinelThread := uuid.New()
	publishMessage(t, bus, models.Message{
		ID: uuid.New(), BarterRequestID: sentinelThread,
		SenderID: uuid.New(), Content: "sentinel", CreatedAt: time.Now(),
	})
	require.Eventually(t, func() bool {
		return len(sess.Thread(sentinelThread)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionMergeIsIdempotent(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	alice := st.addUser("Alice")
	sess := startSession(t, st, bus, alice)
	waitActive(t, sess)

	reqID := uuid.New()
	msg := models.Message{
		ID: uuid.New(), BarterRequestID: reqID,
		SenderID: uuid.New(), Content: "hi", CreatedAt: time.Now(),
	}
	publishMessage(t, bus, msg)
	publishMessage(t, bus, msg) // duplicate delivery
	waitMerged(t, bus, sess)

	assert.Len(t, sess.Thread(reqID), 1, "the same message delivered twice must merge once")
}

func TestSessionDropsMessageWithoutRequestID(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	alice := st.addUser("Alice")
	sess := startSession(t, st, bus, alice)
	waitActive(t, sess)

	publishMessage(t, bus, models.Message{
		ID: uuid.New(), SenderID: uuid.New(), Content: "stray", CreatedAt: time.Now(),
	})
	waitMerged(t, bus, sess)

	assert.Empty(t, sess.Thread(uuid.Nil))
}

func TestSessionLocalInjectDeduplicatesBusDelivery(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	alice := st.addUser("Alice")
	sess := startSession(t, st, bus, alice)
	waitActive(t, sess)

	reqID := uuid.New()
	msg := models.Message{
		ID: uuid.New(), BarterRequestID: reqID,
		SenderID: alice, Content: "hi", CreatedAt: time.Now(),
	}
	sess.Inject(msg)      // local write path
	publishMessage(t, bus, msg) // bus replay of the same row
	waitMerged(t, bus, sess)

	assert.Len(t, sess.Thread(reqID), 1)
}

func TestSessionRequestEventTriggersRecompute(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	alice := st.addUser("Alice")
	bob := st.addUser("Bob")
	aliceSkill := st.addSkill(alice, "guitar lessons", true)
	bobSkill := st.addSkill(bob, "french lessons", true)

	sess := startSession(t, st, bus, alice)
	waitActive(t, sess)
	require.Eventually(t, func() bool { return sess.Conversations() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, sess.Conversations())

	st.addRequest(alice, bobSkill, aliceSkill, time.Now())
	require.NoError(t, bus.Publish(context.Background(), store.Event{
		Table: store.TableBarterRequests, Type: store.EventInsert,
	}))

	require.Eventually(t, func() bool {
		convs := sess.Conversations()
		return len(convs) == 1 && convs[0].Other.FullName == "Bob"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionNewMessageReordersList(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	alice := st.addUser("Alice")
	bob := st.addUser("Bob")
	carol := st.addUser("Carol")
	aliceSkill := st.addSkill(alice, "guitar lessons", true)
	bobSkill := st.addSkill(bob, "french lessons", true)
	carolSkill := st.addSkill(carol, "yoga", true)

	t1 := time.Now().Add(-time.Hour)
	bobReq := st.addRequest(alice, bobSkill, aliceSkill, t1)
	st.addRequest(alice, carolSkill, aliceSkill, time.Now().Add(-time.Minute))

	sess := startSession(t, st, bus, alice)
	waitActive(t, sess)
	require.Eventually(t, func() bool { return len(sess.Conversations()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Carol", sess.Conversations()[0].Other.FullName)

	// Bob replies at t2, newer than every other thread's activity
	t2 := time.Now()
	msg := st.addMessage(bobReq, bob, "sorry for the silence!", t2)
	require.NoError(t, st.TouchBarterRequest(context.Background(), bobReq, t2))
	publishMessage(t, bus, msg)

	require.Eventually(t, func() bool {
		convs := sess.Conversations()
		return len(convs) == 2 &&
			convs[0].Other.FullName == "Bob" &&
			convs[0].LastMessage != nil &&
			convs[0].LastMessage.Content == "sorry for the silence!"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, sess.Thread(bobReq), 1)
}

func TestSessionKeepsLastKnownGoodOnRecomputeFailure(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	alice := st.addUser("Alice")
	bob := st.addUser("Bob")
	st.addRequest(alice, st.addSkill(bob, "x", true), st.addSkill(alice, "y", true), time.Now())

	sess := startSession(t, st, bus, alice)
	waitActive(t, sess)
	require.Eventually(t, func() bool { return len(sess.Conversations()) == 1 }, 2*time.Second, 10*time.Millisecond)

	st.mu.Lock()
	st.failAll = true
	st.mu.Unlock()
	sess.Refresh()

	assert.Never(t, func() bool {
		return len(sess.Conversations()) != 1
	}, 300*time.Millisecond, 25*time.Millisecond, "failed recompute must keep the previous snapshot")
}

func TestSessionLoadThreadSeedsState(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	alice := st.addUser("Alice")
	bob := st.addUser("Bob")
	reqID := st.addRequest(alice, st.addSkill(bob, "x", true), st.addSkill(alice, "y", true), time.Now())

	now := time.Now()
	st.addMessage(reqID, alice, "first", now.Add(-time.Minute))
	st.addMessage(reqID, bob, "second", now)

	sess := startSession(t, st, bus, alice)
	waitActive(t, sess)

	msgs, err := sess.LoadThread(context.Background(), reqID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)

	// loading twice must not duplicate anything
	msgs, err = sess.LoadThread(context.Background(), reqID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestSessionChannelLifecycle(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	alice := st.addUser("Alice")

	sess := NewSession(alice, testService(st), bus, zerolog.Nop())
	assert.Equal(t, StateDisconnected, sess.MessageChannelState())

	ctx, cancel := context.WithCancel(context.Background())
	go sess.Run(ctx)
	go func() {
		for range sess.Updates() {
		}
	}()
	waitActive(t, sess)

	cancel()
	require.Eventually(t, func() bool {
		return sess.MessageChannelState() == StateDisconnected &&
			sess.RequestChannelState() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond, "both subscriptions torn down on exit")

	bus.mu.Lock()
	remaining := len(bus.subs[store.TableMessages]) + len(bus.subs[store.TableBarterRequests])
	bus.mu.Unlock()
	assert.Zero(t, remaining, "no leaked subscriptions")
}

func TestSessionSubscribeFailureMarksError(t *testing.T) {
	st := newMemStore()
	bus := newMemBus()
	bus.failSubscribe = true
	alice := st.addUser("Alice")

	sess := startSession(t, st, bus, alice)
	require.Eventually(t, func() bool {
		return sess.MessageChannelState() == StateError
	}, 2*time.Second, 10*time.Millisecond)
}
