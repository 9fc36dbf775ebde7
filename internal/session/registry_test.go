package session

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohoot/live-server/internal/quiz"
	"github.com/mohoot/live-server/internal/scoring"
	"github.com/mohoot/live-server/internal/stats"
)

func newTestManager(t *testing.T) (*Manager, *SnapshotStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewSnapshotStore(client, "test-app", time.Hour, zerolog.Nop())
	aggregator := stats.NewAggregator(client, "test-app", zerolog.Nop())
	scorer := scoring.NewEngine(scoring.DefaultConfig())
	return NewManager(store, scorer, aggregator, nil, 0, 25, zerolog.Nop()), store
}

func fixtureQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:    uuid.New(),
		Title: "fixture",
		Questions: []quiz.Question{
			{Text: "q", Type: quiz.TypeChoice, Answers: []string{"a", "b", "c", "d"}, Correct: 0, Duration: 20},
		},
	}
}

func TestCreateSessionAllocatesPIN(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()
	hostID := uuid.New()

	engine, err := manager.CreateSession(ctx, fixtureQuiz(), hostID)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[1-9]\d{5}$`), engine.PIN())
	assert.Equal(t, hostID, engine.HostID())

	sess, err := store.Load(ctx, engine.PIN())
	require.NoError(t, err)
	assert.Equal(t, StatusLobby, sess.Status)
	assert.Equal(t, hostID, sess.HostID)
}

func TestCreateSessionRegeneratesOnCollision(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	// Occupy a PIN and force the first allocation attempts onto it.
	taken := NewSession("123456", uuid.New(), fixtureQuiz(), 0)
	require.NoError(t, store.Save(ctx, taken))

	pins := []string{"123456", "123456", "654321"}
	calls := 0
	manager.pinSource = func() string {
		pin := pins[calls%len(pins)]
		calls++
		return pin
	}

	engine, err := manager.CreateSession(ctx, fixtureQuiz(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "654321", engine.PIN())
	assert.Equal(t, 3, calls)
}

func TestCreateSessionExhaustsAttempts(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	taken := NewSession("123456", uuid.New(), fixtureQuiz(), 0)
	require.NoError(t, store.Save(ctx, taken))
	manager.pinSource = func() string { return "123456" }

	_, err := manager.CreateSession(ctx, fixtureQuiz(), uuid.New())
	assert.ErrorIs(t, err, ErrPinExhausted)
}

func TestGetRehydratesFromStore(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	sess := NewSession("222222", uuid.New(), fixtureQuiz(), 0)
	sess.Players[uuid.New().String()] = &PlayerRecord{Nickname: "carol", Score: 1250}
	require.NoError(t, store.Save(ctx, sess))

	engine, err := manager.Get(ctx, "222222")
	require.NoError(t, err)

	snapshot := engine.Snapshot()
	assert.Equal(t, "222222", snapshot.PIN)
	require.Len(t, snapshot.Players, 1)

	// Second lookup returns the same engine, not a second owner.
	again, err := manager.Get(ctx, "222222")
	require.NoError(t, err)
	assert.Same(t, engine, again)
}

func TestGetUnknownPIN(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.Get(context.Background(), "999999")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRemoveDropsEngine(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	engine, err := manager.CreateSession(ctx, fixtureQuiz(), uuid.New())
	require.NoError(t, err)
	pin := engine.PIN()

	manager.Remove(pin)

	// The document survives; Get rebuilds an engine around it.
	require.NoError(t, store.Save(ctx, engine.Snapshot()))
	rebuilt, err := manager.Get(ctx, pin)
	require.NoError(t, err)
	assert.NotSame(t, engine, rebuilt)
}
