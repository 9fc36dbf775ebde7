package session

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mohoot/live-server/internal/metrics"
	"github.com/mohoot/live-server/internal/quiz"
	"github.com/mohoot/live-server/internal/scoring"
	"github.com/mohoot/live-server/internal/stats"
)

// Manager tracks the engines this instance owns, keyed by PIN, and
// allocates PINs for new sessions.
type Manager struct {
	mu      sync.RWMutex
	engines map[string]*Engine

	store   *SnapshotStore
	scoring *scoring.Engine
	stats   *stats.Aggregator
	history AnswerRecorder
	logger  zerolog.Logger

	preRoll     time.Duration
	maxAttempts int
	pinSource   func() string
}

// NewManager constructs a session manager. maxAttempts bounds PIN
// allocation retries on collision.
func NewManager(
	store *SnapshotStore,
	scorer *scoring.Engine,
	aggregator *stats.Aggregator,
	history AnswerRecorder,
	preRoll time.Duration,
	maxAttempts int,
	logger zerolog.Logger,
) *Manager {
	if maxAttempts <= 0 {
		maxAttempts = 25
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Manager{
		engines:     make(map[string]*Engine),
		store:       store,
		scoring:     scorer,
		stats:       aggregator,
		history:     history,
		logger:      logger.With().Str("component", "session_manager").Logger(),
		preRoll:     preRoll,
		maxAttempts: maxAttempts,
		pinSource: func() string {
			return strconv.Itoa(100000 + rng.Intn(900000))
		},
	}
}

// CreateSession allocates a PIN, freezes the quiz into a new session and
// registers its engine. A colliding PIN is regenerated, never reused.
func (m *Manager) CreateSession(ctx context.Context, q quiz.Quiz, hostID uuid.UUID) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pin, err := m.allocatePIN(ctx)
	if err != nil {
		return nil, err
	}

	sess := NewSession(pin, hostID, q, time.Now().UnixMilli())
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	engine := NewEngine(sess, m.store, m.scoring, m.stats, m.history, m.preRoll, m.logger)
	m.engines[pin] = engine
	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Inc()
	m.logger.Info().Str("pin", pin).Stringer("host_id", hostID).Msg("session created")
	return engine, nil
}

// Get returns the engine for a PIN, rehydrating it from the store when the
// session exists but is not held by this instance yet.
func (m *Manager) Get(ctx context.Context, pin string) (*Engine, error) {
	m.mu.RLock()
	engine, ok := m.engines[pin]
	m.mu.RUnlock()
	if ok {
		return engine, nil
	}

	sess, err := m.store.Load(ctx, pin)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if engine, ok := m.engines[pin]; ok {
		return engine, nil
	}
	engine = NewEngine(sess, m.store, m.scoring, m.stats, m.history, m.preRoll, m.logger)
	m.engines[pin] = engine
	metrics.ActiveSessions.Inc()
	m.logger.Info().Str("pin", pin).Msg("session rehydrated from store")
	return engine, nil
}

// Remove drops an engine after its session ended.
func (m *Manager) Remove(pin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[pin]; ok {
		delete(m.engines, pin)
		metrics.ActiveSessions.Dec()
	}
}

func (m *Manager) allocatePIN(ctx context.Context) (string, error) {
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		pin := m.pinSource()
		if _, held := m.engines[pin]; held {
			continue
		}
		taken, err := m.store.Exists(ctx, pin)
		if err != nil {
			return "", err
		}
		if !taken {
			return pin, nil
		}
	}
	return "", ErrPinExhausted
}
