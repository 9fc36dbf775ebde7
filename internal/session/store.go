package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// UpdatesChannel carries one Event per committed session mutation. Every
// subscriber observes whole-document snapshots in commit order.
const UpdatesChannel = "session:updates"

// Event travels over pub/sub: either a fresh snapshot or a tombstone.
type Event struct {
	PIN     string   `json:"pin"`
	Deleted bool     `json:"deleted,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Session *Session `json:"session,omitempty"`
}

// SnapshotStore persists session documents in Redis, keyed by PIN, and
// republishes the full document on every change. The buzzer claim is the
// only contested field and the only one going through a transactional
// compare-and-swap; everything else is written by the single owning engine.
type SnapshotStore struct {
	redis  *redis.Client
	appID  string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSnapshotStore creates a Redis-backed snapshot store.
func NewSnapshotStore(redisClient *redis.Client, appID string, ttl time.Duration, logger zerolog.Logger) *SnapshotStore {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &SnapshotStore{
		redis:  redisClient,
		appID:  appID,
		ttl:    ttl,
		logger: logger.With().Str("component", "session_store").Logger(),
	}
}

func (s *SnapshotStore) key(pin string) string {
	return fmt.Sprintf("artifacts:%s:sessions:%s", s.appID, pin)
}

func (s *SnapshotStore) resumeKey(userID uuid.UUID) string {
	return fmt.Sprintf("artifacts:%s:users:%s:resume", s.appID, userID.String())
}

// Save persists a snapshot and publishes it to all subscribers.
func (s *SnapshotStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(sess.PIN), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.publish(ctx, Event{PIN: sess.PIN, Session: sess})
	return nil
}

// Load fetches the current snapshot for a PIN.
func (s *SnapshotStore) Load(ctx context.Context, pin string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(pin)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Exists reports whether a session document occupies the PIN.
func (s *SnapshotStore) Exists(ctx context.Context, pin string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(pin)).Result()
	if err != nil {
		return false, fmt.Errorf("check pin: %w", err)
	}
	return n > 0, nil
}

// Delete removes the document and publishes a tombstone so every subscriber
// observes termination within one delivery.
func (s *SnapshotStore) Delete(ctx context.Context, pin, reason string) error {
	if err := s.redis.Del(ctx, s.key(pin)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.publish(ctx, Event{PIN: pin, Deleted: true, Reason: reason})
	return nil
}

// ClaimBuzz performs the transactional compare-and-swap for the buzzer:
// the claim lands only if BuzzedPlayer is still null in the stored
// document. On contention the current holder is returned with ErrBuzzTaken.
func (s *SnapshotStore) ClaimBuzz(ctx context.Context, pin string, claim BuzzClaim) (*BuzzClaim, error) {
	key := s.key(pin)
	var holder *BuzzClaim
	var committed *Session

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		if sess.BuzzedPlayer != nil {
			holder = sess.BuzzedPlayer
			return ErrBuzzTaken
		}

		sess.BuzzedPlayer = &claim
		updated, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			return nil
		})
		if err == nil {
			committed = &sess
		}
		return err
	}

	// Retry on write conflicts; a conflicting writer either claimed the
	// buzzer (next attempt returns ErrBuzzTaken) or touched sibling fields.
	for attempt := 0; attempt < 5; attempt++ {
		err := s.redis.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return holder, err
		}
		s.publish(ctx, Event{PIN: pin, Session: committed})
		return &claim, nil
	}
	return nil, fmt.Errorf("claim buzz: %w", redis.TxFailedErr)
}

// SetResume records the PIN a user should be offered on reconnect.
func (s *SnapshotStore) SetResume(ctx context.Context, userID uuid.UUID, pin string) error {
	if err := s.redis.Set(ctx, s.resumeKey(userID), pin, s.ttl).Err(); err != nil {
		return fmt.Errorf("set resume: %w", err)
	}
	return nil
}

// Resume returns the stored resume PIN, or ErrSessionNotFound.
func (s *SnapshotStore) Resume(ctx context.Context, userID uuid.UUID) (string, error) {
	pin, err := s.redis.Get(ctx, s.resumeKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get resume: %w", err)
	}
	return pin, nil
}

// ClearResume drops the stored resume PIN so a dead session is not retried
// forever.
func (s *SnapshotStore) ClearResume(ctx context.Context, userID uuid.UUID) error {
	if err := s.redis.Del(ctx, s.resumeKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear resume: %w", err)
	}
	return nil
}

func (s *SnapshotStore) publish(ctx context.Context, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn().Err(err).Str("pin", evt.PIN).Msg("failed to marshal session event")
		return
	}
	if err := s.redis.Publish(ctx, UpdatesChannel, data).Err(); err != nil {
		s.logger.Warn().Err(err).Str("pin", evt.PIN).Msg("failed to publish session event")
	}
}
