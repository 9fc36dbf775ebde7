package identity

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(ttl time.Duration) *Service {
	return NewService(Config{
		Secret: []byte("test-secret"),
		TTL:    ttl,
		Issuer: "test",
	}, zerolog.Nop())
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestService(time.Hour)

	token, userID, err := svc.Issue("Alice", "https://example.com/a.png")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.Equal(t, "https://example.com/a.png", claims.Photo)
}

func TestIssueTrimsName(t *testing.T) {
	svc := newTestService(time.Hour)

	token, _, err := svc.Issue("  Bob  ", "")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "Bob", claims.DisplayName)
}

func TestIssueEmptyName(t *testing.T) {
	svc := newTestService(time.Hour)

	_, _, err := svc.Issue("   ", "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := newTestService(time.Hour)

	_, err := svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	svc := newTestService(time.Hour)
	other := NewService(Config{Secret: []byte("other-secret"), TTL: time.Hour, Issuer: "test"}, zerolog.Nop())

	token, _, err := other.Issue("Mallory", "")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := newTestService(-time.Minute)

	token, _, err := svc.Issue("Carol", "")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
