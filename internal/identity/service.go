package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Claims carried by an identity token: a stable opaque user id plus the
// profile fields the game needs (display name, avatar).
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Photo       string    `json:"photo,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrEmptyName    = errors.New("display name must not be empty")
)

// Config holds token signing configuration.
type Config struct {
	Secret []byte
	TTL    time.Duration // default: 24 hours
	Issuer string
}

// Service issues and validates identity tokens. The wider auth story
// (passwords, third-party sign-in) lives outside this service; games only
// need a stable uid and a display name.
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	logger zerolog.Logger
}

// NewService creates an identity service.
func NewService(cfg Config, logger zerolog.Logger) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "mohoot-live"
	}
	return &Service{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		logger: logger.With().Str("component", "identity").Logger(),
	}
}

// Issue mints a fresh uid and a signed token for it.
func (s *Service) Issue(displayName, photo string) (string, uuid.UUID, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "", uuid.Nil, ErrEmptyName
	}

	userID := uuid.New()
	now := time.Now()
	claims := Claims{
		UserID:      userID,
		DisplayName: displayName,
		Photo:       photo,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", uuid.Nil, err
	}
	return signed, userID, nil
}

// Validate parses and verifies a token, returning its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
