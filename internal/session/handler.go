package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mohoot/live-server/internal/identity"
	"github.com/mohoot/live-server/internal/quiz"
	httperrors "github.com/mohoot/live-server/pkg/http/errors"
	"github.com/mohoot/live-server/pkg/http/ws"
)

// QuizFetcher looks up quizzes to freeze into sessions.
type QuizFetcher interface {
	GetByID(ctx context.Context, quizID uuid.UUID) (quiz.Quiz, error)
}

// Handler terminates WebSocket connections and routes the game protocol to
// session engines.
type Handler struct {
	manager  *Manager
	hub      *ws.Hub
	store    *SnapshotStore
	identity *identity.Service
	quizzes  QuizFetcher
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler constructs the WebSocket handler.
func NewHandler(
	manager *Manager,
	hub *ws.Hub,
	store *SnapshotStore,
	identitySvc *identity.Service,
	quizzes QuizFetcher,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		manager:  manager,
		hub:      hub,
		store:    store,
		identity: identitySvc,
		quizzes:  quizzes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "session_handler").Logger(),
	}
}

// ServeHTTP upgrades the connection. The identity token travels as a query
// parameter because browsers cannot set headers on WebSocket dials.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := h.identity.Validate(token)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "invalid or missing token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(claims.UserID, c)

	// The request context dies when ServeHTTP returns; the hijacked
	// connection outlives it.
	ctx := context.WithoutCancel(r.Context())

	go c.WritePump()
	go func() {
		defer h.hub.UnregisterConnection(claims.UserID)
		c.ReadPump(func(msg ws.Message) error {
			h.handleMessage(ctx, claims, msg)
			return nil
		})
	}()
}

func (h *Handler) handleMessage(ctx context.Context, claims *identity.Claims, msg ws.Message) {
	var err error
	switch msg.Type {
	case ws.TypeCreateSession:
		err = h.handleCreate(ctx, claims, msg)
	case ws.TypeJoinSession:
		err = h.handleJoin(ctx, claims, msg)
	case ws.TypeResumeSession:
		err = h.handleResume(ctx, claims, msg)
	case ws.TypeLeaveSession:
		err = h.handleLeave(ctx, claims, msg)
	case ws.TypeStartGame:
		err = h.handleHostCommand(ctx, claims, msg, func(e *Engine) (*Session, error) {
			return e.Start(ctx, claims.UserID)
		})
	case ws.TypeRevealLeaderboard:
		err = h.handleHostCommand(ctx, claims, msg, func(e *Engine) (*Session, error) {
			return e.RevealLeaderboard(ctx, claims.UserID)
		})
	case ws.TypeAdvance:
		err = h.handleHostCommand(ctx, claims, msg, func(e *Engine) (*Session, error) {
			return e.Advance(ctx, claims.UserID)
		})
	case ws.TypeEndSession:
		err = h.handleEnd(ctx, claims, msg)
	case ws.TypeSubmitAnswer:
		err = h.handleSubmitAnswer(ctx, claims, msg)
	case ws.TypeBuzz:
		err = h.handleBuzz(ctx, claims, msg)
	case ws.TypeAwardBuzzer:
		err = h.handleJudgment(ctx, claims, msg, true)
	case ws.TypeLockBuzzer:
		err = h.handleJudgment(ctx, claims, msg, false)
	default:
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeUnknownMessageType, "unknown message type "+msg.Type)
		return
	}

	if err != nil {
		h.sendDomainError(claims.UserID, msg.RequestID, err)
	}
}

func (h *Handler) handleCreate(ctx context.Context, claims *identity.Claims, msg ws.Message) error {
	var p ws.CreateSessionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}
	quizID, err := uuid.Parse(p.QuizID)
	if err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed quiz id")
		return nil
	}

	q, err := h.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return err
	}

	engine, err := h.manager.CreateSession(ctx, q, claims.UserID)
	if err != nil {
		return err
	}

	h.hub.JoinSession(engine.PIN(), claims.UserID)
	h.send(claims.UserID, msg.RequestID, ws.TypeSessionCreated, ws.SessionCreatedPayload{PIN: engine.PIN()})
	h.sendSnapshot(claims.UserID, engine.Snapshot())
	return nil
}

func (h *Handler) handleJoin(ctx context.Context, claims *identity.Claims, msg ws.Message) error {
	var p ws.JoinSessionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}

	engine, err := h.manager.Get(ctx, p.PIN)
	if err != nil {
		return err
	}

	nickname := p.Nickname
	if nickname == "" {
		nickname = claims.DisplayName
	}
	sess, err := engine.Join(ctx, claims.UserID, nickname, claims.Photo)
	if err != nil {
		return err
	}

	h.hub.JoinSession(p.PIN, claims.UserID)
	h.sendSnapshot(claims.UserID, sess)
	return nil
}

// handleResume reattaches a reconnecting user. Without an explicit PIN the
// stored resume key decides; a dead PIN clears the key instead of erroring
// the client into a loop.
func (h *Handler) handleResume(ctx context.Context, claims *identity.Claims, msg ws.Message) error {
	var p ws.ResumeSessionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}

	pin := p.PIN
	if pin == "" {
		stored, err := h.store.Resume(ctx, claims.UserID)
		if err != nil {
			return err
		}
		pin = stored
	}

	engine, err := h.manager.Get(ctx, pin)
	if errors.Is(err, ErrSessionNotFound) {
		if clearErr := h.store.ClearResume(ctx, claims.UserID); clearErr != nil {
			h.logger.Warn().Err(clearErr).Stringer("user_id", claims.UserID).Msg("failed to clear resume key")
		}
		return err
	}
	if err != nil {
		return err
	}

	h.hub.JoinSession(pin, claims.UserID)
	h.sendSnapshot(claims.UserID, engine.Snapshot())
	return nil
}

func (h *Handler) handleLeave(ctx context.Context, claims *identity.Claims, msg ws.Message) error {
	var p ws.LeaveSessionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}

	engine, err := h.manager.Get(ctx, p.PIN)
	if err != nil {
		return err
	}
	if _, err := engine.Leave(ctx, claims.UserID); err != nil {
		return err
	}
	h.hub.LeaveSession(p.PIN, claims.UserID)
	return nil
}

func (h *Handler) handleHostCommand(ctx context.Context, claims *identity.Claims, msg ws.Message, op func(*Engine) (*Session, error)) error {
	var p ws.HostCommandPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}

	engine, err := h.manager.Get(ctx, p.PIN)
	if err != nil {
		return err
	}
	_, err = op(engine)
	return err
}

func (h *Handler) handleEnd(ctx context.Context, claims *identity.Claims, msg ws.Message) error {
	var p ws.HostCommandPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}

	engine, err := h.manager.Get(ctx, p.PIN)
	if err != nil {
		return err
	}
	return engine.End(ctx, claims.UserID)
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, claims *identity.Claims, msg ws.Message) error {
	var p ws.SubmitAnswerPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}

	engine, err := h.manager.Get(ctx, p.PIN)
	if err != nil {
		return err
	}

	result, err := engine.SubmitAnswer(ctx, claims.UserID, p.RoundID, p.AnswerIndex, p.AnswerText)
	if err != nil {
		return err
	}

	h.send(claims.UserID, msg.RequestID, ws.TypeAnswerResult, ws.AnswerResultPayload{
		PIN:        p.PIN,
		RoundID:    result.RoundID,
		Correct:    result.Correct,
		Awarded:    result.Awarded,
		TotalScore: result.TotalScore,
	})
	return nil
}

func (h *Handler) handleBuzz(ctx context.Context, claims *identity.Claims, msg ws.Message) error {
	var p ws.BuzzPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}

	engine, err := h.manager.Get(ctx, p.PIN)
	if err != nil {
		return err
	}

	holder, err := engine.Buzz(ctx, claims.UserID)
	if errors.Is(err, ErrBuzzTaken) && holder != nil {
		h.send(claims.UserID, msg.RequestID, ws.TypeBuzzResult, ws.BuzzResultPayload{
			PIN:      p.PIN,
			RoundID:  p.RoundID,
			Accepted: false,
			HolderID: holder.UserID.String(),
		})
		return nil
	}
	if err != nil {
		return err
	}

	h.send(claims.UserID, msg.RequestID, ws.TypeBuzzResult, ws.BuzzResultPayload{
		PIN:      p.PIN,
		RoundID:  p.RoundID,
		Accepted: true,
		HolderID: holder.UserID.String(),
	})
	return nil
}

func (h *Handler) handleJudgment(ctx context.Context, claims *identity.Claims, msg ws.Message, award bool) error {
	var p ws.JudgmentPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed payload")
		return nil
	}
	playerID, err := uuid.Parse(p.PlayerID)
	if err != nil {
		h.sendError(claims.UserID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "malformed player id")
		return nil
	}

	engine, err := h.manager.Get(ctx, p.PIN)
	if err != nil {
		return err
	}

	var result ws.JudgmentResultPayload
	if award {
		awarded, err := engine.AwardBuzzer(ctx, claims.UserID, playerID)
		if err != nil {
			return err
		}
		result = ws.JudgmentResultPayload{PIN: p.PIN, RoundID: awarded.RoundID, PlayerID: p.PlayerID, Awarded: awarded.Awarded}
	} else {
		sess, err := engine.LockBuzzer(ctx, claims.UserID, playerID)
		if err != nil {
			return err
		}
		result = ws.JudgmentResultPayload{PIN: p.PIN, RoundID: sess.RoundID, PlayerID: p.PlayerID, Locked: true}
	}

	h.send(claims.UserID, msg.RequestID, ws.TypeJudgmentResult, result)
	if err := h.hub.SendToUser(playerID, mustMessage(ws.TypeJudgmentResult, result, "")); err != nil {
		h.logger.Debug().Err(err).Str("player_id", p.PlayerID).Msg("judgment delivery skipped")
	}
	return nil
}

func (h *Handler) send(userID uuid.UUID, requestID, msgType string, payload any) {
	if err := h.hub.SendToUser(userID, mustMessage(msgType, payload, requestID)); err != nil {
		h.logger.Debug().Err(err).Stringer("user_id", userID).Msg("send skipped")
	}
}

func (h *Handler) sendSnapshot(userID uuid.UUID, sess *Session) {
	doc, err := json.Marshal(sess)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode snapshot")
		return
	}
	h.send(userID, "", ws.TypeSessionSnapshot, ws.SessionSnapshotPayload{Session: doc})
}

func (h *Handler) sendError(userID uuid.UUID, requestID, code, message string) {
	h.send(userID, requestID, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}

// sendDomainError maps session errors to protocol error codes.
func (h *Handler) sendDomainError(userID uuid.UUID, requestID string, err error) {
	code := httperrors.ErrCodeInternalError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		code = httperrors.ErrCodeSessionNotFound
	case errors.Is(err, ErrPlayerNotFound):
		code = httperrors.ErrCodeJoinFailed
	case errors.Is(err, ErrNotHost):
		code = httperrors.ErrCodeNotHost
	case errors.Is(err, ErrBadTransition):
		code = httperrors.ErrCodeBadTransition
	case errors.Is(err, ErrRoundClosed):
		code = httperrors.ErrCodeRoundClosed
	case errors.Is(err, ErrRoundMismatch):
		code = httperrors.ErrCodeStaleRound
	case errors.Is(err, ErrAlreadyAnswered):
		code = httperrors.ErrCodeAlreadyAnswered
	case errors.Is(err, ErrBuzzTaken):
		code = httperrors.ErrCodeBuzzTaken
	case errors.Is(err, ErrBuzzLocked):
		code = httperrors.ErrCodeBuzzLocked
	case errors.Is(err, ErrBuzzMismatch):
		code = httperrors.ErrCodeBuzzMismatch
	case errors.Is(err, ErrNotBuzzerRound):
		code = httperrors.ErrCodeNotBuzzerRound
	case errors.Is(err, ErrBuzzerRound):
		code = httperrors.ErrCodeBuzzerRound
	case errors.Is(err, quiz.ErrNotFound):
		code = httperrors.ErrCodeQuizNotFound
	case errors.Is(err, ErrPinExhausted):
		code = httperrors.ErrCodeSessionCreateError
	}
	h.sendError(userID, requestID, code, err.Error())
}

func mustMessage(msgType string, payload any, requestID string) ws.Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return ws.Message{Type: msgType, Payload: data, RequestID: requestID}
}
