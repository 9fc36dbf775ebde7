package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mohoot/live-server/internal/db/repository"
	"github.com/mohoot/live-server/internal/identity"
	httperrors "github.com/mohoot/live-server/pkg/http/errors"
)

// HistoryLister reads a user's recent per-answer records.
type HistoryLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]repository.HistoryEntry, error)
}

// HTTPHandler serves the per-user stats summary and answer history.
type HTTPHandler struct {
	aggregator *Aggregator
	history    HistoryLister
	auth       *identity.HTTPHandlers
	logger     zerolog.Logger
}

// NewHTTPHandler creates the stats HTTP handler.
func NewHTTPHandler(aggregator *Aggregator, history HistoryLister, auth *identity.HTTPHandlers, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		aggregator: aggregator,
		history:    history,
		auth:       auth,
		logger:     logger.With().Str("component", "stats_http").Logger(),
	}
}

// HandleGetMe returns the authenticated user's running totals.
func (h *HTTPHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.FromRequest(r)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or missing token")
		return
	}

	totals, err := h.aggregator.Totals(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID.String()).Msg("failed to fetch stats")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeStatsFetchFailed, "Could not load stats")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(totals)
}

type historyRow struct {
	QuizID       string `json:"quizId"`
	QuestionText string `json:"questionText"`
	TimeTakenMs  int64  `json:"timeTakenMs"`
	IsCorrect    bool   `json:"isCorrect"`
	PointsEarned int    `json:"pointsEarned"`
	Timestamp    int64  `json:"timestamp"`
}

// HandleGetHistory returns the authenticated user's most recent answers.
func (h *HTTPHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.FromRequest(r)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or missing token")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.history.ListByUser(r.Context(), claims.UserID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID.String()).Msg("failed to fetch history")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeStatsFetchFailed, "Could not load history")
		return
	}

	rows := make([]historyRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, historyRow{
			QuizID:       e.QuizID.String(),
			QuestionText: e.QuestionText,
			TimeTakenMs:  e.TimeTakenMs,
			IsCorrect:    e.IsCorrect,
			PointsEarned: e.PointsEarned,
			Timestamp:    e.CreatedAt.UnixMilli(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}
