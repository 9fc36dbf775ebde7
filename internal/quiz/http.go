package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mohoot/live-server/internal/identity"
	httperrors "github.com/mohoot/live-server/pkg/http/errors"
)

// Repository is the persistence surface the HTTP handlers need.
type Repository interface {
	Create(ctx context.Context, q Quiz) (uuid.UUID, error)
	GetByID(ctx context.Context, quizID uuid.UUID) (Quiz, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Quiz, error)
	Update(ctx context.Context, q Quiz) error
	Delete(ctx context.Context, quizID, ownerID uuid.UUID) error
}

// HTTPHandlers exposes authenticated quiz CRUD.
type HTTPHandlers struct {
	repo   Repository
	auth   *identity.HTTPHandlers
	logger zerolog.Logger
}

// NewHTTPHandlers constructs quiz HTTP handlers.
func NewHTTPHandlers(repo Repository, auth *identity.HTTPHandlers, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		repo:   repo,
		auth:   auth,
		logger: logger.With().Str("component", "quiz_http").Logger(),
	}
}

type quizRequest struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

type quizResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// HandleCreate handles POST /v1/quizzes.
func (h *HTTPHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authorize(w, r)
	if err != nil {
		return
	}

	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed request body")
		return
	}

	q := Quiz{
		OwnerID:   claims.UserID,
		Title:     req.Title,
		Questions: req.Questions,
	}
	q.Normalize()
	if err := q.Validate(); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
		return
	}

	id, err := h.repo.Create(r.Context(), q)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create quiz")
		httperrors.RespondInternalError(w, "failed to save quiz")
		return
	}

	writeJSON(w, http.StatusCreated, quizResponse{ID: id.String(), Title: q.Title, Questions: q.Questions})
}

// HandleList handles GET /v1/quizzes.
func (h *HTTPHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authorize(w, r)
	if err != nil {
		return
	}

	quizzes, err := h.repo.ListByOwner(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list quizzes")
		httperrors.RespondInternalError(w, "failed to list quizzes")
		return
	}

	out := make([]quizResponse, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, quizResponse{ID: q.ID.String(), Title: q.Title, Questions: q.Questions})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /v1/quizzes/{id}.
func (h *HTTPHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authorize(w, r); err != nil {
		return
	}

	quizID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed quiz id")
		return
	}

	q, err := h.repo.GetByID(r.Context(), quizID)
	if errors.Is(err, ErrNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "quiz not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to fetch quiz")
		httperrors.RespondInternalError(w, "failed to fetch quiz")
		return
	}

	writeJSON(w, http.StatusOK, quizResponse{ID: q.ID.String(), Title: q.Title, Questions: q.Questions})
}

// HandleUpdate handles PUT /v1/quizzes/{id}.
func (h *HTTPHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authorize(w, r)
	if err != nil {
		return
	}

	quizID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed quiz id")
		return
	}

	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed request body")
		return
	}

	q := Quiz{
		ID:        quizID,
		OwnerID:   claims.UserID,
		Title:     req.Title,
		Questions: req.Questions,
	}
	q.Normalize()
	if err := q.Validate(); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
		return
	}

	if err := h.repo.Update(r.Context(), q); err != nil {
		if errors.Is(err, ErrNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "quiz not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to update quiz")
		httperrors.RespondInternalError(w, "failed to update quiz")
		return
	}

	writeJSON(w, http.StatusOK, quizResponse{ID: quizID.String(), Title: q.Title, Questions: q.Questions})
}

// HandleDelete handles DELETE /v1/quizzes/{id}.
func (h *HTTPHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authorize(w, r)
	if err != nil {
		return
	}

	quizID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed quiz id")
		return
	}

	if err := h.repo.Delete(r.Context(), quizID, claims.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "quiz not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete quiz")
		httperrors.RespondInternalError(w, "failed to delete quiz")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandlers) authorize(w http.ResponseWriter, r *http.Request) (*identity.Claims, error) {
	claims, err := h.auth.FromRequest(r)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or missing token")
		return nil, err
	}
	return claims, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
