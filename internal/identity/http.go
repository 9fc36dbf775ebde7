package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	httperrors "github.com/mohoot/live-server/pkg/http/errors"
)

// HTTPHandlers exposes the identity endpoints.
type HTTPHandlers struct {
	svc *Service
}

// NewHTTPHandlers creates identity HTTP handlers.
func NewHTTPHandlers(svc *Service) *HTTPHandlers {
	return &HTTPHandlers{svc: svc}
}

type guestRequest struct {
	DisplayName string `json:"display_name"`
	Photo       string `json:"photo,omitempty"`
}

type guestResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// CreateGuest issues a guest identity token for a display name.
func (h *HTTPHandlers) CreateGuest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "POST required")
		return
	}

	var req guestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidPayload, "Invalid request body")
		return
	}

	token, userID, err := h.svc.Issue(req.DisplayName, req.Photo)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "display_name")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(guestResponse{
		Token:       token,
		UserID:      userID.String(),
		DisplayName: strings.TrimSpace(req.DisplayName),
	})
}

// FromRequest extracts and validates the bearer token on an HTTP request.
func (h *HTTPHandlers) FromRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return nil, ErrInvalidToken
	}
	return h.svc.Validate(token)
}
