package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"superid/internal/domain"
	"superid/internal/middleware"
	"superid/internal/service"
	"superid/pkg/response"

	"github.com/go-playground/validator/v10"
)

type loginTokenService interface {
	Issue(ctx context.Context, apiKey, url string) (*domain.PerformAuthResponse, error)
	Resolve(ctx context.Context, raw string) (*domain.LoginStatus, error)
	Bind(ctx context.Context, raw, userID string) error
}

type errorBody struct {
	Error string `json:"error"`
}

// LoginHandler serves the partner-facing QR login endpoints. Their bodies are
// written without the API envelope because partner pages read them directly.
type LoginHandler struct {
	loginTokens loginTokenService
	validator   *validator.Validate
}

func NewLoginHandler(loginTokens loginTokenService) *LoginHandler {
	return &LoginHandler{
		loginTokens: loginTokens,
		validator:   validator.New(),
	}
}

func (h *LoginHandler) PerformAuth(w http.ResponseWriter, r *http.Request) {
	var req domain.PerformAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Raw(w, http.StatusBadRequest, errorBody{"Invalid request body"})
		return
	}

	// Partners are matched on the exact values sent; blank ones are rejected
	// without being rewritten.
	if err := h.validator.Struct(req); err != nil || strings.TrimSpace(req.APIKey) == "" || strings.TrimSpace(req.URL) == "" {
		response.Raw(w, http.StatusBadRequest, errorBody{"apiKey and url are required"})
		return
	}

	resp, err := h.loginTokens.Issue(r.Context(), req.APIKey, req.URL)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorizedPartner) {
			response.Raw(w, http.StatusForbidden, errorBody{"Unauthorized partner"})
			return
		}
		response.Raw(w, http.StatusInternalServerError, errorBody{"Internal server error"})
		return
	}

	response.Raw(w, http.StatusOK, resp)
}

func (h *LoginHandler) GetLoginStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Raw(w, http.StatusBadRequest, errorBody{"Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.Raw(w, http.StatusBadRequest, errorBody{"loginToken is required"})
		return
	}

	status, err := h.loginTokens.Resolve(r.Context(), req.LoginToken)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			response.Raw(w, http.StatusNotFound, errorBody{"Token not found"})
			return
		}
		response.Raw(w, http.StatusInternalServerError, errorBody{"Internal server error"})
		return
	}

	switch status.Status {
	case domain.LoginSuccess:
		response.Raw(w, http.StatusOK, status)
	case domain.LoginExpired:
		response.Raw(w, http.StatusGone, status)
	default:
		response.Raw(w, http.StatusAccepted, status)
	}
}

// Bind is called by the signed-in device after scanning a QR code. The user
// comes from the access token, never from the body.
func (h *LoginHandler) Bind(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.BindLoginTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	if err := h.loginTokens.Bind(r.Context(), req.LoginToken, userID); err != nil {
		writeError(w, err)
		return
	}

	response.Message(w, "Login confirmed")
}
