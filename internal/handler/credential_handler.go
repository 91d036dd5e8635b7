package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"superid/internal/domain"
	"superid/internal/middleware"
	"superid/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type credentialService interface {
	List(ctx context.Context, userID string) ([]*domain.CredentialDocument, error)
	Create(ctx context.Context, userID string, req *domain.SaveCredentialRequest) (*domain.CredentialDocument, error)
	Update(ctx context.Context, userID, id string, req *domain.SaveCredentialRequest) (*domain.CredentialDocument, error)
	Delete(ctx context.Context, userID, id string) error
	Purge(ctx context.Context, userID string) (int, error)
}

type CredentialHandler struct {
	credentialService credentialService
	validator         *validator.Validate
}

func NewCredentialHandler(credentialService credentialService) *CredentialHandler {
	return &CredentialHandler{
		credentialService: credentialService,
		validator:         validator.New(),
	}
}

func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentialService.List(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, creds)
}

func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	cred, err := h.credentialService.Create(r.Context(), middleware.GetUserID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, cred)
}

func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	cred, err := h.credentialService.Update(r.Context(), middleware.GetUserID(r), id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, cred)
}

func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.credentialService.Delete(r.Context(), middleware.GetUserID(r), id); err != nil {
		writeError(w, err)
		return
	}

	response.Message(w, "Credential deleted")
}

// Purge drops the whole vault of the caller.
func (h *CredentialHandler) Purge(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.credentialService.Purge(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, map[string]int{"deleted": deleted})
}

func (h *CredentialHandler) decode(w http.ResponseWriter, r *http.Request) (*domain.SaveCredentialRequest, bool) {
	var req domain.SaveCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return nil, false
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return nil, false
	}

	return &req, true
}
