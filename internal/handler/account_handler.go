package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"superid/internal/domain"
	"superid/internal/middleware"
	"superid/pkg/response"

	"github.com/go-playground/validator/v10"
)

type accountService interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	UpdateName(ctx context.Context, userID, name string) (*domain.Account, error)
	ChangeMasterPassword(ctx context.Context, userID string, req *domain.ChangeMasterPasswordRequest) (*domain.ChangeMasterPasswordResponse, error)
}

type AccountHandler struct {
	accountService accountService
	validator      *validator.Validate
}

func NewAccountHandler(accountService accountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		validator:      validator.New(),
	}
}

func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	account, err := h.accountService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, account)
}

func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	account, err := h.accountService.UpdateName(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, account)
}

func (h *AccountHandler) ChangeMasterPassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.ChangeMasterPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	resp, err := h.accountService.ChangeMasterPassword(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, resp)
}
