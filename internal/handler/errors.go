package handler

import (
	"errors"
	"net/http"

	"superid/internal/service"
	"superid/internal/vault"
	"superid/pkg/hash"
	"superid/pkg/response"

	"github.com/go-playground/validator/v10"
)

// writeError maps service errors to enveloped HTTP errors. Unknown errors are
// reported as 500 without detail.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrUnauthorizedPartner):
		response.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrCredentialNotFound), errors.Is(err, service.ErrTokenNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrTokenAlreadyBound):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrTokenExpired):
		response.Gone(w, err.Error())
	case errors.Is(err, vault.ErrWeakKDFParams), errors.Is(err, vault.ErrUnknownKDF), errors.Is(err, hash.ErrPasswordTooShort),
		errors.Is(err, service.ErrSaltReused):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, "Internal server error")
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "invalid field: " + verrs[0].Field()
	}
	return err.Error()
}
