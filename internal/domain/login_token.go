package domain

import "time"

type LoginToken struct {
	ID            string     `json:"id"` // sha256 of the raw token
	Rev           string     `json:"_rev,omitempty"`
	PartnerAPIKey string     `json:"partner_api_key"`
	CreatedAt     time.Time  `json:"created_at"`
	CreatedUnixMs int64      `json:"created_unix_ms"` // numeric copy of CreatedAt for range queries
	Attempts      int        `json:"attempts"`
	BoundUserID   string     `json:"bound_user_id,omitempty"`
	BoundAt       *time.Time `json:"bound_at,omitempty"`
}

func (t *LoginToken) IsBound() bool {
	return t.BoundUserID != ""
}

type LoginState string

const (
	LoginPending LoginState = "pending"
	LoginSuccess LoginState = "success"
	LoginExpired LoginState = "expired"
)

// LoginStatus is what the polling partner page receives.
type LoginStatus struct {
	Status LoginState `json:"status"`
	UID    string     `json:"uid,omitempty"`
}

type PerformAuthRequest struct {
	APIKey string `json:"apiKey" validate:"required"`
	URL    string `json:"url" validate:"required"`
}

type PerformAuthResponse struct {
	QRBase64   string `json:"qrBase64"`
	LoginToken string `json:"loginToken"`
}

type LoginStatusRequest struct {
	LoginToken string `json:"loginToken" validate:"required"`
}

type BindLoginTokenRequest struct {
	LoginToken string `json:"login_token" validate:"required"`
}
