package domain

// Partner is a third-party site allowed to request QR logins.
type Partner struct {
	APIKey string `json:"api_key"`
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
}
