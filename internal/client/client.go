// Package client talks to the superid server on behalf of a device. It keeps
// the account tokens, refreshes the access token once on a 401 and implements
// vault.RecordStore so a vault can sit directly on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"superid/internal/domain"
	"superid/internal/vault"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrGone         = errors.New("gone")
	ErrNotSignedIn  = errors.New("not signed in")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrGone:
		return e.StatusCode == http.StatusGone
	}
	return false
}

// Tokens are the account credentials a device keeps between runs.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

type Client struct {
	base string
	http *http.Client

	mu     sync.RWMutex
	tokens Tokens
	// onRefresh is called with the new token pair after a silent refresh.
	onRefresh func(Tokens)
}

var _ vault.RecordStore = (*Client)(nil)

func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: httpClient,
	}
}

func (c *Client) SetTokens(t Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
}

func (c *Client) Tokens() Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// OnRefresh registers fn to be told about tokens obtained by a silent refresh.
func (c *Client) OnRefresh(fn func(Tokens)) {
	c.mu.Lock()
	c.onRefresh = fn
	c.mu.Unlock()
}

// Account

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	var out domain.Account
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/register", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login signs in and keeps the returned tokens. The response carries the key
// material needed to derive the vault key.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	var out domain.LoginResponse
	req := domain.LoginRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/login", req, &out, false); err != nil {
		return nil, err
	}
	c.SetTokens(Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken})
	return &out, nil
}

// Refresh exchanges the refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	current := c.Tokens()
	if current.RefreshToken == "" {
		return ErrNotSignedIn
	}

	var out domain.TokenResponse
	req := domain.RefreshTokenRequest{RefreshToken: current.RefreshToken}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/refresh", req, &out, false); err != nil {
		return err
	}

	c.mu.Lock()
	c.tokens.AccessToken = out.AccessToken
	tokens, notify := c.tokens, c.onRefresh
	c.mu.Unlock()

	if notify != nil {
		notify(tokens)
	}
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, true)
	c.SetTokens(Tokens{})
	return err
}

func (c *Client) Me(ctx context.Context) (*domain.Account, error) {
	var out domain.Account
	if err := c.call(ctx, http.MethodGet, "/api/v1/users/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangeMasterPassword replaces the master password and key material. The
// server stores req.Credentials in place of the records it held before.
func (c *Client) ChangeMasterPassword(ctx context.Context, req domain.ChangeMasterPasswordRequest) (*domain.ChangeMasterPasswordResponse, error) {
	var out domain.ChangeMasterPasswordResponse
	if err := c.call(ctx, http.MethodPut, "/api/v1/account/master-password", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Vault records

func (c *Client) ListCredentials(ctx context.Context) ([]domain.CredentialDocument, error) {
	var out []domain.CredentialDocument
	if err := c.call(ctx, http.MethodGet, "/api/v1/credentials", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCredential(ctx context.Context, doc domain.CredentialDocument) (*domain.CredentialDocument, error) {
	var out domain.CredentialDocument
	if err := c.call(ctx, http.MethodPost, "/api/v1/credentials", doc.SaveRequest(), &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCredential(ctx context.Context, id string, doc domain.CredentialDocument) (*domain.CredentialDocument, error) {
	var out domain.CredentialDocument
	path := "/api/v1/credentials/" + url.PathEscape(id)
	if err := c.call(ctx, http.MethodPut, path, doc.SaveRequest(), &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCredential(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/credentials/"+url.PathEscape(id), nil, nil, true)
}

func (c *Client) PurgeCredentials(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/credentials", nil, nil, true)
}

// Login tokens

// BindLoginToken confirms a scanned QR login for the signed-in account.
func (c *Client) BindLoginToken(ctx context.Context, loginToken string) error {
	req := domain.BindLoginTokenRequest{LoginToken: loginToken}
	return c.call(ctx, http.MethodPost, "/api/v1/login-tokens/bind", req, nil, true)
}

// PerformAuth asks for a new login token as a partner site.
func (c *Client) PerformAuth(ctx context.Context, apiKey, siteURL string) (*domain.PerformAuthResponse, error) {
	req := domain.PerformAuthRequest{APIKey: apiKey, URL: siteURL}
	resp, err := c.do(ctx, http.MethodPost, "/performAuth", req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rawError(resp)
	}

	var out domain.PerformAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode performAuth response: %w", err)
	}
	return &out, nil
}

// GetLoginStatus polls a login token. Pending, success and expired are all
// results; only an unknown token or a transport problem is an error.
func (c *Client) GetLoginStatus(ctx context.Context, loginToken string) (*domain.LoginStatus, error) {
	req := domain.LoginStatusRequest{LoginToken: loginToken}
	resp, err := c.do(ctx, http.MethodPost, "/getLoginStatus", req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusGone:
	default:
		return nil, rawError(resp)
	}

	var out domain.LoginStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode login status: %w", err)
	}
	return &out, nil
}

// transport

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, auth bool) error {
	resp, err := c.do(ctx, method, path, body, auth)
	if err != nil {
		return err
	}

	if auth && resp.StatusCode == http.StatusUnauthorized && c.Tokens().RefreshToken != "" {
		resp.Body.Close()
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		resp, err = c.do(ctx, method, path, body, auth)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: env.Error}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, auth bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth {
		token := c.Tokens().AccessToken
		if token == "" {
			return nil, ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func rawError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return &APIError{
		Method:     resp.Request.Method,
		Path:       resp.Request.URL.Path,
		StatusCode: resp.StatusCode,
		Message:    body.Error,
	}
}
