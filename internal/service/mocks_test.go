package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"superid/internal/domain"
	"superid/internal/repository"
	"superid/internal/vault"
	"superid/internal/websocket"
)

type mockAccountRepository struct {
	mu        sync.Mutex
	accounts  map[string]*domain.Account
	updateErr error
}

func newMockAccountRepository() *mockAccountRepository {
	return &mockAccountRepository{accounts: make(map[string]*domain.Account)}
}

func (m *mockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *mockAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			found := *a
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		found := *a
		return &found, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountRepository) Update(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *mockAccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

type mockCredentialRepository struct {
	mu    sync.Mutex
	creds map[string]*domain.CredentialDocument

	// failCreateAt makes CreateMany store that many documents and then fail.
	failCreateAt int
}

func newMockCredentialRepository() *mockCredentialRepository {
	return &mockCredentialRepository{creds: make(map[string]*domain.CredentialDocument), failCreateAt: -1}
}

func (m *mockCredentialRepository) Create(ctx context.Context, cred *domain.CredentialDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(cred)
	return nil
}

func (m *mockCredentialRepository) store(cred *domain.CredentialDocument) {
	cred.Rev = "1-mock"
	stored := *cred
	m.creds[cred.ID] = &stored
}

func (m *mockCredentialRepository) FindByID(ctx context.Context, id string) (*domain.CredentialDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.creds[id]; ok {
		found := *c
		return &found, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockCredentialRepository) List(ctx context.Context, userID string) ([]*domain.CredentialDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.CredentialDocument{}
	for _, c := range m.creds {
		if c.UserID == userID {
			found := *c
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCredentialRepository) Update(ctx context.Context, cred *domain.CredentialDocument) error {
	return m.Create(ctx, cred)
}

func (m *mockCredentialRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.creds, id)
	return nil
}

func (m *mockCredentialRepository) DeleteAll(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.creds {
		if c.UserID == userID {
			delete(m.creds, id)
			n++
		}
	}
	return n, nil
}

func (m *mockCredentialRepository) CreateMany(ctx context.Context, creds []*domain.CredentialDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range creds {
		if i == m.failCreateAt {
			return fmt.Errorf("failed to create credential %s: disk full", c.ID)
		}
		m.store(c)
	}
	return nil
}

func (m *mockCredentialRepository) DeleteMany(ctx context.Context, creds []*domain.CredentialDocument) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range creds {
		if c.Rev == "" {
			continue
		}
		if _, ok := m.creds[c.ID]; ok {
			delete(m.creds, c.ID)
			n++
		}
	}
	return n, nil
}

type mockLoginTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.LoginToken
}

func newMockLoginTokenRepository() *mockLoginTokenRepository {
	return &mockLoginTokenRepository{tokens: make(map[string]*domain.LoginToken)}
}

func (m *mockLoginTokenRepository) Create(ctx context.Context, token *domain.LoginToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token.ID]; ok {
		return repository.ErrConflict
	}
	stored := *token
	m.tokens[token.ID] = &stored
	return nil
}

func (m *mockLoginTokenRepository) FindByID(ctx context.Context, id string) (*domain.LoginToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		found := *t
		return &found, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockLoginTokenRepository) Mutate(ctx context.Context, id string, fn repository.MutateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	working := *t

	mutation, err := fn(&working)
	if err != nil {
		return err
	}
	switch mutation {
	case repository.MutationSave:
		m.tokens[id] = &working
	case repository.MutationDelete:
		delete(m.tokens, id)
	}
	return nil
}

func (m *mockLoginTokenRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *mockLoginTokenRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.tokens {
		if t.CreatedAt.Before(cutoff) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *mockLoginTokenRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

type mockPartnerRepository struct {
	partners map[string]domain.Partner
}

func newMockPartnerRepository(partners ...domain.Partner) *mockPartnerRepository {
	m := &mockPartnerRepository{partners: make(map[string]domain.Partner)}
	for _, p := range partners {
		m.partners[p.APIKey] = p
	}
	return m
}

func (m *mockPartnerRepository) FindByCredentials(ctx context.Context, apiKey, url string) (*domain.Partner, error) {
	p, ok := m.partners[apiKey]
	if !ok || p.URL != url {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *mockPartnerRepository) Save(ctx context.Context, partner *domain.Partner) error {
	m.partners[partner.APIKey] = *partner
	return nil
}

type recordedNotification struct {
	userID  string
	msgType websocket.MessageType
	payload interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (n *recordingNotifier) NotifyUser(userID string, msgType websocket.MessageType, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedNotification{userID, msgType, payload})
	return nil
}

func (n *recordingNotifier) types() []websocket.MessageType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]websocket.MessageType, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.msgType
	}
	return out
}

func testKeyMaterial(seed byte) domain.KeyMaterial {
	salt := make([]byte, vault.SaltSize)
	for i := range salt {
		salt[i] = seed
	}
	return domain.KeyMaterial{
		Salt: base64.StdEncoding.EncodeToString(salt),
		KDF:  vault.DefaultKDFParams(),
	}
}

func sealed(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("nonce|%s|tag", s)))
}
