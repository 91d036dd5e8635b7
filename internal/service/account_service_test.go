package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/websocket"
	"superid/pkg/hash"
)

func newAccountFixture(t *testing.T) (*AccountService, *mockAccountRepository, *mockCredentialRepository, *recordingNotifier) {
	t.Helper()
	ctx := context.Background()
	accounts := newMockAccountRepository()
	creds := newMockCredentialRepository()
	notifier := &recordingNotifier{}

	hashed, err := hash.Hash("old-master-pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	accounts.Create(ctx, &domain.Account{
		ID:          "u1",
		Email:       "u1@example.com",
		Name:        "User One",
		Password:    hashed,
		KeyMaterial: testKeyMaterial(1),
	})
	for _, id := range []string{"c1", "c2"} {
		creds.Create(ctx, &domain.CredentialDocument{ID: id, UserID: "u1", Name: id, Secret: sealed(id), CreatedAt: time.Now()})
	}
	creds.Create(ctx, &domain.CredentialDocument{ID: "other", UserID: "u2", Name: "other", Secret: sealed("x")})

	return NewAccountService(accounts, creds, notifier, logging.Nop()), accounts, creds, notifier
}

func TestAccountService_GetByID(t *testing.T) {
	service, _, _, _ := newAccountFixture(t)

	account, err := service.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if account.Password != "" {
		t.Error("GetByID() leaked the password hash")
	}

	if _, err := service.GetByID(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("GetByID() error = %v, want ErrAccountNotFound", err)
	}
}

func TestAccountService_UpdateName(t *testing.T) {
	ctx := context.Background()
	service, accounts, _, _ := newAccountFixture(t)

	account, err := service.UpdateName(ctx, "u1", "Renamed")
	if err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}
	if account.Name != "Renamed" {
		t.Errorf("UpdateName() name = %q", account.Name)
	}

	stored, _ := accounts.FindByID(ctx, "u1")
	if stored.Name != "Renamed" || stored.Password == "" {
		t.Errorf("stored account = %+v", stored)
	}
}

func reencrypted(names ...string) []domain.SaveCredentialRequest {
	out := make([]domain.SaveCredentialRequest, 0, len(names))
	for _, n := range names {
		out = append(out, domain.SaveCredentialRequest{Category: "web", Name: n, Secret: sealed("new-" + n)})
	}
	return out
}

func TestAccountService_ChangeMasterPassword(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		req           domain.ChangeMasterPasswordRequest
		wantErr       error
		wantStored    int
		wantDiscarded int
	}{
		{
			name:          "success",
			req:           domain.ChangeMasterPasswordRequest{CurrentPassword: "old-master-pw", NewPassword: "new-master-pw", KeyMaterial: testKeyMaterial(2), Credentials: reencrypted("c1", "c2")},
			wantStored:    2,
			wantDiscarded: 2,
		},
		{
			name:          "nothing readable",
			req:           domain.ChangeMasterPasswordRequest{CurrentPassword: "old-master-pw", NewPassword: "new-master-pw", KeyMaterial: testKeyMaterial(2)},
			wantDiscarded: 2,
		},
		{
			name:    "wrong current password",
			req:     domain.ChangeMasterPasswordRequest{CurrentPassword: "guess-guess", NewPassword: "new-master-pw", KeyMaterial: testKeyMaterial(2)},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "salt reused",
			req:     domain.ChangeMasterPasswordRequest{CurrentPassword: "old-master-pw", NewPassword: "new-master-pw", KeyMaterial: testKeyMaterial(1)},
			wantErr: ErrSaltReused,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, accounts, creds, notifier := newAccountFixture(t)

			resp, err := service.ChangeMasterPassword(ctx, "u1", &tt.req)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ChangeMasterPassword() error = %v, want %v", err, tt.wantErr)
				}
				remaining, _ := creds.List(ctx, "u1")
				if len(remaining) != 2 {
					t.Errorf("credentials deleted on failure: %d left", len(remaining))
				}
				return
			}

			if err != nil {
				t.Fatalf("ChangeMasterPassword() error = %v", err)
			}
			if resp.Stored != tt.wantStored || resp.Discarded != tt.wantDiscarded {
				t.Errorf("response = %+v, want stored %d discarded %d", resp, tt.wantStored, tt.wantDiscarded)
			}

			stored, _ := accounts.FindByID(ctx, "u1")
			if hash.Compare(stored.Password, "new-master-pw") != nil {
				t.Error("password hash not replaced")
			}
			if stored.KeyMaterial != tt.req.KeyMaterial {
				t.Error("key material not replaced")
			}

			remaining, _ := creds.List(ctx, "u1")
			if len(remaining) != tt.wantStored {
				t.Fatalf("%d credentials stored, want %d", len(remaining), tt.wantStored)
			}
			for i, c := range remaining {
				if c.Secret != tt.req.Credentials[i].Secret {
					t.Errorf("credential %d secret = %q, want the re-encrypted one in order", i, c.Secret)
				}
			}
			others, _ := creds.List(ctx, "u2")
			if len(others) != 1 {
				t.Error("another user's credentials were touched")
			}

			types := notifier.types()
			if len(types) != 1 || types[0] != websocket.TypeVaultPurged {
				t.Errorf("notifications = %v", types)
			}
		})
	}
}

func TestAccountService_ChangeMasterPasswordKeepsVaultOnFailure(t *testing.T) {
	ctx := context.Background()
	req := domain.ChangeMasterPasswordRequest{
		CurrentPassword: "old-master-pw",
		NewPassword:     "new-master-pw",
		KeyMaterial:     testKeyMaterial(2),
		Credentials:     reencrypted("c1", "c2"),
	}

	tests := []struct {
		name  string
		setup func(*mockAccountRepository, *mockCredentialRepository)
	}{
		{
			name:  "bulk store fails partway",
			setup: func(_ *mockAccountRepository, c *mockCredentialRepository) { c.failCreateAt = 1 },
		},
		{
			name:  "account update fails",
			setup: func(a *mockAccountRepository, _ *mockCredentialRepository) { a.updateErr = errors.New("couchdb unavailable") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, accounts, creds, notifier := newAccountFixture(t)
			tt.setup(accounts, creds)

			if _, err := service.ChangeMasterPassword(ctx, "u1", &req); err == nil {
				t.Fatal("ChangeMasterPassword() succeeded")
			}

			remaining, _ := creds.List(ctx, "u1")
			if len(remaining) != 2 {
				t.Fatalf("%d credentials left, want the original 2", len(remaining))
			}
			for _, c := range remaining {
				if c.ID != "c1" && c.ID != "c2" {
					t.Errorf("unexpected credential %s left behind", c.ID)
				}
			}

			accounts.updateErr = nil
			stored, _ := accounts.FindByID(ctx, "u1")
			if hash.Compare(stored.Password, "old-master-pw") != nil || stored.KeyMaterial != testKeyMaterial(1) {
				t.Error("account changed despite the failure")
			}
			if len(notifier.types()) != 0 {
				t.Errorf("notifications = %v", notifier.types())
			}
		})
	}
}
