package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"superid/internal/config"
	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/websocket"
	"superid/pkg/qrcode"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type loginTokenFixture struct {
	service  *LoginTokenService
	tokens   *mockLoginTokenRepository
	notifier *recordingNotifier
	clock    *fakeClock
}

func newLoginTokenFixture() *loginTokenFixture {
	tokens := newMockLoginTokenRepository()
	partners := newMockPartnerRepository(domain.Partner{APIKey: "K1", URL: "https://p.example", Name: "Partner"})
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewLoginTokenService(tokens, partners, notifier, config.LoginTokenConfig{
		TTL:         60 * time.Second,
		MaxAttempts: 3,
		QRSize:      256,
	}, logging.Nop())
	svc.now = clock.Now

	return &loginTokenFixture{service: svc, tokens: tokens, notifier: notifier, clock: clock}
}

func (f *loginTokenFixture) issue(t *testing.T) string {
	t.Helper()
	resp, err := f.service.Issue(context.Background(), "K1", "https://p.example")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return resp.LoginToken
}

func TestLoginTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	f := newLoginTokenFixture()

	resp, err := f.service.Issue(ctx, "K1", "https://p.example")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if len(resp.LoginToken) != LoginTokenLength {
		t.Errorf("token length = %d, want %d", len(resp.LoginToken), LoginTokenLength)
	}
	if strings.ContainsAny(resp.LoginToken, "+/=") {
		t.Error("token is not base64url")
	}
	if !strings.HasPrefix(resp.QRBase64, qrcode.DataURLPrefix) {
		t.Errorf("qr payload prefix = %q", resp.QRBase64[:20])
	}

	stored, err := f.tokens.FindByID(ctx, hashLoginToken(resp.LoginToken))
	if err != nil {
		t.Fatalf("token not stored under its hash: %v", err)
	}
	if stored.Attempts != 0 || stored.IsBound() || stored.PartnerAPIKey != "K1" {
		t.Errorf("stored token = %+v", stored)
	}
	if _, err := f.tokens.FindByID(ctx, resp.LoginToken); err == nil {
		t.Error("raw token must not be a storage key")
	}

	again, err := f.service.Issue(ctx, "K1", "https://p.example")
	if err != nil {
		t.Fatalf("second Issue() error = %v", err)
	}
	if again.LoginToken == resp.LoginToken {
		t.Error("Issue() reused a token")
	}
}

func TestLoginTokenService_IssueUnauthorized(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		url    string
	}{
		{"unknown key", "K2", "https://p.example"},
		{"wrong url", "K1", "https://evil.example"},
		{"url prefix", "K1", "https://p.example/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoginTokenFixture()
			_, err := f.service.Issue(context.Background(), tt.apiKey, tt.url)
			if !errors.Is(err, ErrUnauthorizedPartner) {
				t.Errorf("Issue() error = %v, want ErrUnauthorizedPartner", err)
			}
			if f.tokens.count() != 0 {
				t.Error("Issue() stored a token for an unauthorized partner")
			}
		})
	}
}

func TestLoginTokenService_ResolveAttemptCap(t *testing.T) {
	ctx := context.Background()
	f := newLoginTokenFixture()
	token := f.issue(t)

	want := []domain.LoginState{domain.LoginPending, domain.LoginPending, domain.LoginExpired}
	for i, w := range want {
		f.clock.Advance(2 * time.Second)
		status, err := f.service.Resolve(ctx, token)
		if err != nil {
			t.Fatalf("poll %d: Resolve() error = %v", i+1, err)
		}
		if status.Status != w {
			t.Errorf("poll %d: status = %s, want %s", i+1, status.Status, w)
		}
	}

	if _, err := f.service.Resolve(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("poll after expiry error = %v, want ErrTokenNotFound", err)
	}
}

func TestLoginTokenService_ResolveTTL(t *testing.T) {
	ctx := context.Background()
	f := newLoginTokenFixture()
	token := f.issue(t)

	f.clock.Advance(61 * time.Second)

	status, err := f.service.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if status.Status != domain.LoginExpired || status.UID != "" {
		t.Errorf("status = %+v, want expired", status)
	}

	if _, err := f.service.Resolve(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("second Resolve() error = %v, want ErrTokenNotFound", err)
	}
}

func TestLoginTokenService_ResolveAtExactTTL(t *testing.T) {
	f := newLoginTokenFixture()
	token := f.issue(t)

	f.clock.Advance(60 * time.Second)

	status, err := f.service.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if status.Status != domain.LoginPending {
		t.Errorf("status at exactly the TTL = %s, want pending", status.Status)
	}
}

func TestLoginTokenService_BoundTokenStillExpires(t *testing.T) {
	ctx := context.Background()
	f := newLoginTokenFixture()
	token := f.issue(t)

	if err := f.service.Bind(ctx, token, "abc"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	f.clock.Advance(61 * time.Second)

	status, err := f.service.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if status.Status != domain.LoginExpired {
		t.Errorf("status = %s, want expired", status.Status)
	}
}

func TestLoginTokenService_BindThenResolve(t *testing.T) {
	ctx := context.Background()
	f := newLoginTokenFixture()
	token := f.issue(t)

	status, err := f.service.Resolve(ctx, token)
	if err != nil || status.Status != domain.LoginPending {
		t.Fatalf("first poll = %+v, %v", status, err)
	}

	f.clock.Advance(3 * time.Second)
	if err := f.service.Bind(ctx, token, "abc"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	status, err = f.service.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if status.Status != domain.LoginSuccess || status.UID != "abc" {
		t.Errorf("status = %+v, want success abc", status)
	}

	if _, err := f.service.Resolve(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("poll after consumption error = %v, want ErrTokenNotFound", err)
	}

	types := f.notifier.types()
	if len(types) != 1 || types[0] != websocket.TypeLoginTokenBound {
		t.Errorf("notifications = %v", types)
	}
}

func TestLoginTokenService_Bind(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		f := newLoginTokenFixture()
		if err := f.service.Bind(ctx, "nope", "abc"); !errors.Is(err, ErrTokenNotFound) {
			t.Errorf("Bind() error = %v, want ErrTokenNotFound", err)
		}
	})

	t.Run("expired token is deleted", func(t *testing.T) {
		f := newLoginTokenFixture()
		token := f.issue(t)
		f.clock.Advance(61 * time.Second)

		if err := f.service.Bind(ctx, token, "abc"); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Bind() error = %v, want ErrTokenExpired", err)
		}
		if f.tokens.count() != 0 {
			t.Error("expired token was not deleted")
		}
	})

	t.Run("token at attempt cap", func(t *testing.T) {
		f := newLoginTokenFixture()
		token := f.issue(t)
		f.tokens.tokens[hashLoginToken(token)].Attempts = 3

		if err := f.service.Bind(ctx, token, "abc"); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Bind() error = %v, want ErrTokenExpired", err)
		}
	})

	t.Run("same user twice", func(t *testing.T) {
		f := newLoginTokenFixture()
		token := f.issue(t)

		if err := f.service.Bind(ctx, token, "abc"); err != nil {
			t.Fatalf("first Bind() error = %v", err)
		}
		if err := f.service.Bind(ctx, token, "abc"); err != nil {
			t.Errorf("second Bind() error = %v", err)
		}
		if n := len(f.notifier.types()); n != 1 {
			t.Errorf("notifications = %d, want 1", n)
		}
	})

	t.Run("claimed by another user", func(t *testing.T) {
		f := newLoginTokenFixture()
		token := f.issue(t)

		if err := f.service.Bind(ctx, token, "abc"); err != nil {
			t.Fatalf("first Bind() error = %v", err)
		}
		if err := f.service.Bind(ctx, token, "mallory"); !errors.Is(err, ErrTokenAlreadyBound) {
			t.Errorf("Bind() error = %v, want ErrTokenAlreadyBound", err)
		}

		stored, _ := f.tokens.FindByID(ctx, hashLoginToken(token))
		if stored.BoundUserID != "abc" || stored.BoundAt == nil {
			t.Errorf("stored token = %+v", stored)
		}
	})

	t.Run("bind does not count as a poll", func(t *testing.T) {
		f := newLoginTokenFixture()
		token := f.issue(t)
		if err := f.service.Bind(ctx, token, "abc"); err != nil {
			t.Fatalf("Bind() error = %v", err)
		}
		stored, _ := f.tokens.FindByID(ctx, hashLoginToken(token))
		if stored.Attempts != 0 {
			t.Errorf("attempts = %d, want 0", stored.Attempts)
		}
	})
}

func TestLoginTokenService_ConcurrentPolls(t *testing.T) {
	ctx := context.Background()
	f := newLoginTokenFixture()
	token := f.issue(t)

	const pollers = 10
	results := make(chan domain.LoginState, pollers)
	var wg sync.WaitGroup
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := f.service.Resolve(ctx, token)
			if errors.Is(err, ErrTokenNotFound) {
				return
			}
			if err != nil {
				t.Errorf("Resolve() error = %v", err)
				return
			}
			results <- status.Status
		}()
	}
	wg.Wait()
	close(results)

	counts := map[domain.LoginState]int{}
	for s := range results {
		counts[s]++
	}

	if counts[domain.LoginPending] != 2 || counts[domain.LoginExpired] != 1 {
		t.Errorf("outcomes = %v, want 2 pending and 1 expired", counts)
	}
}

func TestLoginTokenService_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newLoginTokenFixture()

	old := f.issue(t)
	f.clock.Advance(45 * time.Second)
	fresh := f.issue(t)
	f.clock.Advance(20 * time.Second)

	deleted, err := f.service.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Sweep() deleted = %d, want 1", deleted)
	}

	if _, err := f.service.Resolve(ctx, old); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("swept token Resolve() error = %v", err)
	}
	if status, err := f.service.Resolve(ctx, fresh); err != nil || status.Status != domain.LoginPending {
		t.Errorf("fresh token = %+v, %v", status, err)
	}
}

func TestLoginTokenService_RunSweeperStops(t *testing.T) {
	f := newLoginTokenFixture()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.service.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSweeper() did not return after cancel")
	}
}
