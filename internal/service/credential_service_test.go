package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/websocket"
)

func TestCredentialService_CreateListUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newMockCredentialRepository()
	notifier := &recordingNotifier{}
	service := NewCredentialService(repo, notifier, logging.Nop())

	created, err := service.Create(ctx, "u1", &domain.SaveCredentialRequest{
		Category: "Sites Web",
		Name:     "mail",
		Login:    sealed("me@x.io"),
		Secret:   sealed("pw"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" || created.UserID != "u1" || created.CreatedAt.IsZero() {
		t.Errorf("Create() = %+v", created)
	}

	list, err := service.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Secret != sealed("pw") {
		t.Errorf("List() = %+v", list)
	}

	time.Sleep(time.Millisecond)
	updated, err := service.Update(ctx, "u1", created.ID, &domain.SaveCredentialRequest{
		Category: "Sites Web",
		Name:     "mail",
		Secret:   sealed("pw2"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("Update() changed CreatedAt")
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Error("Update() did not bump UpdatedAt")
	}
	if updated.Login != "" {
		t.Error("Update() kept the old login")
	}

	types := notifier.types()
	want := []websocket.MessageType{websocket.TypeCredentialCreated, websocket.TypeCredentialUpdated}
	if len(types) != len(want) || types[0] != want[0] || types[1] != want[1] {
		t.Errorf("notifications = %v, want %v", types, want)
	}
}

func TestCredentialService_Ownership(t *testing.T) {
	ctx := context.Background()
	repo := newMockCredentialRepository()
	service := NewCredentialService(repo, nil, logging.Nop())

	cred, err := service.Create(ctx, "owner", &domain.SaveCredentialRequest{Category: "c", Name: "n", Secret: sealed("s")})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := service.Update(ctx, "intruder", cred.ID, &domain.SaveCredentialRequest{Category: "c", Name: "n", Secret: sealed("x")}); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("Update() by another user error = %v", err)
	}
	if err := service.Delete(ctx, "intruder", cred.ID); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("Delete() by another user error = %v", err)
	}
	if err := service.Delete(ctx, "owner", "missing"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("Delete() missing error = %v", err)
	}
	if err := service.Delete(ctx, "owner", cred.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestCredentialService_Purge(t *testing.T) {
	ctx := context.Background()
	repo := newMockCredentialRepository()
	notifier := &recordingNotifier{}
	service := NewCredentialService(repo, notifier, logging.Nop())

	for i := 0; i < 3; i++ {
		if _, err := service.Create(ctx, "u1", &domain.SaveCredentialRequest{Category: "c", Name: "n", Secret: sealed("s")}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	deleted, err := service.Purge(ctx, "u1")
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("Purge() deleted = %d, want 3", deleted)
	}

	list, _ := service.List(ctx, "u1")
	if len(list) != 0 {
		t.Errorf("List() after purge = %d records", len(list))
	}

	types := notifier.types()
	if types[len(types)-1] != websocket.TypeVaultPurged {
		t.Errorf("last notification = %s", types[len(types)-1])
	}
}
