package repository

import (
	"context"
	"errors"
	"fmt"

	"superid/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

type accountRepository struct {
	client *kivik.Client
	dbName string
}

func NewAccountRepository(client *kivik.Client, dbName string) AccountRepository {
	return &accountRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	db := r.client.DB(r.dbName)

	rev, err := db.Put(ctx, docID(accountPrefix, account.ID), account)
	if err != nil {
		return wrap(err, "failed to create account")
	}
	account.Rev = rev

	return nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"email":        email,
			"key_material": map[string]interface{}{"$exists": true},
		},
		"limit": 1,
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query account by email: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrNotFound
	}

	var account domain.Account
	if err := rows.ScanDoc(&account); err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	return &account, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	db := r.client.DB(r.dbName)

	var account domain.Account
	if err := db.Get(ctx, docID(accountPrefix, id)).ScanDoc(&account); err != nil {
		return nil, wrap(err, "failed to find account by ID")
	}

	return &account, nil
}

// Update writes account using its Rev; a stale Rev yields ErrConflict.
func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	db := r.client.DB(r.dbName)

	rev, err := db.Put(ctx, docID(accountPrefix, account.ID), account)
	if err != nil {
		return wrap(err, "failed to update account")
	}
	account.Rev = rev

	return nil
}

func (r *accountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
