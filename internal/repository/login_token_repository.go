package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"superid/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// Mutation tells Mutate what to do with the token after the callback ran.
type Mutation int

const (
	MutationNone Mutation = iota
	MutationSave
	MutationDelete
)

const (
	maxMutateRetries = 8
	sweepBatchSize   = 500
)

// MutateFunc inspects and optionally modifies a token. It may run more than
// once when a concurrent writer wins, so it must derive everything from t.
type MutateFunc func(t *domain.LoginToken) (Mutation, error)

type LoginTokenRepository interface {
	Create(ctx context.Context, token *domain.LoginToken) error
	FindByID(ctx context.Context, id string) (*domain.LoginToken, error)
	// Mutate applies fn as an atomic read-modify-write on the token record.
	Mutate(ctx context.Context, id string, fn MutateFunc) error
	Delete(ctx context.Context, id string) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type loginTokenRepository struct {
	client *kivik.Client
	dbName string
}

func NewLoginTokenRepository(client *kivik.Client, dbName string) LoginTokenRepository {
	return &loginTokenRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *loginTokenRepository) Create(ctx context.Context, token *domain.LoginToken) error {
	db := r.client.DB(r.dbName)

	token.CreatedUnixMs = token.CreatedAt.UnixMilli()

	rev, err := db.Put(ctx, docID(loginTokenPrefix, token.ID), token)
	if err != nil {
		return wrap(err, "failed to create login token")
	}
	token.Rev = rev

	return nil
}

func (r *loginTokenRepository) FindByID(ctx context.Context, id string) (*domain.LoginToken, error) {
	db := r.client.DB(r.dbName)

	var token domain.LoginToken
	if err := db.Get(ctx, docID(loginTokenPrefix, id)).ScanDoc(&token); err != nil {
		return nil, wrap(err, "failed to find login token")
	}

	return &token, nil
}

// Mutate relies on document revisions: a write against a stale _rev is
// rejected with 409 and the whole read-modify-write is retried.
func (r *loginTokenRepository) Mutate(ctx context.Context, id string, fn MutateFunc) error {
	db := r.client.DB(r.dbName)
	key := docID(loginTokenPrefix, id)

	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		token, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}

		mutation, err := fn(token)
		if err != nil {
			return err
		}

		switch mutation {
		case MutationNone:
			return nil
		case MutationSave:
			_, err = db.Put(ctx, key, token)
		case MutationDelete:
			_, err = db.Delete(ctx, key, token.Rev)
		default:
			return fmt.Errorf("unknown mutation %d", mutation)
		}

		if err == nil {
			return nil
		}
		if err = wrap(err, "failed to write login token"); !errors.Is(err, ErrConflict) {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return fmt.Errorf("login token %s: %w after %d attempts", id, ErrConflict, maxMutateRetries)
}

func (r *loginTokenRepository) Delete(ctx context.Context, id string) error {
	token, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.client.DB(r.dbName).Delete(ctx, docID(loginTokenPrefix, id), token.Rev); err != nil {
		return wrap(err, "failed to delete login token")
	}

	return nil
}

// DeleteCreatedBefore removes tokens created before cutoff and returns how many
// were deleted. Tokens changed concurrently are skipped.
func (r *loginTokenRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	db := r.client.DB(r.dbName)

	query := expiredTokensQuery(cutoff)

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to query expired login tokens: %w", err)
	}
	defer rows.Close()

	var tombstones []interface{}
	for rows.Next() {
		var token domain.LoginToken
		if err := rows.ScanDoc(&token); err != nil {
			return 0, fmt.Errorf("failed to scan login token: %w", err)
		}
		// Milliseconds truncate; recheck at full precision.
		if !token.CreatedAt.Before(cutoff) {
			continue
		}
		tombstones = append(tombstones, map[string]interface{}{
			"_id":      docID(loginTokenPrefix, token.ID),
			"_rev":     token.Rev,
			"_deleted": true,
		})
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate login tokens: %w", err)
	}
	if len(tombstones) == 0 {
		return 0, nil
	}

	results, err := db.BulkDocs(ctx, tombstones)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired login tokens: %w", err)
	}

	deleted := 0
	for _, res := range results {
		if res.Error == nil {
			deleted++
		}
	}

	return deleted, nil
}

// expiredTokensQuery selects tokens by their numeric creation time. Formatted
// timestamps do not sort as strings once fractional seconds vary in width.
func expiredTokensQuery(cutoff time.Time) map[string]interface{} {
	return map[string]interface{}{
		"selector": map[string]interface{}{
			"partner_api_key": map[string]interface{}{"$exists": true},
			"created_unix_ms": map[string]interface{}{"$lt": cutoff.UnixMilli()},
		},
		"limit": sweepBatchSize,
	}
}
