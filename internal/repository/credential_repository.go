package repository

import (
	"context"
	"fmt"

	"superid/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type CredentialRepository interface {
	Create(ctx context.Context, cred *domain.CredentialDocument) error
	FindByID(ctx context.Context, id string) (*domain.CredentialDocument, error)
	List(ctx context.Context, userID string) ([]*domain.CredentialDocument, error)
	Update(ctx context.Context, cred *domain.CredentialDocument) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
	// CreateMany stores creds in one bulk request. Rev is set on every stored
	// document, including when another one in the batch failed.
	CreateMany(ctx context.Context, creds []*domain.CredentialDocument) error
	DeleteMany(ctx context.Context, creds []*domain.CredentialDocument) (int, error)
}

// listPageSize bounds one _find round trip. CouchDB returns 25 rows when a
// query carries no limit.
const listPageSize = 200

type credentialRepository struct {
	client *kivik.Client
	dbName string
}

func NewCredentialRepository(client *kivik.Client, dbName string) CredentialRepository {
	return &credentialRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *credentialRepository) Create(ctx context.Context, cred *domain.CredentialDocument) error {
	db := r.client.DB(r.dbName)

	rev, err := db.Put(ctx, docID(credentialPrefix, cred.ID), cred)
	if err != nil {
		return wrap(err, "failed to create credential")
	}
	cred.Rev = rev

	return nil
}

func (r *credentialRepository) FindByID(ctx context.Context, id string) (*domain.CredentialDocument, error) {
	db := r.client.DB(r.dbName)

	var cred domain.CredentialDocument
	if err := db.Get(ctx, docID(credentialPrefix, id)).ScanDoc(&cred); err != nil {
		return nil, wrap(err, "failed to find credential")
	}

	return &cred, nil
}

// List returns every credential of userID, oldest first, following the _find
// bookmark until a short page.
func (r *credentialRepository) List(ctx context.Context, userID string) ([]*domain.CredentialDocument, error) {
	creds := []*domain.CredentialDocument{}
	bookmark := ""
	for {
		page, next, err := r.listPage(ctx, userID, bookmark)
		if err != nil {
			return nil, err
		}
		creds = append(creds, page...)

		if len(page) < listPageSize || next == "" || next == bookmark {
			return creds, nil
		}
		bookmark = next
	}
}

func (r *credentialRepository) listPage(ctx context.Context, userID, bookmark string) ([]*domain.CredentialDocument, string, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"user_id": userID,
			"secret":  map[string]interface{}{"$exists": true},
		},
		"sort": []map[string]string{
			{"user_id": "asc"},
			{"created_at": "asc"},
		},
		"limit": listPageSize,
	}
	if bookmark != "" {
		query["bookmark"] = bookmark
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]*domain.CredentialDocument, 0, listPageSize)
	for rows.Next() {
		var cred domain.CredentialDocument
		if err := rows.ScanDoc(&cred); err != nil {
			return nil, "", fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, &cred)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate credentials: %w", err)
	}

	meta, err := rows.Metadata()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read credential page: %w", err)
	}

	return creds, meta.Bookmark, nil
}

func (r *credentialRepository) Update(ctx context.Context, cred *domain.CredentialDocument) error {
	db := r.client.DB(r.dbName)

	rev, err := db.Put(ctx, docID(credentialPrefix, cred.ID), cred)
	if err != nil {
		return wrap(err, "failed to update credential")
	}
	cred.Rev = rev

	return nil
}

func (r *credentialRepository) Delete(ctx context.Context, id string) error {
	db := r.client.DB(r.dbName)

	cred, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := db.Delete(ctx, docID(credentialPrefix, id), cred.Rev); err != nil {
		return wrap(err, "failed to delete credential")
	}

	return nil
}

// DeleteAll removes every credential of userID.
func (r *credentialRepository) DeleteAll(ctx context.Context, userID string) (int, error) {
	creds, err := r.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	return r.DeleteMany(ctx, creds)
}

// bulkCredential carries the CouchDB _id next to the document fields.
type bulkCredential struct {
	DocID string `json:"_id"`
	*domain.CredentialDocument
}

func (r *credentialRepository) CreateMany(ctx context.Context, creds []*domain.CredentialDocument) error {
	if len(creds) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(creds))
	byDocID := make(map[string]*domain.CredentialDocument, len(creds))
	for _, c := range creds {
		id := docID(credentialPrefix, c.ID)
		docs = append(docs, bulkCredential{DocID: id, CredentialDocument: c})
		byDocID[id] = c
	}

	results, err := r.client.DB(r.dbName).BulkDocs(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to create credentials: %w", err)
	}

	var failed error
	for _, res := range results {
		if res.Error != nil {
			if failed == nil {
				failed = fmt.Errorf("failed to create credential %s: %w", res.ID, wrap(res.Error, "bulk create"))
			}
			continue
		}
		if c, ok := byDocID[res.ID]; ok {
			c.Rev = res.Rev
		}
	}

	return failed
}

// DeleteMany tombstones creds in one bulk request. Documents without a
// revision were never stored and are skipped.
func (r *credentialRepository) DeleteMany(ctx context.Context, creds []*domain.CredentialDocument) (int, error) {
	tombstones := make([]interface{}, 0, len(creds))
	for _, c := range creds {
		if c.Rev == "" {
			continue
		}
		tombstones = append(tombstones, map[string]interface{}{
			"_id":      docID(credentialPrefix, c.ID),
			"_rev":     c.Rev,
			"_deleted": true,
		})
	}
	if len(tombstones) == 0 {
		return 0, nil
	}

	results, err := r.client.DB(r.dbName).BulkDocs(ctx, tombstones)
	if err != nil {
		return 0, fmt.Errorf("failed to delete credentials: %w", err)
	}

	deleted := 0
	for _, res := range results {
		if res.Error != nil {
			return deleted, fmt.Errorf("failed to delete credential %s: %w", res.ID, res.Error)
		}
		deleted++
	}

	return deleted, nil
}
