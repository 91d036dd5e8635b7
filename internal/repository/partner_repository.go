package repository

import (
	"context"
	"fmt"

	"superid/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// PartnerRepository is the registry of sites allowed to request login tokens.
type PartnerRepository interface {
	FindByCredentials(ctx context.Context, apiKey, url string) (*domain.Partner, error)
	Save(ctx context.Context, partner *domain.Partner) error
}

type partnerRepository struct {
	client *kivik.Client
	dbName string
}

func NewPartnerRepository(client *kivik.Client, dbName string) PartnerRepository {
	return &partnerRepository{
		client: client,
		dbName: dbName,
	}
}

// FindByCredentials matches apiKey and url exactly.
func (r *partnerRepository) FindByCredentials(ctx context.Context, apiKey, url string) (*domain.Partner, error) {
	db := r.client.DB(r.dbName)

	var partner domain.Partner
	if err := db.Get(ctx, docID(partnerPrefix, apiKey)).ScanDoc(&partner); err != nil {
		return nil, wrap(err, "failed to find partner")
	}
	if partner.APIKey != apiKey || partner.URL != url {
		return nil, ErrNotFound
	}

	return &partner, nil
}

// Save creates or replaces the partner registered under its API key.
func (r *partnerRepository) Save(ctx context.Context, partner *domain.Partner) error {
	db := r.client.DB(r.dbName)
	id := docID(partnerPrefix, partner.APIKey)

	var rawDoc map[string]interface{}
	if err := db.Get(ctx, id).ScanDoc(&rawDoc); err == nil {
		rawDoc["api_key"] = partner.APIKey
		rawDoc["url"] = partner.URL
		rawDoc["name"] = partner.Name

		if _, err := db.Put(ctx, id, rawDoc); err != nil {
			return wrap(err, "failed to update partner")
		}
		return nil
	}

	if _, err := db.Put(ctx, id, partner); err != nil {
		return fmt.Errorf("failed to create partner: %w", err)
	}

	return nil
}
