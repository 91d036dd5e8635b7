package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("document update conflict")
)

// Document ID prefixes. Every kind shares one database.
const (
	accountPrefix    = "account"
	credentialPrefix = "credential"
	loginTokenPrefix = "login_token"
	partnerPrefix    = "partner"
)

func docID(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// wrap maps CouchDB status codes onto the package errors.
func wrap(err error, op string) error {
	switch kivik.HTTPStatus(err) {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// EnsureDatabase creates dbName and the Mango indexes the repositories query on.
func EnsureDatabase(ctx context.Context, client *kivik.Client, dbName string) (created bool, err error) {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return false, fmt.Errorf("failed to create database: %w", err)
		}
		created = true
	}

	db := client.DB(dbName)
	indexes := map[string][]string{
		"account-email":      {"email"},
		"credential-user":    {"user_id", "created_at"},
		"login-token-age":    {"partner_api_key", "created_unix_ms"},
		"partner-credential": {"api_key", "url"},
	}
	for name, fields := range indexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, "superid", name, index); err != nil {
			return created, fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return created, nil
}
