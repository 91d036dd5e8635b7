package service

import (
	"context"
	"fmt"

	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/repository"
)

// SeedPartners writes the configured partner registry into storage.
func SeedPartners(ctx context.Context, repo repository.PartnerRepository, partners []domain.Partner, logger logging.Logger) error {
	for i := range partners {
		if err := repo.Save(ctx, &partners[i]); err != nil {
			return fmt.Errorf("failed to register partner %s: %w", partners[i].URL, err)
		}
		logger.Info(ctx, "partner registered", "name", partners[i].Name, "url", partners[i].URL)
	}
	return nil
}
