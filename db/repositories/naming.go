package repositories

import (
	"context"
	"time"

	"gitlab.com/alternet/naming-service/models"
)

// ClaimRepository keeps the names this node registered.
type ClaimRepository interface {
	GenericRepository[models.Claim]
	// Upsert inserts the claim unless the name is already stored.
	Upsert(ctx context.Context, name string) (models.Claim, error)
	DeleteByName(ctx context.Context, name string) error
}

// GrantRepository keeps the leases this node issued.
type GrantRepository interface {
	GenericRepository[models.Grant]
	// Upsert stores g, replacing an earlier grant for the same subdomain.
	Upsert(ctx context.Context, g models.Grant) (models.Grant, error)
	DeleteBySubdomain(ctx context.Context, subdomain string) error
	// DeleteEnded removes grants whose lease ended at or before now.
	DeleteEnded(ctx context.Context, now time.Time) (int64, error)
}
