package db

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"gitlab.com/alternet/naming-service/db/repositories"
	repositories_gorm "gitlab.com/alternet/naming-service/db/repositories/gorm"
	"gitlab.com/alternet/naming-service/models"
	"gitlab.com/alternet/naming-service/naming/behaviour"
	"gitlab.com/alternet/naming-service/naming/record"
)

// Store keeps the behaviour's claims and grants in the database.
type Store struct {
	claims repositories.ClaimRepository
	grants repositories.GrantRepository
}

var _ behaviour.Store = (*Store)(nil)

func NewStore(database *gorm.DB) *Store {
	return &Store{
		claims: repositories_gorm.NewClaimRepository(database),
		grants: repositories_gorm.NewGrantRepository(database),
	}
}

func (s *Store) SaveClaim(ctx context.Context, name record.Name) error {
	_, err := s.claims.Upsert(ctx, name.String())
	return errors.Wrapf(err, "saving claim %s", name)
}

func (s *Store) DeleteClaim(ctx context.Context, name record.Name) error {
	err := s.claims.DeleteByName(ctx, name.String())
	if errors.Is(err, repositories.NotFoundError) {
		return nil
	}
	return errors.Wrapf(err, "deleting claim %s", name)
}

// Claims returns the stored names in order. Rows that no longer parse are
// skipped.
func (s *Store) Claims(ctx context.Context) ([]record.Name, error) {
	query := s.claims.GetQuery()
	query.SortBy = "Name"
	rows, err := s.claims.FindAll(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "listing claims")
	}
	names := make([]record.Name, 0, len(rows))
	for _, row := range rows {
		name, err := record.ParseName(row.Name)
		if err != nil {
			zlog.Sugar().Warnf("skipping stored claim %q: %v", row.Name, err)
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Store) SaveGrant(ctx context.Context, g behaviour.Grant) error {
	_, err := s.grants.Upsert(ctx, models.Grant{
		Subdomain: g.Subdomain.String(),
		Leasee:    g.Leasee.String(),
		Until:     g.Until,
	})
	return errors.Wrapf(err, "saving grant %s", g.Subdomain)
}

func (s *Store) DeleteGrant(ctx context.Context, subdomain record.Name) error {
	err := s.grants.DeleteBySubdomain(ctx, subdomain.String())
	if errors.Is(err, repositories.NotFoundError) {
		return nil
	}
	return errors.Wrapf(err, "deleting grant %s", subdomain)
}

// Grants returns the stored grants ordered by subdomain.
func (s *Store) Grants(ctx context.Context) ([]behaviour.Grant, error) {
	query := s.grants.GetQuery()
	query.SortBy = "Subdomain"
	rows, err := s.grants.FindAll(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "listing grants")
	}
	grants := make([]behaviour.Grant, 0, len(rows))
	for _, row := range rows {
		subdomain, err := record.ParseName(row.Subdomain)
		if err != nil {
			zlog.Sugar().Warnf("skipping stored grant %q: %v", row.Subdomain, err)
			continue
		}
		leasee, err := peer.Decode(row.Leasee)
		if err != nil {
			zlog.Sugar().Warnf("skipping stored grant %q: %v", row.Subdomain, err)
			continue
		}
		grants = append(grants, behaviour.Grant{Subdomain: subdomain, Leasee: leasee, Until: row.Until})
	}
	return grants, nil
}

// PruneGrants drops grants whose lease ended at or before now.
func (s *Store) PruneGrants(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.grants.DeleteEnded(ctx, now)
	return n, errors.Wrap(err, "pruning grants")
}
