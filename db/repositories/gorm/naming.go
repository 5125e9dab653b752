package repositories_gorm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/alternet/naming-service/db/repositories"
	"gitlab.com/alternet/naming-service/models"
)

// ClaimRepositoryGORM is a GORM implementation of the ClaimRepository interface.
type ClaimRepositoryGORM struct {
	repositories.GenericRepository[models.Claim]
	db *gorm.DB
}

// NewClaimRepository creates a new instance of ClaimRepositoryGORM.
func NewClaimRepository(db *gorm.DB) repositories.ClaimRepository {
	return &ClaimRepositoryGORM{
		GenericRepository: NewGenericRepository[models.Claim](db),
		db:                db,
	}
}

func (repo *ClaimRepositoryGORM) Upsert(ctx context.Context, name string) (models.Claim, error) {
	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&models.Claim{Name: name}).Error
	if err != nil {
		return models.Claim{}, handleDBError(err)
	}
	query := repo.GetQuery()
	query.Conditions = append(query.Conditions, repositories.EQ("Name", name))
	return repo.Find(ctx, query)
}

func (repo *ClaimRepositoryGORM) DeleteByName(ctx context.Context, name string) error {
	query := repo.GetQuery()
	query.Conditions = append(query.Conditions, repositories.EQ("Name", name))
	n, err := repo.DeleteAll(ctx, query)
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.NotFoundError
	}
	return nil
}

// GrantRepositoryGORM is a GORM implementation of the GrantRepository interface.
type GrantRepositoryGORM struct {
	repositories.GenericRepository[models.Grant]
	db *gorm.DB
}

// NewGrantRepository creates a new instance of GrantRepositoryGORM.
func NewGrantRepository(db *gorm.DB) repositories.GrantRepository {
	return &GrantRepositoryGORM{
		GenericRepository: NewGenericRepository[models.Grant](db),
		db:                db,
	}
}

func (repo *GrantRepositoryGORM) Upsert(ctx context.Context, g models.Grant) (models.Grant, error) {
	g.Until = g.Until.UTC()
	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subdomain"}},
			DoUpdates: clause.AssignmentColumns([]string{"leasee", "until", "updated_at"}),
		}).
		Create(&g).Error
	if err != nil {
		return models.Grant{}, handleDBError(err)
	}
	query := repo.GetQuery()
	query.Conditions = append(query.Conditions, repositories.EQ("Subdomain", g.Subdomain))
	return repo.Find(ctx, query)
}

func (repo *GrantRepositoryGORM) DeleteBySubdomain(ctx context.Context, subdomain string) error {
	query := repo.GetQuery()
	query.Conditions = append(query.Conditions, repositories.EQ("Subdomain", subdomain))
	n, err := repo.DeleteAll(ctx, query)
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.NotFoundError
	}
	return nil
}

func (repo *GrantRepositoryGORM) DeleteEnded(ctx context.Context, now time.Time) (int64, error) {
	query := repo.GetQuery()
	query.Conditions = append(query.Conditions, repositories.LTE("Until", now.UTC()))
	return repo.DeleteAll(ctx, query)
}
