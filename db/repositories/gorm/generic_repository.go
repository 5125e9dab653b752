package repositories_gorm

import (
	"context"

	"gorm.io/gorm"

	"gitlab.com/alternet/naming-service/db/repositories"
)

// GenericRepositoryGORM is a generic repository implementation using GORM as an ORM.
// It is intended to be embedded in model repositories to provide basic database operations.
type GenericRepositoryGORM[T repositories.ModelType] struct {
	db *gorm.DB
}

// NewGenericRepository creates a new instance of GenericRepositoryGORM.
func NewGenericRepository[T repositories.ModelType](db *gorm.DB) repositories.GenericRepository[T] {
	return &GenericRepositoryGORM[T]{db: db}
}

// GetQuery returns a clean Query instance for building queries.
func (repo *GenericRepositoryGORM[T]) GetQuery() repositories.Query[T] {
	return repositories.Query[T]{}
}

// Create adds a new record to the repository and returns the created data.
func (repo *GenericRepositoryGORM[T]) Create(ctx context.Context, data T) (T, error) {
	err := repo.db.WithContext(ctx).Create(&data).Error
	return data, handleDBError(err)
}

// Get retrieves a record by its identifier.
func (repo *GenericRepositoryGORM[T]) Get(ctx context.Context, id string) (T, error) {
	var result T
	err := repo.db.WithContext(ctx).First(&result, "id = ?", id).Error
	return result, handleDBError(err)
}

// Update modifies a record by its identifier and returns the stored row.
func (repo *GenericRepositoryGORM[T]) Update(ctx context.Context, id string, data T) (T, error) {
	res := repo.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(data)
	if res.Error != nil {
		return data, handleDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return data, repositories.NotFoundError
	}
	return repo.Get(ctx, id)
}

// Delete removes a record by its identifier.
func (repo *GenericRepositoryGORM[T]) Delete(ctx context.Context, id string) error {
	res := repo.db.WithContext(ctx).Delete(new(T), "id = ?", id)
	if res.Error != nil {
		return handleDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.NotFoundError
	}
	return nil
}

// Find retrieves a single record based on a query.
func (repo *GenericRepositoryGORM[T]) Find(
	ctx context.Context,
	query repositories.Query[T],
) (T, error) {
	var result T
	db := repo.db.WithContext(ctx).Model(new(T))

	db = applyConditions(db, query)

	err := db.First(&result).Error
	return result, handleDBError(err)
}

// FindAll retrieves multiple records based on a query.
func (repo *GenericRepositoryGORM[T]) FindAll(
	ctx context.Context,
	query repositories.Query[T],
) ([]T, error) {
	var results []T
	db := repo.db.WithContext(ctx).Model(new(T))

	db = applyConditions(db, query)

	err := db.Find(&results).Error
	return results, handleDBError(err)
}

// DeleteAll removes the records matching query. GORM refuses a delete
// without conditions, so an empty query is an error.
func (repo *GenericRepositoryGORM[T]) DeleteAll(
	ctx context.Context,
	query repositories.Query[T],
) (int64, error) {
	db := applyConditions(repo.db.WithContext(ctx), query)
	res := db.Delete(new(T))
	return res.RowsAffected, handleDBError(res.Error)
}
