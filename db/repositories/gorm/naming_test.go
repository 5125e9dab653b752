package repositories_gorm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/alternet/naming-service/db/repositories"
	"gitlab.com/alternet/naming-service/models"
)

func TestClaimRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewClaimRepository(setup(t))

	first, err := repo.Upsert(ctx, "an")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	again, err := repo.Upsert(ctx, "an")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "upsert keeps the existing row")

	_, err = repo.Upsert(ctx, "b.an")
	require.NoError(t, err)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "an", got.Name)

	_, err = repo.Create(ctx, models.Claim{Name: "an"})
	assert.ErrorIs(t, err, repositories.ConflictError)

	query := repo.GetQuery()
	query.SortBy = "-Name"
	all, err := repo.FindAll(ctx, query)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b.an", all[0].Name)
	assert.Equal(t, "an", all[1].Name)

	query = repo.GetQuery()
	query.Instance = models.Claim{Name: "b.an"}
	found, err := repo.Find(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, "b.an", found.Name)

	require.NoError(t, repo.DeleteByName(ctx, "an"))
	assert.ErrorIs(t, repo.DeleteByName(ctx, "an"), repositories.NotFoundError)
	_, err = repo.Get(ctx, first.ID)
	assert.ErrorIs(t, err, repositories.NotFoundError)
}

func TestGrantRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewGrantRepository(setup(t))
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := repo.Upsert(ctx, models.Grant{Subdomain: "b.an", Leasee: "peer-one", Until: now.Add(time.Hour)})
	require.NoError(t, err)

	moved, err := repo.Upsert(ctx, models.Grant{Subdomain: "b.an", Leasee: "peer-two", Until: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, moved.ID, "upsert replaces the grant for the subdomain")
	assert.Equal(t, "peer-two", moved.Leasee)
	assert.True(t, now.Add(2*time.Hour).Equal(moved.Until))

	_, err = repo.Upsert(ctx, models.Grant{Subdomain: "c.an", Leasee: "peer-three", Until: now.Add(-time.Minute)})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, models.Grant{Subdomain: "d.an", Leasee: "peer-four", Until: now})
	require.NoError(t, err)

	n, err := repo.DeleteEnded(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	query := repo.GetQuery()
	query.Conditions = append(query.Conditions, repositories.GT("Until", now))
	left, err := repo.FindAll(ctx, query)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b.an", left[0].Subdomain)

	updated, err := repo.Update(ctx, moved.ID, models.Grant{Leasee: "peer-five"})
	require.NoError(t, err)
	assert.Equal(t, "peer-five", updated.Leasee)
	assert.Equal(t, "b.an", updated.Subdomain)

	_, err = repo.Update(ctx, "missing", models.Grant{Leasee: "x"})
	assert.ErrorIs(t, err, repositories.NotFoundError)

	require.NoError(t, repo.DeleteBySubdomain(ctx, "b.an"))
	assert.ErrorIs(t, repo.Delete(ctx, moved.ID), repositories.NotFoundError)
}
