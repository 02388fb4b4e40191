package production

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/umkmkit/hpp-backend/pkg/db/dbtest"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
)

func TestRepositoryVolumesAndLabor(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t).DB()
	repo := NewRepository(conn)

	now := time.Now().UTC()
	recipeA, recipeB := uuid.New(), uuid.New()
	batches := []models.ProductionBatch{
		{RecipeID: recipeA, Status: enums.ProductionStatusCompleted, ActualQuantity: decimal.NewFromInt(20), LaborCost: decimal.NewFromInt(100000), ProducedAt: now.Add(-24 * time.Hour)},
		{RecipeID: recipeA, Status: enums.ProductionStatusCompleted, ActualQuantity: decimal.NewFromInt(30), LaborCost: decimal.NewFromInt(50000), ProducedAt: now.Add(-48 * time.Hour)},
		{RecipeID: recipeA, Status: enums.ProductionStatusCompleted, ActualQuantity: decimal.NewFromInt(10), LaborCost: decimal.NewFromInt(10000), ProducedAt: now.Add(-60 * 24 * time.Hour)},
		{RecipeID: recipeA, Status: enums.ProductionStatusPlanned, ActualQuantity: decimal.NewFromInt(99), LaborCost: decimal.NewFromInt(1), ProducedAt: now},
		{RecipeID: recipeB, Status: enums.ProductionStatusCompleted, ActualQuantity: decimal.NewFromInt(50), LaborCost: decimal.NewFromInt(25000), ProducedAt: now.Add(-2 * time.Hour)},
	}
	require.NoError(t, conn.Create(&batches).Error)

	since := now.Add(-30 * 24 * time.Hour)

	volumes, err := repo.VolumeByRecipe(ctx, since)
	require.NoError(t, err)
	require.Len(t, volumes, 2)
	require.True(t, volumes[recipeA].Equal(decimal.NewFromInt(50)), "got %s", volumes[recipeA])
	require.True(t, volumes[recipeB].Equal(decimal.NewFromInt(50)), "got %s", volumes[recipeB])

	recent, err := repo.RecentCompletedBatches(ctx, recipeA, 2)
	require.NoError(t, err)
	require.Equal(t, 2, recent.Batches)
	perUnit, ok := recent.PerUnit()
	require.True(t, ok)
	require.True(t, perUnit.Equal(decimal.NewFromInt(3000)), "got %s", perUnit)

	windowed, err := repo.CompletedBatchesSince(ctx, recipeA, since)
	require.NoError(t, err)
	require.Equal(t, 2, windowed.Batches)

	none, err := repo.RecentCompletedBatches(ctx, uuid.New(), 10)
	require.NoError(t, err)
	_, ok = none.PerUnit()
	require.False(t, ok)
}
