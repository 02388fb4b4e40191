package wac

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db/dbtest"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

func TestLedgerAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)

	ingredient := &models.Ingredient{Name: "sugar", Unit: "kg", PricePerUnit: d("0"), IsActive: true}
	require.NoError(t, client.DB().WithContext(ctx).Create(ingredient).Error)

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(client.DB()),
		Tx:     client,
		Logger: logger.Nop(),
		Config: config.DefaultHPPConfig(),
	})
	require.NoError(t, err)

	got, err := svc.RecordPurchase(ctx, ingredient.ID, d("10"), d("100"))
	require.NoError(t, err)
	require.True(t, got.WeightedAverageCost.Equal(d("100")), "first purchase sets wac to price, got %s", got.WeightedAverageCost)

	got, err = svc.RecordPurchase(ctx, ingredient.ID, d("10"), d("200"))
	require.NoError(t, err)
	require.True(t, got.WeightedAverageCost.Equal(d("150")), "got %s", got.WeightedAverageCost)
	require.Equal(t, int64(2), got.Version)

	got, err = svc.RecordUsage(ctx, ingredient.ID, d("25"))
	require.NoError(t, err)
	require.True(t, got.CurrentStock.IsZero())
	require.True(t, got.WeightedAverageCost.Equal(d("150")))

	var stored models.Ingredient
	require.NoError(t, client.DB().First(&stored, "id = ?", ingredient.ID).Error)
	require.True(t, stored.CurrentStock.IsZero())
	require.True(t, stored.PricePerUnit.Equal(d("200")))
	require.Equal(t, int64(3), stored.Version)

	history, err := svc.History(ctx, ingredient.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, enums.StockTransactionUsage, history[0].TransactionType)

	rec, err := svc.Reconcile(ctx, ingredient.ID)
	require.NoError(t, err)
	require.True(t, rec.Consistent, "replay should match stored position: %+v", rec)
}

func TestConcurrentPurchasesAreSerialized(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)

	ingredient := &models.Ingredient{Name: "butter", Unit: "kg", IsActive: true}
	require.NoError(t, client.DB().WithContext(ctx).Create(ingredient).Error)

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(client.DB()),
		Tx:     client,
		Logger: logger.Nop(),
		Config: config.DefaultHPPConfig(),
	})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPurchase(ctx, ingredient.ID, d("1"), d("80"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var stored models.Ingredient
	require.NoError(t, client.DB().First(&stored, "id = ?", ingredient.ID).Error)
	require.True(t, stored.CurrentStock.Equal(d("8")), "no purchase may be lost, got %s", stored.CurrentStock)
	require.True(t, stored.WeightedAverageCost.Equal(d("80")))
	require.Equal(t, int64(workers), stored.Version)

	var count int64
	require.NoError(t, client.DB().Model(&models.StockTransaction{}).Where("ingredient_id = ?", ingredient.ID).Count(&count).Error)
	require.Equal(t, int64(workers), count)
}
