package snapshots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db/dbtest"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func snap(value string) models.HPPSnapshot {
	return models.HPPSnapshot{HPPValue: d(value)}
}

func TestCompareTrend(t *testing.T) {
	band := d("1")
	base := Stats(Range{}, []models.HPPSnapshot{snap("100"), snap("100")})

	tests := []struct {
		name    string
		current []models.HPPSnapshot
		trend   enums.TrendDirection
		change  string
	}{
		{name: "exactly one percent up is stable", current: []models.HPPSnapshot{snap("101")}, trend: enums.TrendStable, change: "1"},
		{name: "above dead band", current: []models.HPPSnapshot{snap("101.5")}, trend: enums.TrendUp, change: "1.5"},
		{name: "exactly one percent down is stable", current: []models.HPPSnapshot{snap("99")}, trend: enums.TrendStable, change: "-1"},
		{name: "below dead band", current: []models.HPPSnapshot{snap("90"), snap("94")}, trend: enums.TrendDown, change: "-8"},
		{name: "no data in period", current: nil, trend: enums.TrendStable, change: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(base, Stats(Range{}, tt.current), band)
			require.Equal(t, tt.trend, got.Trend)
			require.True(t, got.PercentageChange.Equal(d(tt.change)), "change %s", got.PercentageChange)
		})
	}

	emptyBaseline := Compare(Stats(Range{}, nil), Stats(Range{}, []models.HPPSnapshot{snap("500")}), band)
	require.Equal(t, enums.TrendStable, emptyBaseline.Trend)
	require.True(t, emptyBaseline.Delta.IsZero())
}

func TestStats(t *testing.T) {
	got := Stats(Range{}, []models.HPPSnapshot{snap("120"), snap("80"), snap("100")})
	require.Equal(t, 3, got.Count)
	require.True(t, got.Avg.Equal(d("100")))
	require.True(t, got.Min.Equal(d("80")))
	require.True(t, got.Max.Equal(d("120")))
}

type memoryCache struct {
	values map[string]string
	getErr error
	sets   int
}

func newMemoryCache() *memoryCache { return &memoryCache{values: map[string]string{}} }

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.sets++
	m.values[key] = string(value.([]byte))
	return nil
}

func (m *memoryCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryCache) LatestSnapshotKey(recipeID string) string { return "latest:" + recipeID }

func newSnapshot(recipeID uuid.UUID, at time.Time, value string) *models.HPPSnapshot {
	return &models.HPPSnapshot{
		RecipeID:        recipeID,
		SnapshotDate:    at,
		HPPValue:        d(value),
		MaterialCost:    d("1"),
		LaborCost:       d("1"),
		OperationalCost: d("1"),
		TotalCost:       d(value),
		Servings:        1,
		CostBreakdown:   types.CostBreakdown{Labor: types.LaborCost{Source: "default"}},
	}
}

func TestServiceAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t).DB()
	cache := newMemoryCache()
	svc, err := NewService(NewRepository(conn), cache, config.DefaultHPPConfig(), nil)
	require.NoError(t, err)

	recipeID := uuid.New()
	latest, err := svc.Latest(ctx, recipeID)
	require.NoError(t, err)
	require.Nil(t, latest)

	now := time.Date(2026, 6, 30, 10, 0, 0, 0, time.UTC)
	values := []struct {
		daysAgo int
		value   string
	}{
		{daysAgo: 400, value: "80"},
		{daysAgo: 40, value: "100"},
		{daysAgo: 35, value: "100"},
		{daysAgo: 5, value: "110"},
		{daysAgo: 1, value: "120"},
	}
	for _, v := range values {
		require.NoError(t, svc.Save(ctx, newSnapshot(recipeID, now.AddDate(0, 0, -v.daysAgo), v.value)))
	}
	require.NoError(t, svc.Save(ctx, newSnapshot(uuid.New(), now, "999")))

	latest, err = svc.Latest(ctx, recipeID)
	require.NoError(t, err)
	require.True(t, latest.HPPValue.Equal(d("120")))
	require.Equal(t, "default", latest.CostBreakdown.Labor.Source)

	rows, err := svc.List(ctx, recipeID, Range{From: now.AddDate(0, 0, -10)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[0].HPPValue.Equal(d("110")))

	trend, err := svc.Compare(ctx, recipeID,
		Range{From: now.AddDate(0, 0, -60), To: now.AddDate(0, 0, -30)},
		Range{From: now.AddDate(0, 0, -7), To: now},
	)
	require.NoError(t, err)
	require.Equal(t, enums.TrendUp, trend.Trend)
	require.True(t, trend.PercentageChange.Equal(d("15")), "got %s", trend.PercentageChange)
	require.Equal(t, 2, trend.A.Count)

	deleted, err := svc.Purge(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	rows, err = svc.List(ctx, recipeID, Range{})
	require.NoError(t, err)
	require.Len(t, rows, 4)
}

func TestServiceSaveRefreshesCache(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t).DB()
	cache := newMemoryCache()
	svc, err := NewService(NewRepository(conn), cache, config.DefaultHPPConfig(), nil)
	require.NoError(t, err)

	recipeID := uuid.New()
	first := newSnapshot(recipeID, time.Now().UTC(), "10")
	require.NoError(t, svc.Save(ctx, first))
	require.Contains(t, cache.values, cache.LatestSnapshotKey(recipeID.String()))

	second := newSnapshot(recipeID, time.Now().UTC(), "12")
	require.NoError(t, svc.Save(ctx, second))

	got, err := svc.Latest(ctx, recipeID)
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)

	cache.getErr = errors.New("connection refused")
	got, err = svc.Latest(ctx, recipeID)
	require.NoError(t, err, "cache failures fall back to the database")
	require.Equal(t, second.ID, got.ID)
}

func TestServicePurgeEvictsCachedLatest(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t).DB()
	cache := newMemoryCache()
	svc, err := NewService(NewRepository(conn), cache, config.DefaultHPPConfig(), nil)
	require.NoError(t, err)

	now := time.Date(2026, 6, 30, 10, 0, 0, 0, time.UTC)
	stale := uuid.New()
	fresh := uuid.New()
	require.NoError(t, svc.Save(ctx, newSnapshot(stale, now.AddDate(0, 0, -400), "80")))
	require.NoError(t, svc.Save(ctx, newSnapshot(fresh, now.AddDate(0, 0, -1), "90")))
	require.Contains(t, cache.values, cache.LatestSnapshotKey(stale.String()))

	deleted, err := svc.Purge(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.NotContains(t, cache.values, cache.LatestSnapshotKey(stale.String()))
	require.Contains(t, cache.values, cache.LatestSnapshotKey(fresh.String()))

	latest, err := svc.Latest(ctx, stale)
	require.NoError(t, err)
	require.Nil(t, latest)

	deleted, err = svc.Purge(ctx, now)
	require.NoError(t, err)
	require.Zero(t, deleted)
}

func TestServiceValidation(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(NewRepository(dbtest.Open(t).DB()), nil, config.DefaultHPPConfig(), nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	recipeID := uuid.New()

	_, err = svc.List(ctx, recipeID, Range{From: now, To: now.Add(-time.Hour)})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Compare(ctx, recipeID, Range{From: now}, Range{From: now, To: now})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.List(ctx, uuid.Nil, Range{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	saved := newSnapshot(recipeID, now, "1")
	require.NoError(t, svc.Save(ctx, saved))
	require.True(t, pkgerrors.Is(svc.Save(ctx, saved), pkgerrors.CodeValidation), "saving the same snapshot twice must fail")
}
