package hpp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/internal/alerts"
	"github.com/umkmkit/hpp-backend/internal/costing"
	"github.com/umkmkit/hpp-backend/internal/overhead"
	"github.com/umkmkit/hpp-backend/internal/production"
	"github.com/umkmkit/hpp-backend/internal/recipes"
	"github.com/umkmkit/hpp-backend/internal/snapshots"
	"github.com/umkmkit/hpp-backend/internal/wac"
	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db"
	"github.com/umkmkit/hpp-backend/pkg/db/dbtest"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

type stack struct {
	client    *db.Client
	conn      *gorm.DB
	hpp       Service
	snapshots snapshots.Service
	alerts    alerts.Service
	wac       wac.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := config.DefaultHPPConfig()
	logg := logger.Nop()
	client := dbtest.Open(t)
	conn := client.DB()

	recipeRepo := recipes.NewRepository(conn)
	productionRepo := production.NewRepository(conn)
	snapshotSvc, err := snapshots.NewService(snapshots.NewRepository(conn), nil, cfg, logg)
	require.NoError(t, err)
	alertSvc, err := alerts.NewService(alerts.NewRepository(conn), cfg, logg, nil)
	require.NoError(t, err)

	hppSvc, err := NewService(ServiceParams{
		Recipes:   recipeRepo,
		Periods:   overhead.NewService(overhead.NewRepository(conn), productionRepo, recipeRepo, cfg, logg),
		Labor:     costing.NewLaborResolver(productionRepo, cfg, logg),
		Snapshots: snapshotSvc,
		Alerts:    alertSvc,
		Config:    cfg,
		Logger:    logg,
	})
	require.NoError(t, err)

	wacSvc, err := wac.NewService(wac.ServiceParams{
		Repo:     wac.NewRepository(conn),
		Tx:       client,
		Logger:   logg,
		Config:   cfg,
		Listener: hppSvc,
	})
	require.NoError(t, err)

	return &stack{client: client, conn: conn, hpp: hppSvc, snapshots: snapshotSvc, alerts: alertSvc, wac: wacSvc}
}

func (s *stack) ingredient(t *testing.T, name string, stock string, wacValue *decimal.Decimal, price string) *models.Ingredient {
	t.Helper()
	ing := &models.Ingredient{Name: name, Unit: "kg", CurrentStock: d(stock), WeightedAverageCost: wacValue, PricePerUnit: d(price), IsActive: true}
	require.NoError(t, s.conn.Create(ing).Error)
	return ing
}

func (s *stack) recipe(t *testing.T, name string, servings int, lines map[*models.Ingredient]string) *models.Recipe {
	t.Helper()
	r := &models.Recipe{Name: name, Servings: servings, IsActive: true}
	require.NoError(t, s.conn.Create(r).Error)
	pos := 0
	for ing, qty := range lines {
		pos++
		line := models.RecipeIngredient{RecipeID: r.ID, IngredientID: ing.ID, Position: pos, Quantity: d(qty), Unit: ing.Unit}
		require.NoError(t, s.conn.Create(&line).Error)
	}
	return r
}

func TestCalculateEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	a := s.ingredient(t, "A", "2", dp("5000"), "5000")
	b := s.ingredient(t, "B", "10", dp("3000"), "3000")
	r := s.recipe(t, "R", 5, map[*models.Ingredient]string{a: "2", b: "1"})
	other := s.recipe(t, "Other", 1, nil)

	require.NoError(t, s.conn.Create(&models.OperationalCost{Name: "rent", Category: "rent", Amount: d("50000"), IsActive: true}).Error)
	now := time.Now().UTC()
	batches := []models.ProductionBatch{
		{RecipeID: r.ID, Status: enums.ProductionStatusCompleted, ActualQuantity: d("20"), LaborCost: d("100000"), ProducedAt: now.Add(-48 * time.Hour)},
		{RecipeID: other.ID, Status: enums.ProductionStatusCompleted, ActualQuantity: d("80"), LaborCost: d("1"), ProducedAt: now.Add(-24 * time.Hour)},
	}
	require.NoError(t, s.conn.Create(&batches).Error)

	res, err := s.hpp.Calculate(ctx, r.ID, Options{TargetMargin: dp("0.4"), Persist: true})
	require.NoError(t, err)
	require.True(t, res.MaterialCost.Equal(d("13000")), "material %s", res.MaterialCost)
	require.True(t, res.Breakdown.Overhead.PerUnit.Equal(d("500")), "overhead/unit %s", res.Breakdown.Overhead.PerUnit)
	require.Equal(t, overhead.PolicyVolume, res.Breakdown.Overhead.Policy)
	require.True(t, res.LaborCost.Equal(d("5000")), "labor %s", res.LaborCost)
	require.Equal(t, costing.LaborSourceBatches, res.Breakdown.Labor.Source)
	require.True(t, res.TotalCost.Equal(d("18500")), "total %s", res.TotalCost)
	require.True(t, res.CostPerUnit.Equal(d("3700")), "cpu %s", res.CostPerUnit)
	require.True(t, res.RecommendedPrice.Equal(d("30833.3333")), "recommended %s", res.RecommendedPrice)
	require.True(t, res.Persisted)
	require.NotNil(t, res.SnapshotID)
	require.Empty(t, res.Alerts, "first snapshot raises no change alert")

	// buying A at a higher price moves its WAC and re-snapshots R
	_, err = s.wac.RecordPurchase(ctx, a.ID, d("2"), d("11000"))
	require.NoError(t, err)

	latest, err := s.snapshots.Latest(ctx, r.ID)
	require.NoError(t, err)
	require.NotEqual(t, *res.SnapshotID, latest.ID)
	require.True(t, latest.HPPValue.Equal(d("4900")), "new cpu %s", latest.HPPValue)

	listed, err := s.alerts.List(ctx, alerts.ListParams{RecipeID: &r.ID})
	require.NoError(t, err)
	var increase *models.HPPAlert
	for i := range listed.Items {
		if listed.Items[i].AlertType == enums.HPPAlertIncrease {
			increase = &listed.Items[i]
		}
	}
	require.NotNil(t, increase, "expected an increase alert, got %+v", listed.Items)
	require.Equal(t, enums.AlertSeverityCritical, increase.Severity)
	require.Equal(t, latest.ID, *increase.SnapshotID)
}

func TestCalculateWithoutPersistence(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	flour := s.ingredient(t, "flour", "0", nil, "12")
	r := s.recipe(t, "bread", 4, map[*models.Ingredient]string{flour: "2"})

	res, err := s.hpp.Calculate(ctx, r.ID, Options{})
	require.NoError(t, err)
	require.False(t, res.Persisted)
	require.True(t, res.MaterialCost.Equal(d("24")))
	require.Equal(t, overhead.PolicyNone, res.Breakdown.Overhead.Policy)
	require.Equal(t, costing.LaborSourceDefault, res.Breakdown.Labor.Source)

	latest, err := s.snapshots.Latest(ctx, r.ID)
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestCalculateErrors(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, err := s.hpp.Calculate(ctx, uuid.New(), Options{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	r := s.recipe(t, "broken", 0, nil)
	_, err = s.hpp.Calculate(ctx, r.ID, Options{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = s.hpp.Calculate(ctx, uuid.New(), Options{TargetMargin: dp("1")})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRecalculateAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	sugar := s.ingredient(t, "sugar", "0", dp("10"), "10")

	var ids []uuid.UUID
	for i := 1; i <= 10; i++ {
		qty := "1"
		if i == 4 {
			qty = "-1"
		}
		r := s.recipe(t, fmt.Sprintf("recipe-%02d", i), 2, map[*models.Ingredient]string{sugar: qty})
		ids = append(ids, r.ID)
	}

	res, err := s.hpp.RecalculateAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 9)
	require.Len(t, res.Failed, 1)
	require.Empty(t, res.Skipped)
	require.Equal(t, ids[3], res.Failed[0].RecipeID)
	require.Equal(t, pkgerrors.CodeValidation, res.Failed[0].Code)

	for _, item := range res.Succeeded {
		require.NotNil(t, item.SnapshotID)
	}
}

type countingRecipes struct {
	RecipeReader
	mu     sync.Mutex
	gets   int
	onGet  func()
	recipe func(id uuid.UUID) *models.Recipe
}

func (c *countingRecipes) Get(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	if c.onGet != nil {
		c.onGet()
	}
	return c.recipe(id), nil
}

type staticPeriods struct{}

func (staticPeriods) LoadPeriod(context.Context, time.Time) overhead.Period { return overhead.Period{} }

func (staticPeriods) Allocate(overhead.AllocationInput) overhead.Allocation {
	return overhead.Allocation{PerUnit: decimal.Zero, Policy: overhead.PolicyNone}
}

type fixedLabor struct{}

func (fixedLabor) Resolve(context.Context, *models.Recipe) costing.Labor {
	return costing.Labor{PerServing: d("100"), Source: costing.LaborSourceDefault}
}

type brokenSnapshots struct{}

func (brokenSnapshots) Latest(context.Context, uuid.UUID) (*models.HPPSnapshot, error) { return nil, nil }

func (brokenSnapshots) Save(context.Context, *models.HPPSnapshot) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection reset"), "save hpp snapshot")
}

type noAlerts struct{}

func (noAlerts) Evaluate(context.Context, alerts.EvaluateInput) ([]models.HPPAlert, error) {
	return nil, nil
}

func newFakeService(t *testing.T, reader RecipeReader, store SnapshotStore, concurrency int) Service {
	t.Helper()
	cfg := config.DefaultHPPConfig()
	cfg.BatchConcurrency = concurrency
	svc, err := NewService(ServiceParams{
		Recipes:   reader,
		Periods:   staticPeriods{},
		Labor:     fixedLabor{},
		Snapshots: store,
		Alerts:    noAlerts{},
		Config:    cfg,
	})
	require.NoError(t, err)
	return svc
}

func simpleRecipe(id uuid.UUID) *models.Recipe {
	return &models.Recipe{ID: id, Name: "r", Servings: 1}
}

func TestRecalculateAllStopsSchedulingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &countingRecipes{recipe: simpleRecipe}
	reader.onGet = cancel
	svc := newFakeService(t, reader, noopSnapshots{}, 1)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	res, err := svc.RecalculateAll(ctx, ids)
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 1, "the in-flight recipe completes")
	require.Equal(t, ids[0], res.Succeeded[0].RecipeID)
	require.Equal(t, ids[1:], res.Skipped)
	require.Equal(t, 1, reader.gets)
}

func TestStorageFailureStillReturnsResult(t *testing.T) {
	reader := &countingRecipes{recipe: simpleRecipe}
	svc := newFakeService(t, reader, brokenSnapshots{}, 2)

	res, err := svc.Calculate(context.Background(), uuid.New(), Options{Persist: true})
	require.Error(t, err)
	require.True(t, pkgerrors.IsRetryable(err))
	require.NotNil(t, res, "computed result is returned with the storage error")
	require.False(t, res.Persisted)
	require.True(t, res.CostPerUnit.Equal(d("100")))

	batch, err := svc.RecalculateAll(context.Background(), []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)
	require.Len(t, batch.Failed, 2)
	require.Equal(t, pkgerrors.CodeDependency, batch.Failed[0].Code)
}

type noopSnapshots struct{}

func (noopSnapshots) Latest(context.Context, uuid.UUID) (*models.HPPSnapshot, error) { return nil, nil }

func (noopSnapshots) Save(_ context.Context, s *models.HPPSnapshot) error {
	s.ID = uuid.New()
	return nil
}
