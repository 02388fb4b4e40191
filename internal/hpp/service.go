// Package hpp runs the cost of goods pipeline for one recipe or for many
// recipes at once.
package hpp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/umkmkit/hpp-backend/internal/alerts"
	"github.com/umkmkit/hpp-backend/internal/costing"
	"github.com/umkmkit/hpp-backend/internal/overhead"
	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	"github.com/umkmkit/hpp-backend/pkg/metrics"
)

// RecipeReader loads recipes and selects which ones to run.
type RecipeReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Recipe, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
	ListActiveIDsByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]uuid.UUID, error)
}

// PeriodSource loads the shared overhead period and allocates from it.
type PeriodSource interface {
	LoadPeriod(ctx context.Context, now time.Time) overhead.Period
	Allocate(in overhead.AllocationInput) overhead.Allocation
}

// LaborSource resolves labor cost per serving.
type LaborSource interface {
	Resolve(ctx context.Context, recipe *models.Recipe) costing.Labor
}

// SnapshotStore is the part of the snapshot service the pipeline writes to.
type SnapshotStore interface {
	Latest(ctx context.Context, recipeID uuid.UUID) (*models.HPPSnapshot, error)
	Save(ctx context.Context, snapshot *models.HPPSnapshot) error
}

// AlertEvaluator raises alerts for a saved snapshot.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, in alerts.EvaluateInput) ([]models.HPPAlert, error)
}

// Service is the cost of goods orchestrator.
type Service interface {
	Calculate(ctx context.Context, recipeID uuid.UUID, opts Options) (*Result, error)
	RecalculateAll(ctx context.Context, recipeIDs []uuid.UUID) (*BatchResult, error)
	OnIngredientCostChanged(ctx context.Context, ingredientID uuid.UUID) error
}

// Options tunes a single calculation.
type Options struct {
	TargetMargin *decimal.Decimal
	// Persist saves a snapshot and evaluates alerts.
	Persist bool
}

// Result is one computed recipe cost with what was persisted for it.
type Result struct {
	costing.Result
	RecipeName string            `json:"recipe_name"`
	SnapshotID *uuid.UUID        `json:"snapshot_id,omitempty"`
	Persisted  bool              `json:"persisted"`
	Alerts     []models.HPPAlert `json:"alerts"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// BatchItem summarises one successful recipe in a batch run.
type BatchItem struct {
	RecipeID    uuid.UUID       `json:"recipe_id"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	SnapshotID  *uuid.UUID      `json:"snapshot_id,omitempty"`
	Alerts      int             `json:"alerts"`
}

// BatchFailure is one recipe that could not be calculated or persisted.
type BatchFailure struct {
	RecipeID uuid.UUID      `json:"recipe_id"`
	Code     pkgerrors.Code `json:"code"`
	Error    string         `json:"error"`
}

// BatchResult reports every requested recipe exactly once.
type BatchResult struct {
	Succeeded []BatchItem    `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
	// Skipped recipes were never started because the run was cancelled.
	Skipped []uuid.UUID `json:"skipped"`
}

// ServiceParams wires the orchestrator.
type ServiceParams struct {
	Recipes   RecipeReader
	Periods   PeriodSource
	Labor     LaborSource
	Snapshots SnapshotStore
	Alerts    AlertEvaluator
	Config    config.HPPConfig
	Logger    *logger.Logger
	Metrics   *metrics.HPPMetrics
}

type service struct {
	recipes   RecipeReader
	periods   PeriodSource
	labor     LaborSource
	snapshots SnapshotStore
	alerts    AlertEvaluator
	cfg       config.HPPConfig
	logg      *logger.Logger
	metrics   *metrics.HPPMetrics
	now       func() time.Time
}

// NewService validates and wires the orchestrator.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Recipes == nil:
		return nil, fmt.Errorf("recipe reader required")
	case params.Periods == nil:
		return nil, fmt.Errorf("overhead period source required")
	case params.Labor == nil:
		return nil, fmt.Errorf("labor source required")
	case params.Snapshots == nil:
		return nil, fmt.Errorf("snapshot store required")
	case params.Alerts == nil:
		return nil, fmt.Errorf("alert evaluator required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		recipes:   params.Recipes,
		periods:   params.Periods,
		labor:     params.Labor,
		snapshots: params.Snapshots,
		alerts:    params.Alerts,
		cfg:       params.Config,
		logg:      logg,
		metrics:   params.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Calculate(ctx context.Context, recipeID uuid.UUID, opts Options) (*Result, error) {
	if recipeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipe id required")
	}
	if err := costing.ValidateMargin(opts.TargetMargin); err != nil {
		return nil, err
	}
	period := s.periods.LoadPeriod(ctx, s.now())
	return s.run(ctx, recipeID, period, opts)
}

func (s *service) RecalculateAll(ctx context.Context, recipeIDs []uuid.UUID) (*BatchResult, error) {
	ids := recipeIDs
	if len(ids) == 0 {
		active, err := s.recipes.ListActiveIDs(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active recipes")
		}
		ids = active
	}
	result := &BatchResult{Succeeded: []BatchItem{}, Failed: []BatchFailure{}, Skipped: []uuid.UUID{}}
	if len(ids) == 0 {
		return result, nil
	}

	started := s.now()
	period := s.periods.LoadPeriod(ctx, started)
	// in-flight recipes finish even if the caller gives up
	work := context.WithoutCancel(ctx)

	type outcome struct {
		res *Result
		err error
		ran bool
	}
	outcomes := make([]outcome, len(ids))

	limit := s.cfg.BatchConcurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := s.run(work, id, period, Options{Persist: true})
			outcomes[i] = outcome{res: res, err: err, ran: true}
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range ids {
		o := outcomes[i]
		switch {
		case !o.ran:
			result.Skipped = append(result.Skipped, id)
		case o.err != nil:
			typed := pkgerrors.Classify(o.err)
			result.Failed = append(result.Failed, BatchFailure{RecipeID: id, Code: typed.Code(), Error: typed.Message()})
		default:
			result.Succeeded = append(result.Succeeded, BatchItem{
				RecipeID:    id,
				CostPerUnit: o.res.CostPerUnit,
				SnapshotID:  o.res.SnapshotID,
				Alerts:      len(o.res.Alerts),
			})
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"requested": len(ids),
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
		"skipped":   len(result.Skipped),
		"duration":  s.now().Sub(started).String(),
	})
	s.logg.Info(logCtx, "hpp batch finished")
	for range result.Skipped {
		s.metrics.ObserveCalculation(metrics.OutcomeSkipped, 0)
	}
	return result, nil
}

func (s *service) OnIngredientCostChanged(ctx context.Context, ingredientID uuid.UUID) error {
	ids, err := s.recipes.ListActiveIDsByIngredient(ctx, ingredientID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recipes using ingredient")
	}
	if len(ids) == 0 {
		return nil
	}
	batch, err := s.RecalculateAll(ctx, ids)
	if err != nil {
		return err
	}
	var errs error
	for _, f := range batch.Failed {
		errs = multierr.Append(errs, fmt.Errorf("recipe %s: %s", f.RecipeID, f.Error))
	}
	return errs
}

// run prices one recipe against an already loaded period.
func (s *service) run(ctx context.Context, recipeID uuid.UUID, period overhead.Period, opts Options) (*Result, error) {
	start := time.Now()
	ctx = s.logg.WithRecipeID(ctx, recipeID.String())

	res, err := s.compute(ctx, recipeID, period, opts)
	if err != nil {
		s.metrics.ObserveCalculation(metrics.OutcomeFailure, time.Since(start))
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "hpp calculation failed")
		return nil, err
	}
	if !opts.Persist {
		s.metrics.ObserveCalculation(metrics.OutcomeSuccess, time.Since(start))
		return res, nil
	}

	if err := s.persist(ctx, res); err != nil {
		s.metrics.ObserveCalculation(metrics.OutcomeUnpersisted, time.Since(start))
		s.logg.Error(ctx, "hpp result computed but not fully persisted", err)
		return res, err
	}
	s.metrics.ObserveCalculation(metrics.OutcomeSuccess, time.Since(start))
	return res, nil
}

func (s *service) compute(ctx context.Context, recipeID uuid.UUID, period overhead.Period, opts Options) (*Result, error) {
	recipe, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recipe not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipe")
	}

	material, err := costing.MaterialCost(recipe)
	if err != nil {
		return nil, err
	}
	labor := s.labor.Resolve(ctx, recipe)
	allocation := s.periods.Allocate(overhead.AllocationInput{
		UnitsProduced: period.UnitsProduced(recipe.ID, recipe.Servings),
		Period:        period,
	})

	computed, err := costing.Calculate(costing.Input{
		RecipeID:           recipe.ID,
		Servings:           recipe.Servings,
		CostBasis:          s.cfg.CostBasis,
		Material:           material,
		Labor:              labor,
		OverheadPerUnit:    allocation.PerUnit,
		OverheadPolicy:     allocation.Policy,
		OverheadCategories: allocation.Categories,
		TargetMargin:       opts.TargetMargin,
		SellingPrice:       recipe.SellingPrice,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Result: *computed, RecipeName: recipe.Name, Alerts: []models.HPPAlert{}}
	if material.Empty {
		res.Warnings = append(res.Warnings, "recipe has no ingredients")
	}
	if material.Missing > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d ingredient(s) not found and costed at zero", material.Missing))
	}
	if allocation.Policy == overhead.PolicyDefault {
		res.Warnings = append(res.Warnings, "overhead pool unavailable; default overhead per serving applied")
	}
	return res, nil
}

// persist saves the snapshot and raises alerts. The previous snapshot is read
// before the save so the alert engine compares against history only.
func (s *service) persist(ctx context.Context, res *Result) error {
	previous, err := s.snapshots.Latest(ctx, res.RecipeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load previous snapshot")
	}

	snapshot := toSnapshot(res, s.now())
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save snapshot")
	}
	id := snapshot.ID
	res.SnapshotID = &id
	res.Persisted = true

	raised, err := s.alerts.Evaluate(ctx, alerts.EvaluateInput{RecipeName: res.RecipeName, Previous: previous, Current: snapshot})
	res.Alerts = append(res.Alerts, raised...)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "raise alerts")
	}
	return nil
}

func toSnapshot(res *Result, now time.Time) *models.HPPSnapshot {
	return &models.HPPSnapshot{
		RecipeID:         res.RecipeID,
		SnapshotDate:     now,
		HPPValue:         res.CostPerUnit,
		MaterialCost:     res.MaterialCost,
		LaborCost:        res.LaborCost,
		OperationalCost:  res.OverheadCost,
		TotalCost:        res.TotalCost,
		Servings:         res.Servings,
		CostBreakdown:    res.Breakdown,
		SellingPrice:     res.SellingPrice,
		MarginPercentage: res.MarginPercentage,
	}
}
