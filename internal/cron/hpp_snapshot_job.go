package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/umkmkit/hpp-backend/internal/hpp"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

type recalculator interface {
	RecalculateAll(ctx context.Context, recipeIDs []uuid.UUID) (*hpp.BatchResult, error)
}

// HPPSnapshotJobParams wires the scheduled recalculation job.
type HPPSnapshotJobParams struct {
	Logger  *logger.Logger
	HPP     recalculator
	Enabled bool
}

// NewHPPSnapshotJob returns a job that recalculates and snapshots every active
// recipe. A disabled job logs and returns without work.
func NewHPPSnapshotJob(params HPPSnapshotJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.HPP == nil {
		return nil, fmt.Errorf("hpp service required")
	}
	return &hppSnapshotJob{logg: params.Logger, hpp: params.HPP, enabled: params.Enabled}, nil
}

type hppSnapshotJob struct {
	logg    *logger.Logger
	hpp     recalculator
	enabled bool
}

func (j *hppSnapshotJob) Name() string { return "hpp-snapshot" }

func (j *hppSnapshotJob) Run(ctx context.Context) error {
	if !j.enabled {
		j.logg.Info(ctx, "automatic snapshots disabled; skipping")
		return nil
	}
	res, err := j.hpp.RecalculateAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("recalculate recipes: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"succeeded": len(res.Succeeded),
		"failed":    len(res.Failed),
		"skipped":   len(res.Skipped),
	})
	j.logg.Info(logCtx, "hpp snapshot run complete")

	var errs error
	for _, f := range res.Failed {
		errs = multierr.Append(errs, fmt.Errorf("recipe %s (%s): %s", f.RecipeID, f.Code, f.Error))
	}
	if len(res.Skipped) > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%d recipe(s) skipped", len(res.Skipped)))
	}
	return errs
}
