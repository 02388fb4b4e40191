package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/umkmkit/hpp-backend/pkg/logger"
)

type snapshotPurger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

type SnapshotRetentionJobParams struct {
	Logger    *logger.Logger
	Snapshots snapshotPurger
}

func NewSnapshotRetentionJob(params SnapshotRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Snapshots == nil {
		return nil, fmt.Errorf("snapshot service required")
	}
	return &snapshotRetentionJob{
		logg:      params.Logger,
		snapshots: params.Snapshots,
		now:       time.Now,
	}, nil
}

type snapshotRetentionJob struct {
	logg      *logger.Logger
	snapshots snapshotPurger
	now       func() time.Time
}

func (j *snapshotRetentionJob) Name() string { return "snapshot-retention" }

func (j *snapshotRetentionJob) Run(ctx context.Context) error {
	deleted, err := j.snapshots.Purge(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("snapshot retention: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "snapshot retention complete")
	return nil
}
