package snapshots

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	pkgredis "github.com/umkmkit/hpp-backend/pkg/redis"
)

const latestCacheTTL = time.Hour

// Cache is the read cache for each recipe's newest snapshot.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	LatestSnapshotKey(recipeID string) string
}

// Service stores snapshots and answers history and trend queries.
type Service interface {
	Save(ctx context.Context, snapshot *models.HPPSnapshot) error
	Latest(ctx context.Context, recipeID uuid.UUID) (*models.HPPSnapshot, error)
	List(ctx context.Context, recipeID uuid.UUID, r Range) ([]models.HPPSnapshot, error)
	Compare(ctx context.Context, recipeID uuid.UUID, a, b Range) (*TrendComparison, error)
	Purge(ctx context.Context, now time.Time) (int64, error)
}

type service struct {
	repo  Repository
	cache Cache
	cfg   config.HPPConfig
	logg  *logger.Logger
}

// NewService wires the snapshot store. cache may be nil.
func NewService(repo Repository, cache Cache, cfg config.HPPConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "snapshot repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, cache: cache, cfg: cfg, logg: logg}, nil
}

func (s *service) Save(ctx context.Context, snapshot *models.HPPSnapshot) error {
	if snapshot == nil || snapshot.RecipeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshot recipe id required")
	}
	if snapshot.ID != uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshots are immutable and cannot be saved twice")
	}
	if snapshot.SnapshotDate.IsZero() {
		snapshot.SnapshotDate = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, snapshot); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save hpp snapshot")
	}
	s.cacheLatest(ctx, snapshot)
	return nil
}

func (s *service) Latest(ctx context.Context, recipeID uuid.UUID) (*models.HPPSnapshot, error) {
	if recipeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipe id required")
	}
	if cached := s.cachedLatest(ctx, recipeID); cached != nil {
		return cached, nil
	}
	snapshot, err := s.repo.Latest(ctx, recipeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest snapshot")
	}
	if snapshot != nil {
		s.cacheLatest(ctx, snapshot)
	}
	return snapshot, nil
}

func (s *service) List(ctx context.Context, recipeID uuid.UUID, r Range) ([]models.HPPSnapshot, error) {
	if recipeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipe id required")
	}
	if err := validateRange(r); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, recipeID, r.From, r.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list snapshots")
	}
	return rows, nil
}

func (s *service) Compare(ctx context.Context, recipeID uuid.UUID, a, b Range) (*TrendComparison, error) {
	if recipeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipe id required")
	}
	for _, r := range []Range{a, b} {
		if r.From.IsZero() || r.To.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "both comparison periods need a start and an end")
		}
		if err := validateRange(r); err != nil {
			return nil, err
		}
	}

	rowsA, err := s.repo.List(ctx, recipeID, a.From, a.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list baseline snapshots")
	}
	rowsB, err := s.repo.List(ctx, recipeID, b.From, b.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list comparison snapshots")
	}
	out := Compare(Stats(a, rowsA), Stats(b, rowsB), decimal.NewFromFloat(s.cfg.TrendDeadBand))
	return &out, nil
}

func (s *service) Purge(ctx context.Context, now time.Time) (int64, error) {
	if s.cfg.SnapshotRetention <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-s.cfg.SnapshotRetentionWindow())
	recipeIDs, deleted, err := s.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge snapshots")
	}
	s.evictLatest(ctx, recipeIDs)
	return deleted, nil
}

func validateRange(r Range) error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return pkgerrors.New(pkgerrors.CodeValidation, "range end must not be before its start")
	}
	return nil
}

func (s *service) cachedLatest(ctx context.Context, recipeID uuid.UUID) *models.HPPSnapshot {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cache.LatestSnapshotKey(recipeID.String()))
	if err != nil {
		if !pkgredis.IsNil(err) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "snapshot cache read failed")
		}
		return nil
	}
	var snapshot models.HPPSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil
	}
	return &snapshot
}

// evictLatest drops cached latest snapshots so the next read reloads from
// the database.
func (s *service) evictLatest(ctx context.Context, recipeIDs []uuid.UUID) {
	if s.cache == nil || len(recipeIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(recipeIDs))
	for _, id := range recipeIDs {
		keys = append(keys, s.cache.LatestSnapshotKey(id.String()))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "snapshot cache eviction failed")
	}
}

func (s *service) cacheLatest(ctx context.Context, snapshot *models.HPPSnapshot) {
	if s.cache == nil {
		return
	}
	key := s.cache.LatestSnapshotKey(snapshot.RecipeID.String())
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, latestCacheTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "snapshot cache write failed")
		_ = s.cache.Del(ctx, key)
	}
}
