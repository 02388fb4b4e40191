package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	"github.com/umkmkit/hpp-backend/pkg/metrics"
	"github.com/umkmkit/hpp-backend/pkg/pagination"
)

// Service evaluates, lists and acknowledges HPP alerts.
type Service interface {
	// Evaluate raises the de-duplicated alerts for a new snapshot. On a
	// storage failure the alerts that were written are returned with the
	// error.
	Evaluate(ctx context.Context, in EvaluateInput) ([]models.HPPAlert, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Acknowledge(ctx context.Context, alertID uuid.UUID, input AcknowledgeInput) (*models.HPPAlert, error)
}

// ListParams configures pagination and filters for alerts.
type ListParams struct {
	RecipeID           *uuid.UUID
	UnacknowledgedOnly bool
	Limit              int
	Cursor             string
}

// ListResult wraps returned alerts and the cursor for the next page.
type ListResult struct {
	Items  []models.HPPAlert `json:"items"`
	Cursor string            `json:"cursor"`
}

// AcknowledgeInput selects the acknowledgement to apply. Dismissing also
// marks the alert read.
type AcknowledgeInput struct {
	Read    bool
	Dismiss bool
}

type service struct {
	repo       Repository
	thresholds Thresholds
	dedup      time.Duration
	logg       *logger.Logger
	metrics    *metrics.HPPMetrics
	now        func() time.Time
}

// NewService wires alert dependencies.
func NewService(repo Repository, cfg config.HPPConfig, logg *logger.Logger, m *metrics.HPPMetrics) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alerts repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:       repo,
		thresholds: ThresholdsFromConfig(cfg),
		dedup:      cfg.AlertDedupWindow,
		logg:       logg,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Evaluate(ctx context.Context, in EvaluateInput) ([]models.HPPAlert, error) {
	if in.Current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot required")
	}
	candidates := s.thresholds.Evaluate(in)
	if len(candidates) == 0 {
		return nil, nil
	}

	now := s.now()
	var since *time.Time
	if s.dedup > 0 {
		cutoff := now.Add(-s.dedup)
		since = &cutoff
	}

	var (
		raised []models.HPPAlert
		errs   error
	)
	for i := range candidates {
		alert := candidates[i]
		alert.CreatedAt = now
		created, err := s.repo.CreateIfNoneOpen(ctx, &alert, since)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !created {
			s.logg.Debug(s.logg.WithField(ctx, "alert_type", string(alert.AlertType)), "open alert already exists; skipping")
			continue
		}
		s.metrics.IncAlert(string(alert.AlertType), string(alert.Severity))
		raised = append(raised, alert)
	}
	if errs != nil {
		return raised, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "persist hpp alerts")
	}
	return raised, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RecipeID != nil && *params.RecipeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid recipe id")
	}

	query := listAlertsParams{
		RecipeID:           params.RecipeID,
		Limit:              params.Limit,
		UnacknowledgedOnly: params.UnacknowledgedOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	if rows == nil {
		rows = []models.HPPAlert{}
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Acknowledge(ctx context.Context, alertID uuid.UUID, input AcknowledgeInput) (*models.HPPAlert, error) {
	if alertID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}
	if !input.Read && !input.Dismiss {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "read or dismiss required")
	}

	if _, err := s.find(ctx, alertID); err != nil {
		return nil, err
	}
	if err := s.repo.Acknowledge(ctx, alertID, input.Read, input.Dismiss, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acknowledge alert")
	}
	return s.find(ctx, alertID)
}

func (s *service) find(ctx context.Context, alertID uuid.UUID) (*models.HPPAlert, error) {
	alert, err := s.repo.FindByID(ctx, alertID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load alert")
	}
	return alert, nil
}
