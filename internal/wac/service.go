package wac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	"github.com/umkmkit/hpp-backend/pkg/metrics"
)

const maxHistoryLimit = 1000

var errStaleVersion = errors.New("ingredient version changed")

// Service maintains each ingredient's weighted average cost.
type Service interface {
	RecordPurchase(ctx context.Context, ingredientID uuid.UUID, quantity, unitPrice decimal.Decimal) (*models.Ingredient, error)
	RecordUsage(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) (*models.Ingredient, error)
	RecordTransaction(ctx context.Context, input RecordTransactionInput) (*models.Ingredient, error)
	History(ctx context.Context, ingredientID uuid.UUID, limit int) ([]models.StockTransaction, error)
	Reconcile(ctx context.Context, ingredientID uuid.UUID) (*Reconciliation, error)
}

// CostChangeListener is told when a purchase moved an ingredient's weighted
// average cost.
type CostChangeListener interface {
	OnIngredientCostChanged(ctx context.Context, ingredientID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RecordTransactionInput carries a signed stock movement: positive quantities
// are purchases and require a unit price, negative quantities are usage.
type RecordTransactionInput struct {
	IngredientID uuid.UUID
	Quantity     decimal.Decimal
	UnitPrice    *decimal.Decimal
	Note         *string
}

// Reconciliation compares the stored position with the one implied by
// replaying the full ledger.
type Reconciliation struct {
	IngredientID  uuid.UUID        `json:"ingredient_id"`
	Transactions  int              `json:"transactions"`
	StoredStock   decimal.Decimal  `json:"stored_stock"`
	StoredWAC     *decimal.Decimal `json:"stored_wac"`
	ReplayedStock decimal.Decimal  `json:"replayed_stock"`
	ReplayedWAC   *decimal.Decimal `json:"replayed_wac"`
	Consistent    bool             `json:"consistent"`
}

// ServiceParams wires the ledger service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Locker   Locker
	Logger   *logger.Logger
	Metrics  *metrics.HPPMetrics
	Config   config.HPPConfig
	Listener CostChangeListener
}

type service struct {
	repo     Repository
	tx       txRunner
	locker   Locker
	logg     *logger.Logger
	metrics  *metrics.HPPMetrics
	cfg      config.HPPConfig
	listener CostChangeListener
}

// NewService wires a WAC ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wac repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	locker := params.Locker
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		locker:   locker,
		logg:     params.Logger,
		metrics:  params.Metrics,
		cfg:      params.Config,
		listener: params.Listener,
	}, nil
}

func (s *service) RecordTransaction(ctx context.Context, input RecordTransactionInput) (*models.Ingredient, error) {
	switch {
	case input.Quantity.IsPositive():
		if input.UnitPrice == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price is required for purchases")
		}
		return s.record(ctx, input.IngredientID, enums.StockTransactionPurchase, input.Quantity, *input.UnitPrice, input.Note)
	case input.Quantity.IsNegative():
		return s.record(ctx, input.IngredientID, enums.StockTransactionUsage, input.Quantity.Abs(), decimal.Zero, input.Note)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be zero")
	}
}

func (s *service) RecordPurchase(ctx context.Context, ingredientID uuid.UUID, quantity, unitPrice decimal.Decimal) (*models.Ingredient, error) {
	return s.record(ctx, ingredientID, enums.StockTransactionPurchase, quantity, unitPrice, nil)
}

func (s *service) RecordUsage(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) (*models.Ingredient, error) {
	return s.record(ctx, ingredientID, enums.StockTransactionUsage, quantity, decimal.Zero, nil)
}

func (s *service) record(ctx context.Context, ingredientID uuid.UUID, txType enums.StockTransactionType, quantity, unitPrice decimal.Decimal, note *string) (*models.Ingredient, error) {
	if ingredientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient id is required")
	}
	if !quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if txType == enums.StockTransactionPurchase && unitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	ctx = s.logg.WithIngredientID(ctx, ingredientID.String())
	ingredient, costChanged, err := s.recordLocked(ctx, ingredientID, txType, quantity, unitPrice, note)
	if err != nil {
		return nil, err
	}
	// listeners run after the ingredient lock is released
	if costChanged {
		s.notify(ctx, ingredientID)
	}
	return ingredient, nil
}

// recordLocked applies one movement while holding the ingredient lock.
func (s *service) recordLocked(ctx context.Context, ingredientID uuid.UUID, txType enums.StockTransactionType, quantity, unitPrice decimal.Decimal, note *string) (*models.Ingredient, bool, error) {
	unlock, err := s.locker.Lock(ctx, ingredientID.String())
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire ingredient lock")
	}
	defer unlock()

	attempts := s.cfg.WACMaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		ingredient, costChanged, err := s.apply(ctx, ingredientID, txType, quantity, unitPrice, note)
		if errors.Is(err, errStaleVersion) {
			s.metrics.IncWACConflict()
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt+1), "stale ingredient version; retrying ledger write")
			continue
		}
		if err != nil {
			return nil, false, err
		}
		s.metrics.IncStockTransaction(string(txType))
		return ingredient, costChanged, nil
	}
	return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "ingredient was updated concurrently; retry the transaction")
}

func (s *service) apply(ctx context.Context, ingredientID uuid.UUID, txType enums.StockTransactionType, quantity, unitPrice decimal.Decimal, note *string) (*models.Ingredient, bool, error) {
	var (
		updated     *models.Ingredient
		costChanged bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ingredient, err := repo.FindIngredient(ctx, ingredientID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ingredient not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ingredient")
		}

		entry := &models.StockTransaction{
			IngredientID:    ingredient.ID,
			TransactionType: txType,
			StockBefore:     ingredient.CurrentStock,
			WACBefore:       ingredient.WeightedAverageCost,
			Note:            note,
		}

		switch txType {
		case enums.StockTransactionPurchase:
			current, _ := ingredient.UnitCost()
			stock, wac := ApplyPurchase(ingredient.CurrentStock, current, quantity, unitPrice)
			costChanged = ingredient.WeightedAverageCost == nil || !ingredient.WeightedAverageCost.Equal(wac)
			price := unitPrice
			ingredient.CurrentStock = stock
			ingredient.WeightedAverageCost = &wac
			ingredient.PricePerUnit = unitPrice
			entry.Quantity = quantity
			entry.UnitPrice = &price
		case enums.StockTransactionUsage:
			ingredient.CurrentStock = ApplyUsage(ingredient.CurrentStock, quantity)
			entry.Quantity = quantity.Neg()
		}
		entry.StockAfter = ingredient.CurrentStock
		entry.WACAfter = ingredient.WeightedAverageCost

		ok, err := repo.UpdatePosition(ctx, ingredient, ingredient.Version)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ingredient position")
		}
		if !ok {
			return errStaleVersion
		}
		if err := repo.CreateTransaction(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock transaction")
		}
		updated = ingredient
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return updated, costChanged, nil
}

func (s *service) notify(ctx context.Context, ingredientID uuid.UUID) {
	if s.listener == nil {
		return
	}
	if err := s.listener.OnIngredientCostChanged(ctx, ingredientID); err != nil {
		s.logg.Error(ctx, "recalculate recipes after cost change", err)
	}
}

func (s *service) History(ctx context.Context, ingredientID uuid.UUID, limit int) ([]models.StockTransaction, error) {
	if ingredientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient id is required")
	}
	if limit <= 0 {
		limit = s.cfg.WACLookback
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	txs, err := s.repo.ListTransactions(ctx, ingredientID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock transactions")
	}
	return txs, nil
}

func (s *service) Reconcile(ctx context.Context, ingredientID uuid.UUID) (*Reconciliation, error) {
	if ingredientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient id is required")
	}
	ingredient, err := s.repo.FindIngredient(ctx, ingredientID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ingredient not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ingredient")
	}
	txs, err := s.repo.ListAllTransactions(ctx, ingredientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock transactions")
	}

	stock, wac := Replay(txs)
	result := &Reconciliation{
		IngredientID:  ingredientID,
		Transactions:  len(txs),
		StoredStock:   ingredient.CurrentStock,
		StoredWAC:     ingredient.WeightedAverageCost,
		ReplayedStock: stock,
		ReplayedWAC:   wac,
	}
	result.Consistent = stock.Equal(ingredient.CurrentStock) && equalOptional(wac, ingredient.WeightedAverageCost)
	if !result.Consistent {
		s.logg.Warn(s.logg.WithIngredientID(ctx, ingredientID.String()), "stored ingredient position differs from ledger replay")
	}
	return result, nil
}

func equalOptional(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
