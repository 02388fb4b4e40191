package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/umkmkit/hpp-backend/internal/alerts"
	"github.com/umkmkit/hpp-backend/internal/costing"
	"github.com/umkmkit/hpp-backend/internal/hpp"
	"github.com/umkmkit/hpp-backend/internal/snapshots"
	"github.com/umkmkit/hpp-backend/internal/wac"
	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Code
}

type stubWAC struct {
	wac.Service
	recordFn func(ctx context.Context, in wac.RecordTransactionInput) (*models.Ingredient, error)
	history  func(ctx context.Context, id uuid.UUID, limit int) ([]models.StockTransaction, error)
}

func (s *stubWAC) RecordTransaction(ctx context.Context, in wac.RecordTransactionInput) (*models.Ingredient, error) {
	return s.recordFn(ctx, in)
}

func (s *stubWAC) History(ctx context.Context, id uuid.UUID, limit int) ([]models.StockTransaction, error) {
	return s.history(ctx, id, limit)
}

func TestRecordStockTransaction(t *testing.T) {
	ingredientID := uuid.New()
	wacValue := decimal.RequireFromString("150")
	var got wac.RecordTransactionInput
	svc := &stubWAC{recordFn: func(_ context.Context, in wac.RecordTransactionInput) (*models.Ingredient, error) {
		got = in
		return &models.Ingredient{ID: in.IngredientID, Name: "flour", CurrentStock: decimal.NewFromInt(20), WeightedAverageCost: &wacValue}, nil
	}}

	body := `{"quantity":"10","unit_price":"200","note":"  weekly order  "}`
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "ingredientID", ingredientID.String())
	resp := httptest.NewRecorder()
	RecordStockTransaction(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, ingredientID, got.IngredientID)
	require.True(t, got.Quantity.Equal(decimal.NewFromInt(10)))
	require.True(t, got.UnitPrice.Equal(decimal.NewFromInt(200)))
	require.Equal(t, "weekly order", *got.Note)

	var dto ingredientDTO
	decodeData(t, resp, &dto)
	require.True(t, dto.WeightedAverageCost.Equal(wacValue))
}

func TestRecordStockTransactionRejectsBadInput(t *testing.T) {
	svc := &stubWAC{recordFn: func(context.Context, wac.RecordTransactionInput) (*models.Ingredient, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	cases := map[string]struct {
		param string
		body  string
	}{
		"bad id":           {param: "nope", body: `{"quantity":"1","unit_price":"1"}`},
		"missing quantity": {param: uuid.NewString(), body: `{"unit_price":"1"}`},
		"unknown field":    {param: uuid.NewString(), body: `{"quantity":"1","price":"1"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)), "ingredientID", tc.param)
			resp := httptest.NewRecorder()
			RecordStockTransaction(svc, logger.Nop())(resp, req)
			require.Equal(t, http.StatusBadRequest, resp.Code)
			require.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, resp))
		})
	}
}

func TestRecordStockTransactionMapsConflict(t *testing.T) {
	svc := &stubWAC{recordFn: func(context.Context, wac.RecordTransactionInput) (*models.Ingredient, error) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "ingredient was updated concurrently; retry the transaction")
	}}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":"-2"}`)), "ingredientID", uuid.NewString())
	resp := httptest.NewRecorder()
	RecordStockTransaction(svc, logger.Nop())(resp, req)
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestListStockTransactionsPassesLimit(t *testing.T) {
	ingredientID := uuid.New()
	svc := &stubWAC{history: func(_ context.Context, id uuid.UUID, limit int) ([]models.StockTransaction, error) {
		require.Equal(t, ingredientID, id)
		require.Equal(t, 5, limit)
		return []models.StockTransaction{{ID: uuid.New(), IngredientID: id, TransactionType: enums.StockTransactionUsage, Quantity: decimal.NewFromInt(-3)}}, nil
	}}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/?limit=5", nil), "ingredientID", ingredientID.String())
	resp := httptest.NewRecorder()
	ListStockTransactions(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var rows []stockTransactionDTO
	decodeData(t, resp, &rows)
	require.Len(t, rows, 1)
	require.Equal(t, enums.StockTransactionUsage, rows[0].TransactionType)
}

type stubHPP struct {
	calculateFn func(ctx context.Context, id uuid.UUID, opts hpp.Options) (*hpp.Result, error)
	batchFn     func(ctx context.Context, ids []uuid.UUID) (*hpp.BatchResult, error)
}

func (s *stubHPP) Calculate(ctx context.Context, id uuid.UUID, opts hpp.Options) (*hpp.Result, error) {
	return s.calculateFn(ctx, id, opts)
}

func (s *stubHPP) RecalculateAll(ctx context.Context, ids []uuid.UUID) (*hpp.BatchResult, error) {
	return s.batchFn(ctx, ids)
}

func (s *stubHPP) OnIngredientCostChanged(context.Context, uuid.UUID) error { return nil }

func TestCalculateHPPDefaultsToPersist(t *testing.T) {
	recipeID := uuid.New()
	var got hpp.Options
	svc := &stubHPP{calculateFn: func(_ context.Context, id uuid.UUID, opts hpp.Options) (*hpp.Result, error) {
		got = opts
		return &hpp.Result{
			Result:    costing.Result{RecipeID: id, Servings: 5, CostPerUnit: decimal.NewFromInt(8100)},
			Persisted: opts.Persist,
			Alerts:    []models.HPPAlert{{ID: uuid.New(), AlertType: enums.HPPAlertIncrease, Severity: enums.AlertSeverityHigh}},
		}, nil
	}}

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "recipeID", recipeID.String())
	resp := httptest.NewRecorder()
	CalculateHPP(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.True(t, got.Persist)
	require.Nil(t, got.TargetMargin)

	var payload map[string]any
	decodeData(t, resp, &payload)
	require.Equal(t, "8100", payload["cost_per_unit"])
	require.Equal(t, true, payload["persisted"])
	alertsPayload := payload["alerts"].([]any)
	require.Len(t, alertsPayload, 1)
	require.Equal(t, "hpp_increase", alertsPayload[0].(map[string]any)["alert_type"])
}

func TestCalculateHPPWithMarginAndDryRun(t *testing.T) {
	var got hpp.Options
	svc := &stubHPP{calculateFn: func(_ context.Context, id uuid.UUID, opts hpp.Options) (*hpp.Result, error) {
		got = opts
		return &hpp.Result{Result: costing.Result{RecipeID: id}}, nil
	}}
	body := `{"target_margin":"0.4","persist":false}`
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "recipeID", uuid.NewString())
	resp := httptest.NewRecorder()
	CalculateHPP(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.False(t, got.Persist)
	require.True(t, got.TargetMargin.Equal(decimal.RequireFromString("0.4")))
}

func TestCalculateHPPNotFound(t *testing.T) {
	svc := &stubHPP{calculateFn: func(context.Context, uuid.UUID, hpp.Options) (*hpp.Result, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recipe not found")
	}}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "recipeID", uuid.NewString())
	resp := httptest.NewRecorder()
	CalculateHPP(svc, logger.Nop())(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCalculateHPPReturnsUnsavedResult(t *testing.T) {
	svc := &stubHPP{calculateFn: func(_ context.Context, id uuid.UUID, _ hpp.Options) (*hpp.Result, error) {
		res := &hpp.Result{
			Result: costing.Result{RecipeID: id, Servings: 5, CostPerUnit: decimal.NewFromInt(3700)},
			Alerts: []models.HPPAlert{},
		}
		return res, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection reset"), "save hpp snapshot")
	}}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "recipeID", uuid.NewString())
	resp := httptest.NewRecorder()
	CalculateHPP(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusServiceUnavailable, resp.Code, resp.Body.String())
	require.Equal(t, "5", resp.Header().Get("Retry-After"))
	require.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, resp))

	var payload map[string]any
	decodeData(t, resp, &payload)
	require.Equal(t, "3700", payload["cost_per_unit"])
	require.Equal(t, false, payload["persisted"])
}

func TestRecalculateHPP(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	svc := &stubHPP{batchFn: func(_ context.Context, got []uuid.UUID) (*hpp.BatchResult, error) {
		require.Equal(t, ids, got)
		return &hpp.BatchResult{
			Succeeded: []hpp.BatchItem{{RecipeID: ids[0]}},
			Failed:    []hpp.BatchFailure{{RecipeID: ids[1], Code: pkgerrors.CodeValidation, Error: "servings must be greater than zero"}},
			Skipped:   []uuid.UUID{},
		}, nil
	}}
	body, _ := json.Marshal(map[string]any{"recipe_ids": ids})
	resp := httptest.NewRecorder()
	RecalculateHPP(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body))))

	require.Equal(t, http.StatusOK, resp.Code)
	var out hpp.BatchResult
	decodeData(t, resp, &out)
	require.Len(t, out.Succeeded, 1)
	require.Len(t, out.Failed, 1)
	require.Equal(t, pkgerrors.CodeValidation, out.Failed[0].Code)
}

type stubSnapshots struct {
	snapshots.Service
	listFn    func(ctx context.Context, id uuid.UUID, r snapshots.Range) ([]models.HPPSnapshot, error)
	compareFn func(ctx context.Context, id uuid.UUID, a, b snapshots.Range) (*snapshots.TrendComparison, error)
}

func (s *stubSnapshots) List(ctx context.Context, id uuid.UUID, r snapshots.Range) ([]models.HPPSnapshot, error) {
	return s.listFn(ctx, id, r)
}

func (s *stubSnapshots) Compare(ctx context.Context, id uuid.UUID, a, b snapshots.Range) (*snapshots.TrendComparison, error) {
	return s.compareFn(ctx, id, a, b)
}

func TestListSnapshotsParsesRange(t *testing.T) {
	svc := &stubSnapshots{listFn: func(_ context.Context, _ uuid.UUID, r snapshots.Range) ([]models.HPPSnapshot, error) {
		require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), r.From)
		require.Equal(t, 31, r.To.Day())
		require.Equal(t, 23, r.To.Hour())
		return []models.HPPSnapshot{{ID: uuid.New(), HPPValue: decimal.NewFromInt(100)}}, nil
	}}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/?from=2026-01-01&to=2026-01-31", nil), "recipeID", uuid.NewString())
	resp := httptest.NewRecorder()
	ListSnapshots(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var rows []snapshotDTO
	decodeData(t, resp, &rows)
	require.Len(t, rows, 1)
	require.True(t, rows[0].HPPValue.Equal(decimal.NewFromInt(100)))
}

func TestCompareTrend(t *testing.T) {
	svc := &stubSnapshots{compareFn: func(_ context.Context, _ uuid.UUID, a, b snapshots.Range) (*snapshots.TrendComparison, error) {
		require.True(t, a.From.Before(b.From))
		return &snapshots.TrendComparison{Trend: enums.TrendUp, PercentageChange: decimal.NewFromInt(15)}, nil
	}}
	url := "/?a_from=2026-01-01&a_to=2026-01-31&b_from=2026-02-01&b_to=2026-02-28"
	req := withURLParam(httptest.NewRequest(http.MethodGet, url, nil), "recipeID", uuid.NewString())
	resp := httptest.NewRecorder()
	CompareTrend(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var payload map[string]any
	decodeData(t, resp, &payload)
	require.Equal(t, string(enums.TrendUp), payload["trend"])

	bad := withURLParam(httptest.NewRequest(http.MethodGet, "/?a_from=yesterday", nil), "recipeID", uuid.NewString())
	resp = httptest.NewRecorder()
	CompareTrend(svc, logger.Nop())(resp, bad)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

type stubAlerts struct {
	alerts.Service
	listFn func(ctx context.Context, p alerts.ListParams) (*alerts.ListResult, error)
	ackFn  func(ctx context.Context, id uuid.UUID, in alerts.AcknowledgeInput) (*models.HPPAlert, error)
}

func (s *stubAlerts) List(ctx context.Context, p alerts.ListParams) (*alerts.ListResult, error) {
	return s.listFn(ctx, p)
}

func (s *stubAlerts) Acknowledge(ctx context.Context, id uuid.UUID, in alerts.AcknowledgeInput) (*models.HPPAlert, error) {
	return s.ackFn(ctx, id, in)
}

func TestListAlertsForwardsFilters(t *testing.T) {
	recipeID := uuid.New()
	svc := &stubAlerts{listFn: func(_ context.Context, p alerts.ListParams) (*alerts.ListResult, error) {
		require.Equal(t, recipeID, *p.RecipeID)
		require.True(t, p.UnacknowledgedOnly)
		require.Equal(t, 2, p.Limit)
		require.Equal(t, "abc", p.Cursor)
		return &alerts.ListResult{Items: []models.HPPAlert{{ID: uuid.New(), RecipeID: recipeID}}, Cursor: "next"}, nil
	}}
	req := httptest.NewRequest(http.MethodGet, "/?recipe_id="+recipeID.String()+"&unacknowledged=true&limit=2&cursor=abc", nil)
	resp := httptest.NewRecorder()
	ListAlerts(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var page struct {
		Data   []alertDTO `json:"data"`
		Cursor string     `json:"cursor"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	require.Equal(t, "next", page.Cursor)
}

func TestAcknowledgeAlert(t *testing.T) {
	alertID := uuid.New()
	cases := []struct {
		name string
		body string
		want alerts.AcknowledgeInput
	}{
		{name: "empty body marks read", body: "", want: alerts.AcknowledgeInput{Read: true}},
		{name: "dismiss", body: `{"dismiss":true}`, want: alerts.AcknowledgeInput{Read: true, Dismiss: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAlerts{ackFn: func(_ context.Context, id uuid.UUID, in alerts.AcknowledgeInput) (*models.HPPAlert, error) {
				require.Equal(t, alertID, id)
				require.Equal(t, tc.want, in)
				return &models.HPPAlert{ID: id, IsRead: true, IsDismissed: in.Dismiss}, nil
			}}
			req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)), "alertID", alertID.String())
			resp := httptest.NewRecorder()
			AcknowledgeAlert(svc, logger.Nop())(resp, req)
			require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		})
	}
}

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	resp := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), ok, nil)(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "test", resp.Header().Get(envHeader))

	resp = httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), ok, down)(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
