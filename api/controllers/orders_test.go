package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oskim/tapflow-backend/internal/orders"
	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/types"
)

type stubOrderService struct {
	order      *models.Order
	projection *orders.StatusProjection
	err        error
	created    orders.CreateInput
}

func (s *stubOrderService) Create(ctx context.Context, input orders.CreateInput) (*models.Order, error) {
	s.created = input
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) Pay(ctx context.Context, input orders.PayInput) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) StartDispense(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) Status(ctx context.Context, orderID uuid.UUID) (*orders.StatusProjection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.projection, nil
}

func orderRouter(svc orderService) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/v1/orders", CreateOrder(svc, nil))
	r.Post("/api/v1/orders/{orderId}/pay", PayOrder(svc, nil))
	r.Get("/api/v1/orders/{orderId}", GetOrder(svc, nil))
	r.Get("/api/v1/orders/{orderId}/status", OrderStatus(svc, nil))
	return r
}

func TestCreateOrderDecodesRequest(t *testing.T) {
	venueID := uuid.New()
	svc := &stubOrderService{
		order: &models.Order{ID: uuid.New(), VenueID: venueID, Status: enums.OrderStatusPending},
	}
	router := orderRouter(svc)

	body, err := json.Marshal(map[string]any{
		"venue_id":     venueID,
		"dispenser_id": "TAP_001",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, venueID, svc.created.VenueID)
	require.Equal(t, "TAP_001", svc.created.DispenserID)
}

func TestCreateOrderRejectsMissingDispenser(t *testing.T) {
	router := orderRouter(&stubOrderService{})

	body := []byte(`{"venue_id":"` + uuid.NewString() + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderStatusProjection(t *testing.T) {
	orderID := uuid.New()
	now := time.Now().UTC()
	svc := &stubOrderService{
		projection: &orders.StatusProjection{
			OrderID:         orderID,
			Status:          enums.OrderStatusReady,
			BeerName:        "Citra IPA",
			VolumeML:        330,
			Price:           6500,
			DispenserNumber: 1,
			History: []orders.HistoryEntry{
				{Seq: 1, Status: enums.OrderStatusPending, CreatedAt: now},
				{Seq: 2, Status: enums.OrderStatusPaid, CreatedAt: now},
				{Seq: 3, Status: enums.OrderStatusReady, CreatedAt: now},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	router := orderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String()+"/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ready", data["status"])
	require.Equal(t, "Citra IPA", data["beer_name"])

	history, ok := data["status_history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 3)
	last, ok := history[2].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ready", last["status"])
}

func TestGetOrderReturnsFullRecord(t *testing.T) {
	orderID := uuid.New()
	dispensed := 480
	svc := &stubOrderService{
		order: &models.Order{
			ID:          orderID,
			Status:      enums.OrderStatusCompleted,
			BeerName:    "Citra IPA",
			VolumeML:    500,
			Price:       7000,
			DispensedML: &dispensed,
		},
	}
	router := orderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, orderID.String(), data["ID"])
	require.Equal(t, "completed", data["Status"])
	require.Equal(t, "Citra IPA", data["BeerName"])
	require.Equal(t, float64(480), data["DispensedML"])
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubOrderService{
		err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found"),
	}
	router := orderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderStatusInvalidID(t *testing.T) {
	router := orderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayOrderSurfacesInvalidState(t *testing.T) {
	svc := &stubOrderService{
		err: pkgerrors.New(pkgerrors.CodeInvalidState, "payment not allowed from status completed").
			WithDetails(map[string]any{"current_status": "completed"}),
	}
	router := orderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/pay", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "INVALID_STATE", envelope.Error.Code)
	details, ok := envelope.Error.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "completed", details["current_status"])
}
