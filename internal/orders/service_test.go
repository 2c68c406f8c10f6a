package orders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
)

type stubOrdersRepo struct {
	order       *models.Order
	history     []models.OrderStatusHistory
	logs        []*models.DispenseLog
	createOrder func(ctx context.Context, order *models.Order) (*models.Order, error)
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createOrder != nil {
		return s.createOrder(ctx, order)
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.order = order
	return order, nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubOrdersRepo) FindOrderWithHistory(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, entry := range s.history {
		if entry.OrderID == orderID {
			order.StatusHistory = append(order.StatusHistory, entry)
		}
	}
	return order, nil
}

func (s *stubOrdersRepo) UpdateStatusGuarded(ctx context.Context, orderID uuid.UUID, expected []enums.OrderStatus, updates map[string]any) (bool, error) {
	if s.order == nil || s.order.ID != orderID {
		return false, nil
	}
	matched := false
	for _, status := range expected {
		if s.order.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	for key, value := range updates {
		switch key {
		case "status":
			if v, ok := value.(enums.OrderStatus); ok {
				s.order.Status = v
			}
		case "payment_method":
			if v, ok := value.(enums.PaymentMethod); ok {
				s.order.PaymentMethod = &v
			}
		case "payment_key":
			if v, ok := value.(string); ok {
				s.order.PaymentKey = &v
			}
		case "payment_approved_at":
			if v, ok := value.(time.Time); ok {
				s.order.PaymentApprovedAt = &v
			}
		case "dispense_started_at":
			if v, ok := value.(time.Time); ok {
				s.order.DispenseStartedAt = &v
			}
		case "dispensed_ml":
			if v, ok := value.(int); ok {
				s.order.DispensedML = &v
			}
		case "dispense_completed_at":
			if v, ok := value.(time.Time); ok {
				s.order.DispenseCompletedAt = &v
			}
		}
	}
	return true, nil
}

func (s *stubOrdersRepo) NextHistorySeq(ctx context.Context, orderID uuid.UUID) (int, error) {
	max := 0
	for _, entry := range s.history {
		if entry.OrderID == orderID && entry.Seq > max {
			max = entry.Seq
		}
	}
	return max + 1, nil
}

func (s *stubOrdersRepo) AppendHistory(ctx context.Context, entries []models.OrderStatusHistory) error {
	s.history = append(s.history, entries...)
	return nil
}

func (s *stubOrdersRepo) CreateDispenseLog(ctx context.Context, log *models.DispenseLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func (s *stubOrdersRepo) ListOrders(ctx context.Context, filters ListFilters) ([]models.Order, error) {
	if s.order == nil {
		return nil, nil
	}
	return []models.Order{*s.order}, nil
}

type stubCatalog struct {
	venue   *models.Venue
	mapping *models.VenueDispenser
	beer    *models.Beer
}

func (s *stubCatalog) FindVenue(ctx context.Context, venueID uuid.UUID) (*models.Venue, error) {
	if s.venue == nil || s.venue.ID != venueID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.venue, nil
}

func (s *stubCatalog) FindVenueDispenser(ctx context.Context, venueID uuid.UUID, dispenserID string) (*models.VenueDispenser, error) {
	if s.mapping == nil || s.mapping.VenueID != venueID || s.mapping.DispenserID != dispenserID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.mapping, nil
}

func (s *stubCatalog) FindBeer(ctx context.Context, beerID uuid.UUID) (*models.Beer, error) {
	if s.beer == nil || s.beer.ID != beerID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.beer, nil
}

type dispatchCall struct {
	dispenserID string
	orderID     uuid.UUID
}

type stubDispatcher struct {
	calls []dispatchCall
	err   error
}

func (s *stubDispatcher) Dispense(ctx context.Context, dispenserID string, orderID uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, dispatchCall{dispenserID: dispenserID, orderID: orderID})
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newTestService(t *testing.T, repo *stubOrdersRepo, catalog *stubCatalog, dispatcher *stubDispatcher) Service {
	t.Helper()
	svc, err := NewService(repo, catalog, stubTxRunner{}, dispatcher, nil)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func activeCatalog() (*stubCatalog, uuid.UUID, string) {
	venueID := uuid.New()
	beerID := uuid.New()
	dispenserID := "TAP_001"
	return &stubCatalog{
		venue: &models.Venue{ID: venueID, Name: "Test Taproom", IsActive: true},
		mapping: &models.VenueDispenser{
			VenueID:         venueID,
			DispenserID:     dispenserID,
			BeerID:          &beerID,
			DispenserNumber: 1,
			VolumeML:        330,
			Price:           6500,
			IsActive:        true,
		},
		beer: &models.Beer{ID: beerID, Name: "Citra IPA", IsActive: true},
	}, venueID, dispenserID
}

func TestCreateOrderSnapshotsCatalog(t *testing.T) {
	catalog, venueID, dispenserID := activeCatalog()
	repo := &stubOrdersRepo{}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	order, err := svc.Create(context.Background(), CreateInput{VenueID: venueID, DispenserID: dispenserID})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.BeerName != "Citra IPA" || order.VolumeML != 330 || order.Price != 6500 || order.DispenserNumber != 1 {
		t.Fatalf("unexpected snapshot %+v", order)
	}
	if len(repo.history) != 1 || repo.history[0].Seq != 1 || repo.history[0].Status != enums.OrderStatusPending {
		t.Fatalf("unexpected history %+v", repo.history)
	}
}

func TestCreateOrderInactiveVenue(t *testing.T) {
	catalog, venueID, dispenserID := activeCatalog()
	catalog.venue.IsActive = false
	svc := newTestService(t, &stubOrdersRepo{}, catalog, &stubDispatcher{})

	_, err := svc.Create(context.Background(), CreateInput{VenueID: venueID, DispenserID: dispenserID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCreateOrderUnassignedDispenser(t *testing.T) {
	catalog, venueID, dispenserID := activeCatalog()
	catalog.mapping.BeerID = nil
	svc := newTestService(t, &stubOrdersRepo{}, catalog, &stubDispatcher{})

	_, err := svc.Create(context.Background(), CreateInput{VenueID: venueID, DispenserID: dispenserID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPayMovesOrderToReady(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, Status: enums.OrderStatusPending},
		history: []models.OrderStatusHistory{
			{OrderID: orderID, Seq: 1, Status: enums.OrderStatusPending},
		},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	order, err := svc.Pay(context.Background(), PayInput{OrderID: orderID})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusReady {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.PaymentKey == nil || !strings.HasPrefix(*order.PaymentKey, "mock_") {
		t.Fatalf("unexpected payment key %v", order.PaymentKey)
	}
	if len(repo.history) != 3 {
		t.Fatalf("expected 3 history entries got %d", len(repo.history))
	}
	if repo.history[1].Seq != 2 || repo.history[1].Status != enums.OrderStatusPaid {
		t.Fatalf("unexpected paid entry %+v", repo.history[1])
	}
	if repo.history[2].Seq != 3 || repo.history[2].Status != enums.OrderStatusReady {
		t.Fatalf("unexpected ready entry %+v", repo.history[2])
	}
}

func TestPayRejectsNonPendingOrder(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, Status: enums.OrderStatusReady},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	_, err := svc.Pay(context.Background(), PayInput{OrderID: orderID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidState {
		t.Fatalf("unexpected error %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["current_status"] != enums.OrderStatusReady {
		t.Fatalf("unexpected details %+v", typed.Details())
	}
	if len(repo.history) != 0 {
		t.Fatalf("unexpected history writes %+v", repo.history)
	}
}

func TestStartDispensePublishesCommand(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, DispenserID: "TAP_001", Status: enums.OrderStatusReady},
	}
	dispatcher := &stubDispatcher{}
	svc := newTestService(t, repo, catalog, dispatcher)

	order, err := svc.StartDispense(context.Background(), orderID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusDispensing {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.DispenseStartedAt == nil {
		t.Fatal("expected dispense start time")
	}
	if len(dispatcher.calls) != 1 || dispatcher.calls[0].dispenserID != "TAP_001" || dispatcher.calls[0].orderID != orderID {
		t.Fatalf("unexpected dispatch calls %+v", dispatcher.calls)
	}
}

func TestStartDispensePublishFailure(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, DispenserID: "TAP_001", Status: enums.OrderStatusReady},
	}
	dispatcher := &stubDispatcher{err: errors.New("broker down")}
	svc := newTestService(t, repo, catalog, dispatcher)

	_, err := svc.StartDispense(context.Background(), orderID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error %v", err)
	}
	// The transition committed before the publish attempt.
	if repo.order.Status != enums.OrderStatusDispensing {
		t.Fatalf("unexpected status %s", repo.order.Status)
	}
}

func TestStartDispenseRejectsUnpaidOrder(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, DispenserID: "TAP_001", Status: enums.OrderStatusPending},
	}
	dispatcher := &stubDispatcher{}
	svc := newTestService(t, repo, catalog, dispatcher)

	_, err := svc.StartDispense(context.Background(), orderID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidState {
		t.Fatalf("unexpected error %v", err)
	}
	if len(dispatcher.calls) != 0 {
		t.Fatalf("unexpected dispatch calls %+v", dispatcher.calls)
	}
}

func TestDeviceEventCompleted(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	venueID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:          orderID,
			VenueID:     venueID,
			DispenserID: "TAP_001",
			VolumeML:    330,
			Status:      enums.OrderStatusDispensing,
		},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	dispensed := 327
	order, err := svc.ApplyDeviceEvent(context.Background(), &gorm.DB{}, DeviceEventInput{
		OrderID:     orderID,
		DispenserID: "TAP_001",
		Event:       enums.DeviceEventCompleted,
		DispensedML: &dispensed,
		ReportedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusCompleted {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.DispensedML == nil || *order.DispensedML != 327 {
		t.Fatalf("unexpected dispensed volume %v", order.DispensedML)
	}
	if len(repo.logs) != 1 || !repo.logs[0].Success {
		t.Fatalf("unexpected dispense logs %+v", repo.logs)
	}
	if repo.logs[0].TriggerType != enums.TriggerTypeOnlineOrder {
		t.Fatalf("unexpected trigger type %s", repo.logs[0].TriggerType)
	}
}

func TestDeviceEventErrorMarksFailed(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, DispenserID: "TAP_001", Status: enums.OrderStatusDispensing},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	errorCode := "FLOW_JAM"
	order, err := svc.ApplyDeviceEvent(context.Background(), &gorm.DB{}, DeviceEventInput{
		OrderID:     orderID,
		DispenserID: "TAP_001",
		Event:       enums.DeviceEventError,
		ErrorCode:   &errorCode,
		ReportedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusFailed {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if len(repo.logs) != 1 || repo.logs[0].Success {
		t.Fatalf("unexpected dispense logs %+v", repo.logs)
	}
	if repo.logs[0].ErrorCode == nil || *repo.logs[0].ErrorCode != errorCode {
		t.Fatalf("unexpected error code %v", repo.logs[0].ErrorCode)
	}
	if len(repo.history) != 1 || repo.history[0].Status != enums.OrderStatusFailed {
		t.Fatalf("unexpected history %+v", repo.history)
	}
}

func TestDeviceEventTerminalOrderRejected(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, DispenserID: "TAP_001", Status: enums.OrderStatusCompleted},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	_, err := svc.ApplyDeviceEvent(context.Background(), &gorm.DB{}, DeviceEventInput{
		OrderID:     orderID,
		DispenserID: "TAP_001",
		Event:       enums.DeviceEventCompleted,
		ReportedAt:  time.Now(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidState {
		t.Fatalf("unexpected error %v", err)
	}
	if len(repo.logs) != 0 {
		t.Fatalf("unexpected dispense logs %+v", repo.logs)
	}
}

func TestDeviceEventWrongDispenser(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, DispenserID: "TAP_001", Status: enums.OrderStatusDispensing},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	_, err := svc.ApplyDeviceEvent(context.Background(), &gorm.DB{}, DeviceEventInput{
		OrderID:     orderID,
		DispenserID: "TAP_002",
		Event:       enums.DeviceEventCompleted,
		ReportedAt:  time.Now(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDeviceEventDispensingAck(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, DispenserID: "TAP_001", Status: enums.OrderStatusDispensing},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	order, err := svc.ApplyDeviceEvent(context.Background(), &gorm.DB{}, DeviceEventInput{
		OrderID:     orderID,
		DispenserID: "TAP_001",
		Event:       enums.DeviceEventDispensing,
		ReportedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusDispensing {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if len(repo.history) != 0 || len(repo.logs) != 0 {
		t.Fatal("ack must not write history or logs")
	}
}

func TestRefundFromReady(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, Status: enums.OrderStatusReady},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	order, err := svc.Refund(context.Background(), orderID, "customer request")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusRefunded {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if len(repo.history) != 1 || repo.history[0].Message != "customer request" {
		t.Fatalf("unexpected history %+v", repo.history)
	}
}

func TestRefundRejectsPendingOrder(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, Status: enums.OrderStatusPending},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	_, err := svc.Refund(context.Background(), orderID, "")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidState {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestStatusProjectsHistoryInOrder(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:       orderID,
			BeerName: "Citra IPA",
			VolumeML: 330,
			Price:    6500,
			Status:   enums.OrderStatusReady,
		},
		history: []models.OrderStatusHistory{
			{OrderID: orderID, Seq: 1, Status: enums.OrderStatusPending},
			{OrderID: orderID, Seq: 2, Status: enums.OrderStatusPaid},
			{OrderID: orderID, Seq: 3, Status: enums.OrderStatusReady},
		},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	projection, err := svc.Status(context.Background(), orderID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if projection.Status != enums.OrderStatusReady || projection.BeerName != "Citra IPA" {
		t.Fatalf("unexpected projection %+v", projection)
	}
	if len(projection.History) != 3 {
		t.Fatalf("expected 3 history entries got %d", len(projection.History))
	}
	for i, entry := range projection.History {
		if entry.Seq != i+1 {
			t.Fatalf("history out of order %+v", projection.History)
		}
	}
}

func TestStatusUnknownOrder(t *testing.T) {
	catalog, _, _ := activeCatalog()
	svc := newTestService(t, &stubOrdersRepo{}, catalog, &stubDispatcher{})

	_, err := svc.Status(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGetLoadsOrderWithHistory(t *testing.T) {
	catalog, _, _ := activeCatalog()
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:       orderID,
			BeerName: "Citra IPA",
			Status:   enums.OrderStatusCompleted,
		},
		history: []models.OrderStatusHistory{
			{OrderID: orderID, Seq: 1, Status: enums.OrderStatusPending},
			{OrderID: orderID, Seq: 2, Status: enums.OrderStatusPaid},
		},
	}
	svc := newTestService(t, repo, catalog, &stubDispatcher{})

	order, err := svc.Get(context.Background(), orderID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusCompleted || order.BeerName != "Citra IPA" {
		t.Fatalf("unexpected order %+v", order)
	}
	if len(order.StatusHistory) != 2 {
		t.Fatalf("expected history preloaded, got %d entries", len(order.StatusHistory))
	}
}

func TestGetUnknownOrder(t *testing.T) {
	catalog, _, _ := activeCatalog()
	svc := newTestService(t, &stubOrdersRepo{}, catalog, &stubDispatcher{})

	_, err := svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error %v", err)
	}
}
