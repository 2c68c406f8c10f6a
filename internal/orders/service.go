package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the order lifecycle. Every transition runs inside a DB
// transaction and is guarded on the expected current status, so concurrent
// callers racing from the same stale state cannot both win.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Pay(ctx context.Context, input PayInput) (*models.Order, error)
	StartDispense(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyDeviceEvent(ctx context.Context, tx *gorm.DB, input DeviceEventInput) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Status(ctx context.Context, orderID uuid.UUID) (*StatusProjection, error)
	List(ctx context.Context, filters ListFilters) ([]models.Order, error)
}

type service struct {
	repo       Repository
	catalog    CatalogReader
	tx         txRunner
	dispatcher CommandDispatcher
	pours      *metrics.PourMetrics
}

// NewService builds the order engine with its dependencies.
func NewService(repo Repository, catalog CatalogReader, tx txRunner, dispatcher CommandDispatcher, pours *metrics.PourMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("command dispatcher required")
	}
	return &service{
		repo:       repo,
		catalog:    catalog,
		tx:         tx,
		dispatcher: dispatcher,
		pours:      pours,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.VenueID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "venue id required")
	}
	if input.DispenserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispenser id required")
	}

	venue, err := s.catalog.FindVenue(ctx, input.VenueID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue")
	}
	if !venue.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
	}

	mapping, err := s.catalog.FindVenueDispenser(ctx, input.VenueID, input.DispenserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispenser not available at venue")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue dispenser")
	}
	if !mapping.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispenser not available at venue")
	}
	if mapping.BeerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no beer assigned to dispenser")
	}

	beer, err := s.catalog.FindBeer(ctx, *mapping.BeerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "beer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load beer")
	}
	if !beer.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "beer is not available")
	}

	order := &models.Order{
		ID:              uuid.New(),
		VenueID:         input.VenueID,
		DispenserID:     input.DispenserID,
		BeerID:          beer.ID,
		CustomerID:      input.CustomerID,
		BeerName:        beer.Name,
		VolumeML:        mapping.VolumeML,
		Price:           mapping.Price,
		DispenserNumber: mapping.DispenserNumber,
		Status:          enums.OrderStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return appendTransitions(ctx, repo, order.ID, transition{status: enums.OrderStatusPending, message: "order created"})
	})
	if err != nil {
		return nil, err
	}

	s.pours.IncOrderCreated(order.VenueID.String())
	return order, nil
}

func (s *service) Pay(ctx context.Context, input PayInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.PaymentMethod != nil && !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	now := time.Now()
	paymentKey := fmt.Sprintf("mock_%s_%d", input.OrderID, now.Unix())
	if input.PaymentKey != nil && *input.PaymentKey != "" {
		paymentKey = *input.PaymentKey
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		updates := map[string]any{
			"status":              enums.OrderStatusReady,
			"payment_key":         paymentKey,
			"payment_approved_at": now,
		}
		if input.PaymentMethod != nil {
			updates["payment_method"] = *input.PaymentMethod
		}

		updated, err := repo.UpdateStatusGuarded(ctx, input.OrderID, []enums.OrderStatus{enums.OrderStatusPending}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !updated {
			return invalidTransition(loaded.Status, "payment")
		}

		// One atomic write, two audit entries: paid then ready.
		if err := appendTransitions(ctx, repo, input.OrderID,
			transition{status: enums.OrderStatusPaid, message: "payment approved"},
			transition{status: enums.OrderStatusReady, message: "ready to dispense"},
		); err != nil {
			return err
		}

		loaded.Status = enums.OrderStatusReady
		loaded.PaymentKey = &paymentKey
		loaded.PaymentApprovedAt = &now
		loaded.PaymentMethod = input.PaymentMethod
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) StartDispense(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	now := time.Now()
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		updated, err := repo.UpdateStatusGuarded(ctx, orderID, []enums.OrderStatus{enums.OrderStatusReady}, map[string]any{
			"status":              enums.OrderStatusDispensing,
			"dispense_started_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !updated {
			return invalidTransition(loaded.Status, "dispense")
		}

		if err := appendTransitions(ctx, repo, orderID,
			transition{status: enums.OrderStatusDispensing, message: "dispense command sent"},
		); err != nil {
			return err
		}

		loaded.Status = enums.OrderStatusDispensing
		loaded.DispenseStartedAt = &now
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The state write is already committed; a publish failure leaves the
	// order in dispensing until the device or an operator resolves it.
	if err := s.dispatcher.Dispense(ctx, order.DispenserID, order.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish dispense command")
	}
	return order, nil
}

func (s *service) ApplyDeviceEvent(ctx context.Context, tx *gorm.DB, input DeviceEventInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for device event")
	}
	repo := s.repo.WithTx(tx)

	order, err := repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.DispenserID != input.DispenserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another dispenser")
	}

	switch input.Event {
	case enums.DeviceEventDispensing:
		// Acknowledgment only; dispense-start already set the status.
		return order, nil
	case enums.DeviceEventCompleted:
		return s.applyCompleted(ctx, repo, order, input)
	case enums.DeviceEventError:
		return s.applyError(ctx, repo, order, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown device event")
	}
}

func (s *service) applyCompleted(ctx context.Context, repo Repository, order *models.Order, input DeviceEventInput) (*models.Order, error) {
	dispensed := order.VolumeML
	if input.DispensedML != nil {
		dispensed = *input.DispensedML
	}

	updated, err := repo.UpdateStatusGuarded(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusDispensing}, map[string]any{
		"status":                enums.OrderStatusCompleted,
		"dispensed_ml":          dispensed,
		"dispense_completed_at": input.ReportedAt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !updated {
		return nil, invalidTransition(order.Status, "completion report")
	}

	if err := appendTransitions(ctx, repo, order.ID,
		transition{status: enums.OrderStatusCompleted, message: "pour completed"},
	); err != nil {
		return nil, err
	}

	if err := repo.CreateDispenseLog(ctx, buildDispenseLog(order, input, true)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write dispense log")
	}

	order.Status = enums.OrderStatusCompleted
	order.DispensedML = &dispensed
	order.DispenseCompletedAt = &input.ReportedAt
	return order, nil
}

func (s *service) applyError(ctx context.Context, repo Repository, order *models.Order, input DeviceEventInput) (*models.Order, error) {
	message := "pour failed"
	if input.ErrorCode != nil {
		message = fmt.Sprintf("pour failed: %s", *input.ErrorCode)
	}

	updated, err := repo.UpdateStatusGuarded(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusDispensing}, map[string]any{
		"status": enums.OrderStatusFailed,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !updated {
		return nil, invalidTransition(order.Status, "error report")
	}

	if err := appendTransitions(ctx, repo, order.ID,
		transition{status: enums.OrderStatusFailed, message: message},
	); err != nil {
		return nil, err
	}

	if err := repo.CreateDispenseLog(ctx, buildDispenseLog(order, input, false)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write dispense log")
	}

	order.Status = enums.OrderStatusFailed
	return order, nil
}

func (s *service) Refund(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if reason == "" {
		reason = "refunded by operator"
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		expected := []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusReady, enums.OrderStatusDispensing}
		updated, err := repo.UpdateStatusGuarded(ctx, orderID, expected, map[string]any{
			"status": enums.OrderStatusRefunded,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !updated {
			return invalidTransition(loaded.Status, "refund")
		}

		if err := appendTransitions(ctx, repo, orderID,
			transition{status: enums.OrderStatusRefunded, message: reason},
		); err != nil {
			return err
		}

		loaded.Status = enums.OrderStatusRefunded
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrderWithHistory(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) Status(ctx context.Context, orderID uuid.UUID) (*StatusProjection, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrderWithHistory(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	history := make([]HistoryEntry, 0, len(order.StatusHistory))
	for _, entry := range order.StatusHistory {
		history = append(history, HistoryEntry{
			Seq:       entry.Seq,
			Status:    entry.Status,
			Message:   entry.Message,
			CreatedAt: entry.CreatedAt,
		})
	}

	return &StatusProjection{
		OrderID:         order.ID,
		Status:          order.Status,
		BeerName:        order.BeerName,
		VolumeML:        order.VolumeML,
		Price:           order.Price,
		DispenserNumber: order.DispenserNumber,
		DispensedML:     order.DispensedML,
		History:         history,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters) ([]models.Order, error) {
	rows, err := s.repo.ListOrders(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

type transition struct {
	status  enums.OrderStatus
	message string
}

func appendTransitions(ctx context.Context, repo Repository, orderID uuid.UUID, transitions ...transition) error {
	seq, err := repo.NextHistorySeq(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate history seq")
	}

	entries := make([]models.OrderStatusHistory, 0, len(transitions))
	for i, t := range transitions {
		entries = append(entries, models.OrderStatusHistory{
			OrderID: orderID,
			Seq:     seq + i,
			Status:  t.status,
			Message: t.message,
		})
	}
	if err := repo.AppendHistory(ctx, entries); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}
	return nil
}

func invalidTransition(current enums.OrderStatus, action string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("%s not allowed from status %s", action, current)).
		WithDetails(map[string]any{"current_status": current})
}

func buildDispenseLog(order *models.Order, input DeviceEventInput, success bool) *models.DispenseLog {
	venueID := order.VenueID
	orderID := order.ID
	return &models.DispenseLog{
		DispenserID:     order.DispenserID,
		OrderID:         &orderID,
		VenueID:         &venueID,
		TriggerType:     enums.TriggerTypeOnlineOrder,
		VolumeML:        input.DispensedML,
		DurationMS:      input.DurationMS,
		FlowmeterPulses: input.FlowmeterPulses,
		PressurePSI:     input.PressurePSI,
		TemperatureC:    input.TemperatureC,
		KegRemaining:    input.KegRemaining,
		Success:         success,
		ErrorCode:       input.ErrorCode,
		ErrorMessage:    input.ErrorMessage,
		ReportedAt:      input.ReportedAt,
	}
}
