// Package ingest handles status reports posted by dispenser devices.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/internal/devices"
	"github.com/oskim/tapflow-backend/internal/orders"
	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/enums"
	pkgerrors "github.com/oskim/tapflow-backend/pkg/errors"
	"github.com/oskim/tapflow-backend/pkg/metrics"
)

// StatusReport is the webhook payload posted by a device. Field names match
// what the firmware sends; timestamp is unix seconds.
type StatusReport struct {
	OrderID         uuid.UUID `json:"order_id" validate:"required"`
	Status          string    `json:"status" validate:"required"`
	DispensedML     *int      `json:"dispensed_ml" validate:"omitempty,gte=0"`
	DurationMS      *int      `json:"duration_ms" validate:"omitempty,gte=0"`
	FlowmeterPulses *int      `json:"flowmeter_pulses" validate:"omitempty,gte=0"`
	PressurePSI     *float64  `json:"pressure_psi"`
	TemperatureC    *float64  `json:"temperature_c"`
	KegRemaining    *float64  `json:"keg_remaining_pct" validate:"omitempty,gte=0,lte=100"`
	ErrorCode       *string   `json:"error_code"`
	ErrorMessage    *string   `json:"error_message"`
	Timestamp       *int64    `json:"timestamp"`
}

// Result acknowledges a processed report.
type Result struct {
	OrderID uuid.UUID         `json:"order_id"`
	Status  enums.OrderStatus `json:"status"`
}

type orderEngine interface {
	ApplyDeviceEvent(ctx context.Context, tx *gorm.DB, input orders.DeviceEventInput) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service applies device status reports: the order transition and the
// dispenser telemetry snapshot commit in one transaction.
type Service interface {
	HandleStatus(ctx context.Context, dispenserID string, report StatusReport) (*Result, error)
}

type service struct {
	orders  orderEngine
	devices devices.Repository
	tx      txRunner
	pours   *metrics.PourMetrics
}

// NewService builds the status-ingest service.
func NewService(orderEng orderEngine, deviceRepo devices.Repository, tx txRunner, pours *metrics.PourMetrics) (Service, error) {
	if orderEng == nil {
		return nil, fmt.Errorf("order engine required")
	}
	if deviceRepo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		orders:  orderEng,
		devices: deviceRepo,
		tx:      tx,
		pours:   pours,
	}, nil
}

func (s *service) HandleStatus(ctx context.Context, dispenserID string, report StatusReport) (*Result, error) {
	event, err := enums.ParseDeviceEvent(report.Status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status value")
	}

	reportedAt := time.Now()
	if report.Timestamp != nil && *report.Timestamp > 0 {
		reportedAt = time.Unix(*report.Timestamp, 0)
	}

	input := orders.DeviceEventInput{
		OrderID:         report.OrderID,
		DispenserID:     dispenserID,
		Event:           event,
		DispensedML:     report.DispensedML,
		DurationMS:      report.DurationMS,
		FlowmeterPulses: report.FlowmeterPulses,
		PressurePSI:     report.PressurePSI,
		TemperatureC:    report.TemperatureC,
		KegRemaining:    report.KegRemaining,
		ErrorCode:       report.ErrorCode,
		ErrorMessage:    report.ErrorMessage,
		ReportedAt:      reportedAt,
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, applyErr := s.orders.ApplyDeviceEvent(ctx, tx, input)
		if applyErr != nil {
			return applyErr
		}
		order = applied

		if event == enums.DeviceEventDispensing {
			return nil
		}

		addVolume := 0
		if event == enums.DeviceEventCompleted && order.DispensedML != nil {
			addVolume = *order.DispensedML
		}
		if telErr := s.devices.WithTx(tx).ApplyTelemetry(ctx, dispenserID, report.PressurePSI, report.TemperatureC, addVolume); telErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, telErr, "update dispenser telemetry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch event {
	case enums.DeviceEventCompleted:
		volume := 0
		if order.DispensedML != nil {
			volume = *order.DispensedML
		}
		s.pours.IncPourCompleted(dispenserID, volume)
	case enums.DeviceEventError:
		code := "unknown"
		if report.ErrorCode != nil {
			code = *report.ErrorCode
		}
		s.pours.IncPourFailed(dispenserID, code)
	}

	return &Result{OrderID: order.ID, Status: order.Status}, nil
}
