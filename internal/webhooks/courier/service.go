package courierwebhook

import (
	"context"
	"time"

	"github.com/laundrylink/laundrylink-backend/internal/orders"
	"github.com/laundrylink/laundrylink-backend/pkg/courier"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
)

// EventKindDeliveryStatus is the only courier event kind this product
// consumes.
const EventKindDeliveryStatus = "event.delivery_status"

// Event is the courier webhook envelope.
type Event struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Status     string        `json:"status"`
	DeliveryID string        `json:"delivery_id"`
	CreatedAt  time.Time     `json:"created"`
	Data       EventDelivery `json:"data"`
}

// EventDelivery is the delivery snapshot embedded in the event.
type EventDelivery struct {
	ID              string               `json:"id"`
	Status          string               `json:"status"`
	TrackingURL     string               `json:"tracking_url"`
	Courier         *courier.CourierInfo `json:"courier"`
	CourierImminent bool                 `json:"courier_imminent"`
	PickupETA       *time.Time           `json:"pickup_eta"`
	DropoffETA      *time.Time           `json:"dropoff_eta"`
}

type orderService interface {
	ApplyCourierUpdate(ctx context.Context, input orders.CourierUpdateInput) error
}

// ServiceParams groups the courier webhook dependencies.
type ServiceParams struct {
	Orders orderService
	Guard  *IdempotencyGuard
	Logger *logger.Logger
}

// Service applies verified courier webhook events.
type Service struct {
	orders orderService
	guard  *IdempotencyGuard
	logg   *logger.Logger
}

// NewService wires the courier webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{
		orders: params.Orders,
		guard:  params.Guard,
		logg:   params.Logger,
	}, nil
}

// HandleEvent processes one signature-verified courier event. Duplicate
// event ids and unsupported kinds are successful no-ops. Failures release
// the dedup mark so courier redelivery can retry.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "courier event required")
	}
	if event.Kind != EventKindDeliveryStatus {
		return nil
	}
	deliveryUID := event.DeliveryID
	if deliveryUID == "" {
		deliveryUID = event.Data.ID
	}
	if deliveryUID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery id missing")
	}

	if event.ID != "" {
		seen, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking event dedup")
		}
		if seen {
			return nil
		}
	}

	status := event.Status
	if status == "" {
		status = event.Data.Status
	}
	occurred := event.CreatedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	input := orders.CourierUpdateInput{
		DeliveryUID:     deliveryUID,
		Status:          enums.DeliveryStatus(status),
		CourierImminent: event.Data.CourierImminent,
		PickupETA:       event.Data.PickupETA,
		DropoffETA:      event.Data.DropoffETA,
		OccurredAt:      occurred,
	}
	if event.Data.TrackingURL != "" {
		url := event.Data.TrackingURL
		input.TrackingURL = &url
	}
	if event.Data.Courier != nil {
		if event.Data.Courier.Name != "" {
			name := event.Data.Courier.Name
			input.CourierName = &name
		}
		if event.Data.Courier.PhoneNumber != "" {
			phone := event.Data.Courier.PhoneNumber
			input.CourierPhone = &phone
		}
		if event.Data.Courier.VehicleType != "" {
			vehicle := event.Data.Courier.VehicleType
			input.CourierVehicle = &vehicle
		}
	}

	if err := s.orders.ApplyCourierUpdate(ctx, input); err != nil {
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeNotFound {
			// delivery unknown to us, courier still gets its 200
			if s.logg != nil {
				s.logg.Warn(ctx, "courier event for unknown delivery "+deliveryUID)
			}
			return nil
		}
		if event.ID != "" {
			if derr := s.guard.Delete(ctx, event.ID); derr != nil && s.logg != nil {
				s.logg.Error(ctx, "releasing dedup mark for event "+event.ID, derr)
			}
		}
		return err
	}
	return nil
}
