package orders

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laundrylink/laundrylink-backend/api/middleware"
	"github.com/laundrylink/laundrylink-backend/api/responses"
	"github.com/laundrylink/laundrylink-backend/api/validators"
	internalorders "github.com/laundrylink/laundrylink-backend/internal/orders"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
)

type weighRequest struct {
	WeightInPounds decimal.Decimal `json:"weight_in_pounds" validate:"required"`
}

// Weigh records the measured laundry weight and charges the customer's card.
func Weigh(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderUUID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body weighRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !body.WeightInPounds.IsPositive() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive"))
			return
		}

		order, err := svc.WeighAndCharge(r.Context(), actor, internalorders.WeighInput{
			OrderUUID:      orderUUID,
			WeightInPounds: body.WeightInPounds,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ScheduleReturn books the vendor-to-customer return delivery.
func ScheduleReturn(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderUUID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ScheduleReturn(r.Context(), orderUUID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel aborts a non-terminal order and releases any uncaptured charge.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderUUID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.CancelOrder(r.Context(), orderUUID, actor, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Get returns an order visible to the caller.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderUUID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetByUUID(r.Context(), orderUUID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func actorFromRequest(r *http.Request) (internalorders.Actor, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	actor := internalorders.Actor{
		UserID: userID,
		Role:   enums.UserRole(middleware.RoleFromContext(r.Context())),
	}
	if raw := middleware.StoreIDFromContext(r.Context()); raw != "" {
		storeID, err := uuid.Parse(raw)
		if err != nil {
			return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "invalid store context")
		}
		actor.StoreID = &storeID
	}
	return actor, nil
}
