package quotes

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/laundrylink/laundrylink-backend/api/middleware"
	"github.com/laundrylink/laundrylink-backend/api/responses"
	"github.com/laundrylink/laundrylink-backend/api/validators"
	internalquotes "github.com/laundrylink/laundrylink-backend/internal/quotes"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
)

// Create requests a delivery quote for the calling customer.
func Create(svc internalquotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input internalquotes.RequestQuoteInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.CustomerID = customerID

		result, err := svc.RequestQuote(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type selectPaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

// SelectPaymentMethod attaches a saved card to an awaiting quote.
func SelectPaymentMethod(svc internalquotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quoteID, err := validators.ParsePathUUID(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body selectPaymentMethodRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.SelectPaymentMethod(r.Context(), quoteID, customerID, body.PaymentMethodID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

type decisionRequest struct {
	Decision enums.QuoteDecision `json:"decision" validate:"required,oneof=accept reject"`
}

// Decide lets the vendor accept or reject a pending quote.
func Decide(svc internalquotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quoteID, err := validators.ParsePathUUID(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body decisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Decide(r.Context(), internalquotes.DecideInput{
			QuoteID:      quoteID,
			ActorUserID:  userID,
			ActorStoreID: storeID,
			Decision:     body.Decision,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// Get returns a quote visible to the caller.
func Get(svc internalquotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quoteID, err := validators.ParsePathUUID(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.GetByID(r.Context(), quoteID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func actorUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return id, nil
}

func actorStoreID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.StoreIDFromContext(r.Context())
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor store required")
	}
	return id, nil
}
