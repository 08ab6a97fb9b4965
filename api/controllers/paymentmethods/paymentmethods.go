package paymentmethods

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/laundrylink/laundrylink-backend/api/middleware"
	"github.com/laundrylink/laundrylink-backend/api/responses"
	internalpm "github.com/laundrylink/laundrylink-backend/internal/paymentmethods"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
)

// List returns the caller's saved cards.
func List(svc internalpm.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		methods, err := svc.ListSavedMethods(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, methods)
	}
}

// CreateSetupIntent returns a client secret for in-app card capture.
func CreateSetupIntent(svc internalpm.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.CreateSetupIntent(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intent)
	}
}

// Delete detaches a saved card after verifying ownership.
func Delete(svc internalpm.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentMethodID := strings.TrimSpace(chi.URLParam(r, "paymentMethodId"))
		if paymentMethodID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required"))
			return
		}

		if err := svc.DetachMethod(r.Context(), userID, paymentMethodID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "detached"})
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
