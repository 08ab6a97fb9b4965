package stores

import (
	"net/http"
	"strings"

	"github.com/laundrylink/laundrylink-backend/api/responses"
	"github.com/laundrylink/laundrylink-backend/api/validators"
	internalstores "github.com/laundrylink/laundrylink-backend/internal/stores"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/geo"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
)

// Nearby lists active stores ordered by distance from the given point.
func Nearby(svc internalstores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, ok, err := validators.ParseQueryFloat(r, "lat")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "lat is required"))
			return
		}

		lng, ok, err := validators.ParseQueryFloat(r, "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "lng is required"))
			return
		}

		radius, _, err := validators.ParseQueryFloat(r, "radius")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unit := geo.UnitKilometers
		if raw := strings.TrimSpace(r.URL.Query().Get("unit")); raw != "" {
			unit = geo.Unit(raw)
			if !unit.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unit must be km or miles"))
				return
			}
		}

		stores, err := svc.Nearby(r.Context(), internalstores.NearbyInput{
			Lat:    lat,
			Lng:    lng,
			Radius: radius,
			Unit:   unit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stores)
	}
}

// Get returns a single store profile.
func Get(svc internalstores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := validators.ParsePathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := svc.GetByID(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store)
	}
}
