package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/laundrylink/laundrylink-backend/api/responses"
	courierwebhook "github.com/laundrylink/laundrylink-backend/internal/webhooks/courier"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
)

type CourierWebhookService interface {
	HandleEvent(ctx context.Context, event *courierwebhook.Event) error
}

// CourierWebhook verifies the courier's HMAC signature over the raw body and
// applies the delivery status update. A bad signature or an unparseable body
// is rejected with a 4xx before any state is touched; once a well-formed
// event is accepted, processing failures are logged and the courier still
// gets a 200 so it stops redelivering (the dedup mark is released for the
// retry path).
func CourierWebhook(svc CourierWebhookService, webhookSecret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(courierwebhook.SignatureHeader)
		if !courierwebhook.VerifySignature(webhookSecret, payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var event courierwebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if logg != nil {
				logg.Error(ctx, "courier webhook processing failed", err)
			}
			responses.WriteSuccess(w, nil)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
