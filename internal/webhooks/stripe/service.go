package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/internal/paymentmethods"
	"github.com/laundrylink/laundrylink-backend/internal/quotes"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
	"github.com/laundrylink/laundrylink-backend/pkg/outbox"
	"github.com/laundrylink/laundrylink-backend/pkg/outbox/payloads"
)

type quoteRepository = quotes.Repository

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type setupIntentReader interface {
	GetSetupIntentMethod(ctx context.Context, setupIntentID string) (string, error)
}

// ServiceParams groups the Stripe webhook dependencies.
type ServiceParams struct {
	Quotes quoteRepository
	Tx     txRunner
	Outbox outboxEmitter
	Setup  setupIntentReader
	Guard  *IdempotencyGuard
	Logger *logger.Logger
}

// Service finishes payment setup when the hosted checkout session completes.
type Service struct {
	quotes quoteRepository
	tx     txRunner
	outbox outboxEmitter
	setup  setupIntentReader
	guard  *IdempotencyGuard
	logg   *logger.Logger
}

// NewService wires the Stripe webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Quotes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "quote repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{
		quotes: params.Quotes,
		tx:     params.Tx,
		outbox: params.Outbox,
		setup:  params.Setup,
		guard:  params.Guard,
		logg:   params.Logger,
	}, nil
}

// HandleEvent processes a signature-verified Stripe event. Only setup-mode
// checkout.session.completed moves quotes; everything else is acknowledged
// untouched.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}
	if event.Type != "checkout.session.completed" {
		return nil
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

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding checkout session")
	}
	if session.Mode != stripe.CheckoutSessionModeSetup {
		return nil
	}

	quoteID, ok := pendingQuoteID(session.Metadata)
	if !ok {
		// sessions we did not open carry no quote metadata
		if s.logg != nil {
			s.logg.Warn(ctx, "checkout session "+session.ID+" has no pending quote metadata")
		}
		return nil
	}

	paymentMethodID := s.resolvePaymentMethod(ctx, &session)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.quotes.WithTx(tx)
		quote, err := repo.FindByIDForUpdate(ctx, quoteID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if s.logg != nil {
					s.logg.Warn(ctx, "checkout session for unknown quote "+quoteID.String())
				}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking quote")
		}
		if quote.Status != enums.QuoteStatusAwaitingPaymentSetup {
			// duplicate or late delivery, the quote already moved on
			return nil
		}
		if paymentMethodID != "" {
			if err := repo.SetPaymentMethod(ctx, quote.ID, paymentMethodID, enums.QuoteStatusPending); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving payment method")
			}
		} else if err := repo.UpdateStatus(ctx, quote.ID, enums.QuoteStatusPending); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "moving quote to pending")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteReadyForReview,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Version:       1,
			Data: payloads.QuoteReadyForReviewEvent{
				QuoteID:    quote.ID,
				CustomerID: quote.CustomerID,
				StoreID:    quote.StoreID,
				Expires:    quote.Expires,
			},
		})
	})
	if err != nil {
		if event.ID != "" {
			if derr := s.guard.Delete(ctx, event.ID); derr != nil && s.logg != nil {
				s.logg.Error(ctx, "releasing dedup mark for event "+event.ID, derr)
			}
		}
		return err
	}
	return nil
}

// resolvePaymentMethod pulls the saved method off the session's setup
// intent. An empty result still moves the quote, the card lives on the
// customer either way.
func (s *Service) resolvePaymentMethod(ctx context.Context, session *stripe.CheckoutSession) string {
	if session.SetupIntent == nil || s.setup == nil {
		return ""
	}
	method, err := s.setup.GetSetupIntentMethod(ctx, session.SetupIntent.ID)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "resolving setup intent "+session.SetupIntent.ID, err)
		}
		return ""
	}
	return method
}

func pendingQuoteID(metadata map[string]string) (uuid.UUID, bool) {
	raw, ok := metadata[paymentmethods.PendingQuoteMetadataKey]
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
