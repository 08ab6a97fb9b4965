package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/internal/paymentmethods"
	"github.com/laundrylink/laundrylink-backend/pkg/config"
	"github.com/laundrylink/laundrylink-backend/pkg/courier"
	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
	"github.com/laundrylink/laundrylink-backend/pkg/outbox"
	"github.com/laundrylink/laundrylink-backend/pkg/outbox/payloads"
)

type courierGateway interface {
	CreateQuote(ctx context.Context, req courier.QuoteRequest) (*courier.QuoteResponse, error)
}

type paymentService interface {
	EnsureCustomer(ctx context.Context, userID uuid.UUID) (string, error)
	ListSavedMethods(ctx context.Context, userID uuid.UUID) ([]paymentmethods.PaymentMethodDTO, error)
	CreateSetupSession(ctx context.Context, userID, quoteID uuid.UUID) (*paymentmethods.SetupSessionDTO, error)
	ConfirmSetupForMethod(ctx context.Context, stripeCustomerID, paymentMethodID string) error
}

type storeLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Orchestrator converts an accepted quote into a courier delivery plus a
// billable order inside the caller's transaction.
type Orchestrator interface {
	AcceptAndFulfill(ctx context.Context, tx *gorm.DB, quote *models.DeliveryQuote) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DecideInput carries a vendor's accept/reject call.
type DecideInput struct {
	QuoteID      uuid.UUID
	ActorUserID  uuid.UUID
	ActorStoreID uuid.UUID
	Decision     enums.QuoteDecision
}

// Service manages the delivery quote lifecycle.
type Service interface {
	RequestQuote(ctx context.Context, input RequestQuoteInput) (*RequestQuoteResult, error)
	SelectPaymentMethod(ctx context.Context, quoteID, customerID uuid.UUID, paymentMethodID string) (*QuoteDTO, error)
	Decide(ctx context.Context, input DecideInput) (*QuoteDTO, error)
	GetByID(ctx context.Context, quoteID, actorUserID uuid.UUID) (*QuoteDTO, error)
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// ServiceParams groups the quote service dependencies.
type ServiceParams struct {
	Repo         Repository
	Stores       storeLoader
	Users        userLoader
	Courier      courierGateway
	Payments     paymentService
	Orchestrator Orchestrator
	Tx           txRunner
	Outbox       outboxEmitter
	Logger       *logger.Logger
	Config       config.QuotesConfig
}

type service struct {
	repo         Repository
	stores       storeLoader
	users        userLoader
	courier      courierGateway
	payments     paymentService
	orchestrator Orchestrator
	tx           txRunner
	outbox       outboxEmitter
	logg         *logger.Logger
	cfg          config.QuotesConfig
	validate     *validator.Validate
	now          func() time.Time
}

// NewService wires the quote lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("quotes repository required")
	}
	if params.Stores == nil {
		return nil, fmt.Errorf("store loader required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if params.Courier == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if params.Orchestrator == nil {
		return nil, fmt.Errorf("order orchestrator required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:         params.Repo,
		stores:       params.Stores,
		users:        params.Users,
		courier:      params.Courier,
		payments:     params.Payments,
		orchestrator: params.Orchestrator,
		tx:           params.Tx,
		outbox:       params.Outbox,
		logg:         params.Logger,
		cfg:          params.Config,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		now:          time.Now,
	}, nil
}

// RequestQuote prices the requested legs with the courier and persists the
// quote. The initial status depends on whether the customer already has a
// chargeable card on file.
func (s *service) RequestQuote(ctx context.Context, input RequestQuoteInput) (*RequestQuoteResult, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quote request")
	}
	if !input.ServiceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown service type %q", input.ServiceType))
	}
	for _, item := range input.ManifestItems {
		if !item.Size.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown manifest size %q", item.Size))
		}
	}

	store, err := s.stores.FindByID(ctx, input.StoreID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store")
	}
	if !store.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "store is not accepting orders")
	}

	manifestTotal := manifestTotalValue(input.ManifestItems)
	totalCents := manifestTotal.Mul(decimal.NewFromInt(100)).IntPart()

	primary, second, err := s.priceLegs(ctx, input, store, totalCents)
	if err != nil {
		return nil, err
	}

	feeCents := primary.Fee
	if second != nil {
		feeCents += second.Fee
	}

	expires := primary.Expires
	if expires.IsZero() {
		expires = s.now().Add(s.cfg.TTL)
	}

	currency := enums.CurrencyUSD
	if parsed, perr := enums.ParseCurrency(primary.Currency); perr == nil {
		currency = parsed
	}

	quote := &models.DeliveryQuote{
		ServiceType:        input.ServiceType,
		Status:             enums.QuoteStatusAwaitingPaymentSetup,
		QuoteID:            &primary.ID,
		CustomerID:         input.CustomerID,
		StoreID:            store.ID,
		PickupAddress:      input.PickupAddress,
		PickupLat:          input.PickupLat,
		PickupLng:          input.PickupLng,
		PickupPhone:        input.PickupPhone,
		DropoffAddress:     input.DropoffAddress,
		DropoffLat:         input.DropoffLat,
		DropoffLng:         input.DropoffLng,
		DropoffPhone:       input.DropoffPhone,
		ManifestTotalValue: manifestTotal,
		Fee:                decimal.New(feeCents, -2),
		Currency:           currency,
		DurationMinutes:    intPtr(primary.Duration),
		PickupDuration:     intPtr(primary.PickupDuration),
		Expires:            expires,
	}
	if second != nil {
		quote.SecondQuoteID = &second.ID
	}
	if !primary.DropoffETA.IsZero() {
		eta := primary.DropoffETA
		quote.DropoffETA = &eta
	}
	if !primary.DropoffDeadline.IsZero() {
		deadline := primary.DropoffDeadline
		quote.DropoffDeadline = &deadline
	}
	for _, item := range input.ManifestItems {
		quote.ManifestItems = append(quote.ManifestItems, models.ManifestItem{
			Name:          item.Name,
			Quantity:      item.Quantity,
			Size:          item.Size,
			Dimensions:    item.Dimensions,
			Weight:        item.Weight,
			Price:         item.Price,
			VATPercentage: item.VATPercentage,
		})
	}

	if _, err := s.payments.EnsureCustomer(ctx, input.CustomerID); err != nil {
		return nil, err
	}
	saved, err := s.payments.ListSavedMethods(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	hasCard := len(saved) > 0
	if hasCard {
		quote.Status = enums.QuoteStatusPending
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, quote); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting quote")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteRequested,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Version:       1,
			Data: payloads.QuoteRequestedEvent{
				QuoteID:     quote.ID,
				CustomerID:  quote.CustomerID,
				StoreID:     quote.StoreID,
				ServiceType: quote.ServiceType,
				FeeCents:    feeCents,
				Expires:     quote.Expires,
			},
		}); err != nil {
			return err
		}
		if quote.Status == enums.QuoteStatusPending {
			return s.emitReadyForReview(ctx, tx, quote)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &RequestQuoteResult{Quote: FromModel(quote)}
	if !hasCard {
		session, err := s.payments.CreateSetupSession(ctx, input.CustomerID, quote.ID)
		if err != nil {
			return nil, err
		}
		result.CheckoutURL = &session.URL
	}
	return result, nil
}

// SelectPaymentMethod attaches a saved card chosen in-app and moves the
// quote into vendor review.
func (s *service) SelectPaymentMethod(ctx context.Context, quoteID, customerID uuid.UUID, paymentMethodID string) (*QuoteDTO, error) {
	if paymentMethodID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}

	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "quote does not belong to this customer")
	}
	if quote.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quote is closed")
	}
	if s.now().After(quote.Expires) {
		return nil, s.expireNow(ctx, quote)
	}

	stripeCustomerID, err := s.payments.EnsureCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.payments.ConfirmSetupForMethod(ctx, stripeCustomerID, paymentMethodID); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetPaymentMethod(ctx, quote.ID, paymentMethodID, enums.QuoteStatusPending); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving payment method")
		}
		quote.PaymentMethodID = &paymentMethodID
		quote.Status = enums.QuoteStatusPending
		return s.emitReadyForReview(ctx, tx, quote)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(quote), nil
}

// Decide resolves the vendor's accept/reject under a row lock so racing
// decisions serialize; the loser observes a state conflict.
func (s *service) Decide(ctx context.Context, input DecideInput) (*QuoteDTO, error) {
	if input.QuoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorStoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	if input.Decision != enums.QuoteDecisionAccept && input.Decision != enums.QuoteDecisionReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown decision %q", input.Decision))
	}

	var out *QuoteDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quote, err := repo.FindByIDForUpdate(ctx, input.QuoteID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking quote")
		}
		if quote.StoreID != input.ActorStoreID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "quote does not belong to this store")
		}
		if quote.Status != enums.QuoteStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("quote is %s, only pending quotes can be decided", quote.Status))
		}
		if s.now().After(quote.Expires) {
			// observed expiry wins over the vendor's decision
			if err := repo.UpdateStatus(ctx, quote.ID, enums.QuoteStatusExpired); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expiring quote")
			}
			if err := s.outbox.Emit(ctx, tx, expiredEvent(quote, s.now())); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quote has expired")
		}

		if input.Decision == enums.QuoteDecisionReject {
			if err := repo.UpdateStatus(ctx, quote.ID, enums.QuoteStatusRejected); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rejecting quote")
			}
			quote.Status = enums.QuoteStatusRejected
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventQuoteRejected,
				AggregateType: enums.AggregateQuote,
				AggregateID:   quote.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: input.ActorUserID, StoreID: &input.ActorStoreID},
				Data: payloads.QuoteRejectedEvent{
					QuoteID:    quote.ID,
					CustomerID: quote.CustomerID,
					StoreID:    quote.StoreID,
					RejectedAt: s.now(),
				},
			}); err != nil {
				return err
			}
			out = FromModel(quote)
			return nil
		}

		if _, err := s.orchestrator.AcceptAndFulfill(ctx, tx, quote); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, quote.ID, enums.QuoteStatusAccepted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accepting quote")
		}
		quote.Status = enums.QuoteStatusAccepted
		out = FromModel(quote)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) GetByID(ctx context.Context, quoteID, actorUserID uuid.UUID) (*QuoteDTO, error) {
	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.CustomerID != actorUserID {
		// vendors read through their store
		store, serr := s.stores.FindByID(ctx, quote.StoreID)
		if serr != nil || store.OwnerID != actorUserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "quote is not visible to this user")
		}
	}
	return FromModel(quote), nil
}

// ExpireStale flips pending quotes past their deadline to expired. Runs from
// the reconcile worker.
func (s *service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.FindPendingExpiredBefore(ctx, now, 100)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing stale quotes")
	}
	expired := 0
	for i := range stale {
		quote := stale[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.UpdateStatus(ctx, quote.ID, enums.QuoteStatusExpired); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, expiredEvent(&quote, now))
		})
		if err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "expiring stale quote "+quote.ID.String(), err)
			}
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *service) loadQuote(ctx context.Context, quoteID uuid.UUID) (*models.DeliveryQuote, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading quote")
	}
	return quote, nil
}

func (s *service) expireNow(ctx context.Context, quote *models.DeliveryQuote) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStatus(ctx, quote.ID, enums.QuoteStatusExpired); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expiring quote")
		}
		return s.outbox.Emit(ctx, tx, expiredEvent(quote, s.now()))
	})
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "quote has expired")
}

func (s *service) emitReadyForReview(ctx context.Context, tx *gorm.DB, quote *models.DeliveryQuote) error {
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
}

// priceLegs calls the courier once per leg. Full service needs both legs,
// customer to vendor and vendor back to customer.
func (s *service) priceLegs(ctx context.Context, input RequestQuoteInput, store *models.Store, totalCents int64) (*courier.QuoteResponse, *courier.QuoteResponse, error) {
	outbound := courier.QuoteRequest{
		PickupAddress:      input.PickupAddress,
		DropoffAddress:     input.DropoffAddress,
		PickupLatitude:     input.PickupLat,
		PickupLongitude:    input.PickupLng,
		DropoffLatitude:    input.DropoffLat,
		DropoffLongitude:   input.DropoffLng,
		PickupPhoneNumber:  input.PickupPhone,
		DropoffPhoneNumber: input.DropoffPhone,
		ManifestTotalValue: totalCents,
	}

	primary, err := s.courier.CreateQuote(ctx, outbound)
	if err != nil {
		return nil, nil, err
	}

	if input.ServiceType != enums.ServiceTypeFullService {
		return primary, nil, nil
	}

	inbound := courier.QuoteRequest{
		PickupAddress:      input.DropoffAddress,
		DropoffAddress:     input.PickupAddress,
		PickupLatitude:     input.DropoffLat,
		PickupLongitude:    input.DropoffLng,
		DropoffLatitude:    input.PickupLat,
		DropoffLongitude:   input.PickupLng,
		PickupPhoneNumber:  input.DropoffPhone,
		DropoffPhoneNumber: input.PickupPhone,
		ManifestTotalValue: totalCents,
	}
	second, err := s.courier.CreateQuote(ctx, inbound)
	if err != nil {
		return nil, nil, err
	}
	return primary, second, nil
}

func expiredEvent(quote *models.DeliveryQuote, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventQuoteExpired,
		AggregateType: enums.AggregateQuote,
		AggregateID:   quote.ID,
		Version:       1,
		Data: payloads.QuoteExpiredEvent{
			QuoteID:    quote.ID,
			CustomerID: quote.CustomerID,
			StoreID:    quote.StoreID,
			ExpiredAt:  at,
		},
	}
}

func manifestTotalValue(items []ManifestItemInput) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(item.Price.Mul(qty))
	}
	return total
}

func intPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
