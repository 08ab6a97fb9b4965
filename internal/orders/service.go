package orders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/internal/paymentmethods"
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
	CreateDelivery(ctx context.Context, req courier.DeliveryRequest, idempotencyKey string) (*courier.DeliveryResponse, error)
}

type paymentGateway interface {
	ChargeOffSession(ctx context.Context, input paymentmethods.ChargeInput) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

type storeLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type quoteLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service orchestrates delivery creation, order billing and courier-driven
// lifecycle transitions.
type Service interface {
	AcceptAndFulfill(ctx context.Context, tx *gorm.DB, quote *models.DeliveryQuote) (*models.Order, error)
	WeighAndCharge(ctx context.Context, actor Actor, input WeighInput) (*OrderDTO, error)
	ScheduleReturn(ctx context.Context, orderUUID uuid.UUID, actor Actor) (*OrderDTO, error)
	CancelOrder(ctx context.Context, orderUUID uuid.UUID, actor Actor, reason string) (*OrderDTO, error)
	GetByUUID(ctx context.Context, orderUUID uuid.UUID, actor Actor) (*OrderDTO, error)
	ApplyCourierUpdate(ctx context.Context, input CourierUpdateInput) error
	SweepOrphanDeliveries(ctx context.Context, cutoff time.Time) (int, error)
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Repo     Repository
	Quotes   quoteLoader
	Stores   storeLoader
	Users    userLoader
	Courier  courierGateway
	Payments paymentGateway
	Tx       txRunner
	Outbox   outboxEmitter
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	quotes   quoteLoader
	stores   storeLoader
	users    userLoader
	courier  courierGateway
	payments paymentGateway
	tx       txRunner
	outbox   outboxEmitter
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the order orchestration service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote loader required")
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
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:     params.Repo,
		quotes:   params.Quotes,
		stores:   params.Stores,
		users:    params.Users,
		courier:  params.Courier,
		payments: params.Payments,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// deliveryIdempotencyKey is stable per quote so courier creation retries
// collapse onto one delivery.
func deliveryIdempotencyKey(quoteID uuid.UUID) string {
	sum := sha256.Sum256([]byte(quoteID.String()))
	return hex.EncodeToString(sum[:])
}

func returnIdempotencyKey(orderUUID uuid.UUID) string {
	sum := sha256.Sum256([]byte(orderUUID.String() + ":return"))
	return hex.EncodeToString(sum[:])
}

// AcceptAndFulfill converts an accepted quote into a courier delivery and a
// billable order inside the caller's transaction. The courier call happens
// before the local writes commit; the attempt journal row is written on the
// base connection so it survives a failed commit.
func (s *service) AcceptAndFulfill(ctx context.Context, tx *gorm.DB, quote *models.DeliveryQuote) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if quote.Status != enums.QuoteStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("quote is %s, only pending quotes convert to orders", quote.Status))
	}
	if s.now().After(quote.Expires) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quote has expired")
	}

	store, err := s.stores.FindByID(ctx, quote.StoreID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store")
	}
	customer, err := s.users.FindByID(ctx, quote.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading customer")
	}

	key := deliveryIdempotencyKey(quote.ID)
	resp, err := s.courier.CreateDelivery(ctx, buildDeliveryRequest(quote, customer, store, key), key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating courier delivery")
	}

	// journal on the base connection, not the caller's tx
	attempt := &models.DeliveryAttempt{
		IdempotencyKey: key,
		QuoteID:        quote.ID,
		DeliveryUID:    &resp.ID,
		RawResponse:    resp.Raw,
	}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil && s.logg != nil {
		s.logg.Error(ctx, "journaling delivery attempt "+key, err)
	}

	order, err := s.persistConversion(ctx, tx, quote, customer, store, resp, key)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// persistConversion writes the delivery, order and manifest reassignment for
// a quote conversion. Shared with orphan recovery.
func (s *service) persistConversion(ctx context.Context, tx *gorm.DB, quote *models.DeliveryQuote, customer *models.User, store *models.Store, resp *courier.DeliveryResponse, key string) (*models.Order, error) {
	repo := s.repo.WithTx(tx)

	delivery := buildDelivery(quote, customer, store, resp, key)
	if err := repo.CreateDelivery(ctx, delivery); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting delivery")
	}

	feeCents := int(quote.Fee.Mul(decimal.NewFromInt(100)).IntPart())
	status := enums.OrderStatusPendingSetup
	if quote.PaymentMethodID != nil {
		status = enums.OrderStatusCardSaved
	}
	order := &models.Order{
		UUID:                  uuid.New(),
		UserID:                quote.CustomerID,
		StoreID:               quote.StoreID,
		Status:                status,
		PickupAddress:         quote.PickupAddress,
		PickupLat:             quote.PickupLat,
		PickupLng:             quote.PickupLng,
		DropoffAddress:        quote.DropoffAddress,
		DropoffLat:            quote.DropoffLat,
		DropoffLng:            quote.DropoffLng,
		DeliveryFeeCents:      &feeCents,
		StripeCustomerID:      customer.StripeCustomerID,
		StripePaymentMethodID: quote.PaymentMethodID,
		PickupDeliveryID:      &delivery.ID,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting order")
	}
	if err := repo.ReassignManifestToDelivery(ctx, quote.ID, delivery.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassigning manifest")
	}
	if err := repo.ResolveAttempt(ctx, key, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving delivery attempt")
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			OrderUUID:   order.UUID,
			QuoteID:     quote.ID,
			CustomerID:  order.UserID,
			StoreID:     order.StoreID,
			Status:      order.Status,
			DeliveryUID: resp.ID,
		},
	}); err != nil {
		return nil, err
	}
	return order, nil
}

// WeighAndCharge records the weight, prices the order and runs the
// off-session charge. A card decline leaves the order weighed so the vendor
// can retry after the customer fixes their card.
func (s *service) WeighAndCharge(ctx context.Context, actor Actor, input WeighInput) (*OrderDTO, error) {
	if input.WeightInPounds.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockOrder(ctx, repo, input.OrderUUID)
		if err != nil {
			return err
		}
		if err := requireStoreActor(locked, actor); err != nil {
			return err
		}
		if locked.Status != enums.OrderStatusPickedUp && locked.Status != enums.OrderStatusWeighed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s, weight is recorded after pickup", locked.Status))
		}
		store, err := s.stores.FindByID(ctx, locked.StoreID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store")
		}

		serviceCharge := int(input.WeightInPounds.
			Mul(decimal.NewFromInt(int64(store.PricePerPoundCents))).
			Round(0).IntPart())
		deliveryFee := 0
		if locked.DeliveryFeeCents != nil {
			deliveryFee = *locked.DeliveryFeeCents
		}
		finalTotal := serviceCharge + deliveryFee

		weight := input.WeightInPounds
		locked.WeightInPounds = &weight
		locked.ServiceChargeCents = &serviceCharge
		locked.FinalTotalCents = &finalTotal
		locked.Status = enums.OrderStatusWeighed
		if err := repo.UpdateOrder(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving weighed order")
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.StripeCustomerID == nil || order.StripePaymentMethodID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no card on file")
	}
	intent, err := s.payments.ChargeOffSession(ctx, paymentmethods.ChargeInput{
		StripeCustomerID: *order.StripeCustomerID,
		PaymentMethodID:  *order.StripePaymentMethodID,
		AmountCents:      int64(*order.FinalTotalCents),
		Currency:         "usd",
		Description:      "laundry order " + order.UUID.String(),
		OrderUUID:        order.UUID,
	})
	if err != nil {
		// order stays weighed, the vendor can retry the charge
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order.StripePaymentIntentID = &intent.ID
		order.Status = enums.OrderStatusCharged
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving charged order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCharged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actorRef(actor),
			Data: payloads.OrderChargedEvent{
				OrderID:            order.ID,
				CustomerID:         order.UserID,
				StoreID:            order.StoreID,
				WeightInPounds:     *order.WeightInPounds,
				ServiceChargeCents: *order.ServiceChargeCents,
				FinalTotalCents:    *order.FinalTotalCents,
				PaymentIntentID:    intent.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return OrderFromModel(order), nil
}

// ScheduleReturn books the vendor-to-customer leg for a charged order.
func (s *service) ScheduleReturn(ctx context.Context, orderUUID uuid.UUID, actor Actor) (*OrderDTO, error) {
	var (
		order    *models.Order
		pickup   *models.Delivery
		store    *models.Store
		customer *models.User
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockOrder(ctx, repo, orderUUID)
		if err != nil {
			return err
		}
		if err := requireStoreActor(locked, actor); err != nil {
			return err
		}
		if locked.Status != enums.OrderStatusCharged {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s, returns are scheduled after the charge", locked.Status))
		}
		if locked.ReturnDeliveryID != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return already scheduled")
		}
		if locked.PickupDeliveryID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "order has no pickup delivery")
		}
		pickup, err = repo.FindDeliveryByID(ctx, *locked.PickupDeliveryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading pickup delivery")
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	store, err = s.stores.FindByID(ctx, order.StoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store")
	}
	customer, err = s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading customer")
	}

	// return leg runs vendor to customer
	returnQuote, err := s.courier.CreateQuote(ctx, courier.QuoteRequest{
		PickupAddress:      store.Address,
		DropoffAddress:     order.PickupAddress,
		PickupPhoneNumber:  derefStr(store.Phone),
		DropoffPhoneNumber: pickup.PickupPhone,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "quoting return leg")
	}

	key := returnIdempotencyKey(order.UUID)
	resp, err := s.courier.CreateDelivery(ctx, courier.DeliveryRequest{
		QuoteID:            returnQuote.ID,
		PickupName:         store.Name,
		PickupAddress:      store.Address,
		PickupPhoneNumber:  derefStr(store.Phone),
		DropoffName:        customer.FullName,
		DropoffAddress:     order.PickupAddress,
		DropoffPhoneNumber: pickup.PickupPhone,
		IdempotencyKey:     key,
	}, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating return delivery")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		returnDelivery := &models.Delivery{
			DeliveryUID:    &resp.ID,
			ParentID:       order.PickupDeliveryID,
			Status:         enums.DeliveryStatusPending,
			PickupName:     store.Name,
			PickupAddress:  store.Address,
			PickupPhone:    derefStr(store.Phone),
			DropoffName:    customer.FullName,
			DropoffAddress: order.PickupAddress,
			DropoffPhone:   pickup.PickupPhone,
			Fee:            decimal.New(resp.Fee, -2),
			Currency:       returnCurrency(resp.Currency),
			IdempotencyKey: key,
			RawResponse:    resp.Raw,
			PickupETA:      resp.PickupETA,
			DropoffETA:     resp.DropoffETA,
		}
		if resp.TrackingURL != "" {
			returnDelivery.TrackingURL = &resp.TrackingURL
		}
		if status, perr := enums.ParseDeliveryStatus(resp.Status); perr == nil {
			returnDelivery.Status = status
		}
		if err := repo.CreateDelivery(ctx, returnDelivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting return delivery")
		}
		order.ReturnDeliveryID = &returnDelivery.ID
		order.Status = enums.OrderStatusReturnScheduled
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnScheduled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actorRef(actor),
			Data: payloads.ReturnScheduledEvent{
				OrderID:     order.ID,
				CustomerID:  order.UserID,
				StoreID:     order.StoreID,
				DeliveryUID: resp.ID,
				ScheduledAt: s.now(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return OrderFromModel(order), nil
}

// CancelOrder is the escape valve out of any non-terminal status.
func (s *service) CancelOrder(ctx context.Context, orderUUID uuid.UUID, actor Actor, reason string) (*OrderDTO, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockOrder(ctx, repo, orderUUID)
		if err != nil {
			return err
		}
		if err := requireOrderAccess(locked, actor); err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is already %s", locked.Status))
		}
		locked.Status = enums.OrderStatusCanceled
		if err := repo.UpdateOrder(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "canceling order")
		}
		order = locked
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   locked.ID,
			Version:       1,
			Actor:         actorRef(actor),
			Data: payloads.OrderCanceledEvent{
				OrderID:    locked.ID,
				CustomerID: locked.UserID,
				StoreID:    locked.StoreID,
				CanceledAt: s.now(),
				Reason:     reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if order.StripePaymentIntentID != nil {
		if cerr := s.payments.CancelIntent(ctx, *order.StripePaymentIntentID); cerr != nil && s.logg != nil {
			s.logg.Error(ctx, "canceling payment intent for order "+order.UUID.String(), cerr)
		}
	}
	return OrderFromModel(order), nil
}

func (s *service) GetByUUID(ctx context.Context, orderUUID uuid.UUID, actor Actor) (*OrderDTO, error) {
	order, err := s.repo.FindOrderByUUID(ctx, orderUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	if err := requireOrderAccess(order, actor); err != nil {
		return nil, err
	}
	return OrderFromModel(order), nil
}

// ApplyCourierUpdate handles a verified, deduplicated delivery-status event.
// Same-status re-delivery is a successful no-op; unknown courier statuses
// touch the delivery but never the order.
func (s *service) ApplyCourierUpdate(ctx context.Context, input CourierUpdateInput) error {
	if !input.Status.IsValid() {
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("ignoring unknown courier status %q for delivery %s", input.Status, input.DeliveryUID))
		}
		return nil
	}

	var (
		order      *models.Order
		advancedTo *enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindDeliveryByUIDForUpdate(ctx, input.DeliveryUID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking delivery")
		}
		sameStatus := delivery.Status == input.Status

		delivery.Status = input.Status
		applyCourierFields(delivery, input)
		if err := repo.UpdateDelivery(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving delivery")
		}
		if sameStatus {
			return nil
		}

		mapped, ok := orderStatusForCourier(input.Status)
		if !ok {
			return nil
		}
		order, err = repo.FindOrderForDelivery(ctx, delivery.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if s.logg != nil {
					s.logg.Warn(ctx, "delivery "+input.DeliveryUID+" has no order")
				}
				order = nil
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
		}
		if !shouldAdvanceOrder(order.Status, mapped) {
			return nil
		}

		from := order.Status
		if err := repo.UpdateOrderStatus(ctx, order.ID, mapped); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advancing order")
		}
		order.Status = mapped
		advancedTo = &mapped
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				CustomerID: order.UserID,
				StoreID:    order.StoreID,
				From:       from,
				To:         mapped,
				ChangedAt:  input.OccurredAt,
			},
		}); err != nil {
			return err
		}
		if mapped == enums.OrderStatusCanceled {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCanceled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderCanceledEvent{
					OrderID:    order.ID,
					CustomerID: order.UserID,
					StoreID:    order.StoreID,
					CanceledAt: input.OccurredAt,
					Reason:     "courier canceled the delivery",
				},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if order == nil || advancedTo == nil {
		return nil
	}
	return s.reconcilePayment(ctx, order, *advancedTo)
}

// reconcilePayment settles or releases the payment intent after a terminal
// courier transition. Failures here are reconciliation errors, the webhook
// was already applied.
func (s *service) reconcilePayment(ctx context.Context, order *models.Order, status enums.OrderStatus) error {
	if order.StripePaymentIntentID == nil {
		return nil
	}
	intentID := *order.StripePaymentIntentID

	switch status {
	case enums.OrderStatusCompleted:
		intent, err := s.payments.GetIntent(ctx, intentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "checking payment intent")
		}
		if intent.Status != stripe.PaymentIntentStatusSucceeded &&
			intent.Status != stripe.PaymentIntentStatusRequiresCapture {
			return nil
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderSettled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderSettledEvent{
					OrderID:         order.ID,
					CustomerID:      order.UserID,
					StoreID:         order.StoreID,
					PaymentIntentID: intentID,
					SettledAt:       s.now(),
				},
			})
		})
	case enums.OrderStatusCanceled:
		intent, err := s.payments.GetIntent(ctx, intentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "checking payment intent")
		}
		if intent.Status != stripe.PaymentIntentStatusRequiresCapture {
			return nil
		}
		if cerr := s.payments.CancelIntent(ctx, intentID); cerr != nil && s.logg != nil {
			s.logg.Error(ctx, "releasing payment intent "+intentID, cerr)
		}
		return nil
	default:
		return nil
	}
}

// SweepOrphanDeliveries re-persists courier deliveries whose local commit
// failed after courier success. Attempts with an existing delivery row are
// just marked resolved.
func (s *service) SweepOrphanDeliveries(ctx context.Context, cutoff time.Time) (int, error) {
	attempts, err := s.repo.FindUnresolvedAttemptsBefore(ctx, cutoff, 100)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing delivery attempts")
	}

	recovered := 0
	for i := range attempts {
		attempt := attempts[i]
		if _, err := s.repo.FindDeliveryByIdempotencyKey(ctx, attempt.IdempotencyKey); err == nil {
			if rerr := s.repo.ResolveAttempt(ctx, attempt.IdempotencyKey, s.now()); rerr != nil && s.logg != nil {
				s.logg.Error(ctx, "resolving delivery attempt "+attempt.IdempotencyKey, rerr)
			}
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			if s.logg != nil {
				s.logg.Error(ctx, "checking delivery attempt "+attempt.IdempotencyKey, err)
			}
			continue
		}

		if err := s.recoverAttempt(ctx, &attempt); err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "recovering delivery attempt "+attempt.IdempotencyKey, err)
			}
			continue
		}
		recovered++
	}
	return recovered, nil
}

func (s *service) recoverAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error {
	quote, err := s.quotes.FindByID(ctx, attempt.QuoteID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "loading quote for attempt")
	}
	customer, err := s.users.FindByID(ctx, quote.CustomerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "loading customer for attempt")
	}
	store, err := s.stores.FindByID(ctx, quote.StoreID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "loading store for attempt")
	}

	resp := &courier.DeliveryResponse{Raw: attempt.RawResponse}
	if len(attempt.RawResponse) > 0 {
		if uerr := json.Unmarshal(attempt.RawResponse, resp); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeReconciliation, uerr, "decoding recorded courier response")
		}
		resp.Raw = attempt.RawResponse
	}
	if resp.ID == "" && attempt.DeliveryUID != nil {
		resp.ID = *attempt.DeliveryUID
	}
	if resp.ID == "" {
		return pkgerrors.New(pkgerrors.CodeReconciliation, "attempt has no courier delivery id")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.persistConversion(ctx, tx, quote, customer, store, resp, attempt.IdempotencyKey); err != nil {
			return err
		}
		if quote.Status == enums.QuoteStatusPending {
			if err := s.repo.WithTx(tx).MarkQuoteAccepted(ctx, quote.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accepting recovered quote")
			}
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryRecovered,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   attempt.ID,
			Version:       1,
			Data: payloads.DeliveryRecoveredEvent{
				DeliveryID:     attempt.ID,
				DeliveryUID:    resp.ID,
				QuoteID:        attempt.QuoteID,
				IdempotencyKey: attempt.IdempotencyKey,
				RecoveredAt:    s.now(),
			},
		})
	})
}

func (s *service) lockOrder(ctx context.Context, repo Repository, orderUUID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrderByUUIDForUpdate(ctx, orderUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking order")
	}
	return order, nil
}

func requireStoreActor(order *models.Order, actor Actor) error {
	if actor.StoreID == nil || *actor.StoreID != order.StoreID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to this store")
	}
	return nil
}

func requireOrderAccess(order *models.Order, actor Actor) error {
	if actor.Role == enums.UserRoleStaff {
		return nil
	}
	if order.UserID == actor.UserID {
		return nil
	}
	if actor.StoreID != nil && *actor.StoreID == order.StoreID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order is not visible to this user")
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, StoreID: actor.StoreID, Role: string(actor.Role)}
}

func buildDeliveryRequest(quote *models.DeliveryQuote, customer *models.User, store *models.Store, key string) courier.DeliveryRequest {
	req := courier.DeliveryRequest{
		PickupName:         customer.FullName,
		PickupAddress:      quote.PickupAddress,
		PickupPhoneNumber:  quote.PickupPhone,
		DropoffName:        store.Name,
		DropoffAddress:     quote.DropoffAddress,
		DropoffPhoneNumber: quote.DropoffPhone,
		ManifestTotalValue: quote.ManifestTotalValue.Mul(decimal.NewFromInt(100)).IntPart(),
		ManifestReference:  quote.ID.String(),
		IdempotencyKey:     key,
	}
	if quote.QuoteID != nil {
		req.QuoteID = *quote.QuoteID
	}
	for _, item := range quote.ManifestItems {
		courierItem := courier.ManifestItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Size:     string(item.Size),
			Price:    item.Price.Mul(decimal.NewFromInt(100)).IntPart(),
		}
		if item.Weight != nil {
			courierItem.Weight = item.Weight.Round(0).IntPart()
		}
		req.ManifestItems = append(req.ManifestItems, courierItem)
	}
	return req
}

func buildDelivery(quote *models.DeliveryQuote, customer *models.User, store *models.Store, resp *courier.DeliveryResponse, key string) *models.Delivery {
	quoteID := quote.ID
	delivery := &models.Delivery{
		DeliveryUID:    &resp.ID,
		QuoteID:        &quoteID,
		Status:         enums.DeliveryStatusPending,
		PickupName:     customer.FullName,
		PickupAddress:  quote.PickupAddress,
		PickupPhone:    quote.PickupPhone,
		PickupLat:      quote.PickupLat,
		PickupLng:      quote.PickupLng,
		DropoffName:    store.Name,
		DropoffAddress: quote.DropoffAddress,
		DropoffPhone:   quote.DropoffPhone,
		DropoffLat:     quote.DropoffLat,
		DropoffLng:     quote.DropoffLng,
		Fee:            quote.Fee,
		Currency:       quote.Currency,
		IdempotencyKey: key,
		RawResponse:    resp.Raw,
		PickupETA:      resp.PickupETA,
		DropoffETA:     resp.DropoffETA,
	}
	if status, err := enums.ParseDeliveryStatus(resp.Status); err == nil {
		delivery.Status = status
	}
	if resp.TrackingURL != "" {
		delivery.TrackingURL = &resp.TrackingURL
	}
	if resp.Courier != nil {
		delivery.CourierName = strPtr(resp.Courier.Name)
		delivery.CourierPhone = strPtr(resp.Courier.PhoneNumber)
		delivery.CourierVehicle = strPtr(resp.Courier.VehicleType)
	}
	return delivery
}

func applyCourierFields(delivery *models.Delivery, input CourierUpdateInput) {
	if input.CourierName != nil {
		delivery.CourierName = input.CourierName
	}
	if input.CourierPhone != nil {
		delivery.CourierPhone = input.CourierPhone
	}
	if input.CourierVehicle != nil {
		delivery.CourierVehicle = input.CourierVehicle
	}
	if input.TrackingURL != nil {
		delivery.TrackingURL = input.TrackingURL
	}
	if input.PickupETA != nil {
		delivery.PickupETA = input.PickupETA
	}
	if input.DropoffETA != nil {
		delivery.DropoffETA = input.DropoffETA
	}
	delivery.CourierImminent = input.CourierImminent
	occurred := input.OccurredAt
	delivery.CourierUpdatedAt = &occurred
}

func returnCurrency(raw string) enums.Currency {
	if parsed, err := enums.ParseCurrency(raw); err == nil {
		return parsed
	}
	return enums.CurrencyUSD
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
