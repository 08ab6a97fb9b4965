package paymentmethods

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
)

// PendingQuoteMetadataKey is the checkout session metadata key that links a
// setup session back to the quote awaiting payment setup.
const PendingQuoteMetadataKey = "pending_quote_id"

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// Service orchestrates customer and card-on-file operations against the
// payment gateway.
type Service interface {
	EnsureCustomer(ctx context.Context, userID uuid.UUID) (string, error)
	ListSavedMethods(ctx context.Context, userID uuid.UUID) ([]PaymentMethodDTO, error)
	CreateSetupSession(ctx context.Context, userID, quoteID uuid.UUID) (*SetupSessionDTO, error)
	CreateSetupIntent(ctx context.Context, userID uuid.UUID) (*SetupIntentDTO, error)
	VerifyOwnership(ctx context.Context, stripeCustomerID, paymentMethodID string) error
	ConfirmSetupForMethod(ctx context.Context, stripeCustomerID, paymentMethodID string) error
	ChargeOffSession(ctx context.Context, input ChargeInput) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	GetSetupIntentMethod(ctx context.Context, setupIntentID string) (string, error)
	DetachMethod(ctx context.Context, userID uuid.UUID, paymentMethodID string) error
	CancelIntent(ctx context.Context, intentID string) error
}

// ChargeInput describes an off-session charge against a saved card.
type ChargeInput struct {
	StripeCustomerID string
	PaymentMethodID  string
	AmountCents      int64
	Currency         string
	Description      string
	OrderUUID        uuid.UUID
}

// ServiceParams groups dependencies for the payment method service.
type ServiceParams struct {
	Users      usersRepository
	Gateway    StripeGateway
	SuccessURL string
	CancelURL  string
}

type service struct {
	users      usersRepository
	gateway    StripeGateway
	successURL string
	cancelURL  string
}

// NewService constructs a payment method service.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	return &service{
		users:      params.Users,
		gateway:    params.Gateway,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
	}, nil
}

// EnsureCustomer returns the stored gateway customer id, creating the
// customer on first use. The local column makes the operation idempotent.
func (s *service) EnsureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}
	if user.StripeCustomerID != nil && strings.TrimSpace(*user.StripeCustomerID) != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.FullName),
	}
	params.AddMetadata("user_id", user.ID.String())

	cust, err := s.gateway.CreateCustomer(ctx, params)
	if err != nil {
		return "", wrapStripeErr(err, "creating gateway customer")
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, cust.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting gateway customer id")
	}
	return cust.ID, nil
}

func (s *service) ListSavedMethods(ctx context.Context, userID uuid.UUID) ([]PaymentMethodDTO, error) {
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	methods, err := s.gateway.ListPaymentMethods(ctx, &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	})
	if err != nil {
		return nil, wrapStripeErr(err, "listing payment methods")
	}

	out := make([]PaymentMethodDTO, 0, len(methods))
	for _, pm := range methods {
		dto := PaymentMethodDTO{ID: pm.ID}
		if pm.Card != nil {
			dto.Brand = string(pm.Card.Brand)
			dto.Last4 = pm.Card.Last4
			dto.ExpMonth = pm.Card.ExpMonth
			dto.ExpYear = pm.Card.ExpYear
		}
		out = append(out, dto)
	}
	return out, nil
}

// CreateSetupSession opens a hosted mode=setup checkout session carrying the
// pending quote id so the webhook can resume the quote.
func (s *service) CreateSetupSession(ctx context.Context, userID, quoteID uuid.UUID) (*SetupSessionDTO, error) {
	if quoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id is required")
	}
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSetup)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
	}
	params.AddMetadata(PendingQuoteMetadataKey, quoteID.String())

	sess, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, wrapStripeErr(err, "creating setup session")
	}
	return &SetupSessionDTO{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreateSetupIntent mints an off_session setup intent for in-app capture.
func (s *service) CreateSetupIntent(ctx context.Context, userID uuid.UUID) (*SetupIntentDTO, error) {
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateSetupIntent(ctx, &stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
		Usage:    stripe.String(string(stripe.SetupIntentUsageOffSession)),
	})
	if err != nil {
		return nil, wrapStripeErr(err, "creating setup intent")
	}
	return &SetupIntentDTO{IntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// VerifyOwnership confirms the payment method belongs to the gateway
// customer before it is used or detached.
func (s *service) VerifyOwnership(ctx context.Context, stripeCustomerID, paymentMethodID string) error {
	if strings.TrimSpace(paymentMethodID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}
	pm, err := s.gateway.GetPaymentMethod(ctx, paymentMethodID, nil)
	if err != nil {
		return wrapStripeErr(err, "retrieving payment method")
	}
	if pm.Customer == nil || pm.Customer.ID != stripeCustomerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment method does not belong to this customer")
	}
	return nil
}

// ConfirmSetupForMethod runs a confirmed off-session setup intent for a card
// the customer already saved, proving it is chargeable before the quote
// moves to vendor review.
func (s *service) ConfirmSetupForMethod(ctx context.Context, stripeCustomerID, paymentMethodID string) error {
	if err := s.VerifyOwnership(ctx, stripeCustomerID, paymentMethodID); err != nil {
		return err
	}
	_, err := s.gateway.CreateSetupIntent(ctx, &stripe.SetupIntentParams{
		Customer:      stripe.String(stripeCustomerID),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		Usage:         stripe.String(string(stripe.SetupIntentUsageOffSession)),
	})
	if err != nil {
		return wrapStripeErr(err, "confirming setup intent")
	}
	return nil
}

// ChargeOffSession confirms an off-session payment intent against a saved
// card. The ownership check runs before any charge attempt.
func (s *service) ChargeOffSession(ctx context.Context, input ChargeInput) (*stripe.PaymentIntent, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	if err := s.VerifyOwnership(ctx, input.StripeCustomerID, input.PaymentMethodID); err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "usd"
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(input.AmountCents),
		Currency:      stripe.String(currency),
		Customer:      stripe.String(input.StripeCustomerID),
		PaymentMethod: stripe.String(input.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if input.Description != "" {
		params.Description = stripe.String(input.Description)
	}
	if input.OrderUUID != uuid.Nil {
		params.AddMetadata("order_uuid", input.OrderUUID.String())
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, wrapStripeErr(err, "confirming off-session charge")
	}
	return intent, nil
}

func (s *service) GetIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id is required")
	}
	intent, err := s.gateway.GetPaymentIntent(ctx, intentID, nil)
	if err != nil {
		return nil, wrapStripeErr(err, "fetching payment intent")
	}
	return intent, nil
}

// GetSetupIntentMethod returns the payment method a completed setup intent
// attached.
func (s *service) GetSetupIntentMethod(ctx context.Context, setupIntentID string) (string, error) {
	if strings.TrimSpace(setupIntentID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "setup intent id is required")
	}
	intent, err := s.gateway.GetSetupIntent(ctx, setupIntentID, nil)
	if err != nil {
		return "", wrapStripeErr(err, "fetching setup intent")
	}
	if intent.PaymentMethod == nil {
		return "", nil
	}
	return intent.PaymentMethod.ID, nil
}

func (s *service) DetachMethod(ctx context.Context, userID uuid.UUID, paymentMethodID string) error {
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.VerifyOwnership(ctx, customerID, paymentMethodID); err != nil {
		return err
	}
	if _, err := s.gateway.DetachPaymentMethod(ctx, paymentMethodID, nil); err != nil {
		return wrapStripeErr(err, "detaching payment method")
	}
	return nil
}

// CancelIntent is the compensation hook for canceled orders.
func (s *service) CancelIntent(ctx context.Context, intentID string) error {
	if strings.TrimSpace(intentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "intent id is required")
	}
	if _, err := s.gateway.CancelPaymentIntent(ctx, intentID, nil); err != nil {
		return wrapStripeErr(err, "canceling payment intent")
	}
	return nil
}

// wrapStripeErr maps gateway failures onto the error taxonomy. Card declines
// are the caller's problem (422), everything else is an upstream failure.
func wrapStripeErr(err error, msg string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "card was declined")
		}
		if stripeErr.HTTPStatusCode == 404 {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msg)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
