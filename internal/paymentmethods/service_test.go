package paymentmethods

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
)

type stubUsersRepo struct {
	user      *models.User
	findErr   error
	setErr    error
	setCalled bool
	setID     string
}

func (s *stubUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user, nil
}

func (s *stubUsersRepo) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	s.setCalled = true
	s.setID = customerID
	return s.setErr
}

type stubGateway struct {
	customer *stripe.Customer
	methods  []*stripe.PaymentMethod
	method   *stripe.PaymentMethod
	session  *stripe.CheckoutSession
	setup    *stripe.SetupIntent
	intent   *stripe.PaymentIntent
	err      error

	createdCustomer  bool
	chargeParams     *stripe.PaymentIntentParams
	sessionParams    *stripe.CheckoutSessionParams
	detachedMethodID string
	canceledIntentID string
}

func (g *stubGateway) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	g.createdCustomer = true
	if g.err != nil {
		return nil, g.err
	}
	return g.customer, nil
}

func (g *stubGateway) ListPaymentMethods(ctx context.Context, params *stripe.PaymentMethodListParams) ([]*stripe.PaymentMethod, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.methods, nil
}

func (g *stubGateway) GetPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.method, nil
}

func (g *stubGateway) DetachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodDetachParams) (*stripe.PaymentMethod, error) {
	g.detachedMethodID = id
	return g.method, nil
}

func (g *stubGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.sessionParams = params
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

func (g *stubGateway) CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.setup, nil
}

func (g *stubGateway) GetSetupIntent(ctx context.Context, id string, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.setup, nil
}

func (g *stubGateway) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	g.chargeParams = params
	if g.err != nil {
		return nil, g.err
	}
	return g.intent, nil
}

func (g *stubGateway) GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.intent, nil
}

func (g *stubGateway) CancelPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	g.canceledIntentID = id
	if g.err != nil {
		return nil, g.err
	}
	return g.intent, nil
}

func userWithCustomer(customerID *string) *models.User {
	return &models.User{
		ID:               uuid.New(),
		Email:            "jordan@example.com",
		FullName:         "Jordan Lee",
		StripeCustomerID: customerID,
	}
}

func newTestService(t *testing.T, users usersRepository, gw StripeGateway) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Users:      users,
		Gateway:    gw,
		SuccessURL: "https://app.example.com/setup/success",
		CancelURL:  "https://app.example.com/setup/cancel",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestEnsureCustomerReturnsStoredID(t *testing.T) {
	existing := "cus_existing"
	gw := &stubGateway{}
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(&existing)}, gw)

	got, err := svc.EnsureCustomer(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ensure customer: %v", err)
	}
	if got != existing {
		t.Fatalf("expected %s, got %s", existing, got)
	}
	if gw.createdCustomer {
		t.Fatal("should not create a gateway customer when one is stored")
	}
}

func TestEnsureCustomerCreatesAndPersists(t *testing.T) {
	users := &stubUsersRepo{user: userWithCustomer(nil)}
	gw := &stubGateway{customer: &stripe.Customer{ID: "cus_new"}}
	svc := newTestService(t, users, gw)

	got, err := svc.EnsureCustomer(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ensure customer: %v", err)
	}
	if got != "cus_new" {
		t.Fatalf("expected cus_new, got %s", got)
	}
	if !users.setCalled || users.setID != "cus_new" {
		t.Fatalf("expected customer id persisted, got %q", users.setID)
	}
}

func TestEnsureCustomerUserNotFound(t *testing.T) {
	svc := newTestService(t, &stubUsersRepo{findErr: gorm.ErrRecordNotFound}, &stubGateway{})

	_, err := svc.EnsureCustomer(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListSavedMethodsMapsCards(t *testing.T) {
	existing := "cus_1"
	gw := &stubGateway{methods: []*stripe.PaymentMethod{
		{
			ID: "pm_1",
			Card: &stripe.PaymentMethodCard{
				Brand:    stripe.PaymentMethodCardBrandVisa,
				Last4:    "4242",
				ExpMonth: 12,
				ExpYear:  2030,
			},
		},
	}}
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(&existing)}, gw)

	out, err := svc.ListSavedMethods(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("list methods: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 method, got %d", len(out))
	}
	if out[0].ID != "pm_1" || out[0].Last4 != "4242" || out[0].Brand != "visa" {
		t.Fatalf("unexpected dto %+v", out[0])
	}
}

func TestCreateSetupSessionCarriesQuoteMetadata(t *testing.T) {
	existing := "cus_1"
	quoteID := uuid.New()
	gw := &stubGateway{session: &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}}
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(&existing)}, gw)

	out, err := svc.CreateSetupSession(context.Background(), uuid.New(), quoteID)
	if err != nil {
		t.Fatalf("create setup session: %v", err)
	}
	if out.SessionID != "cs_1" || out.URL == "" {
		t.Fatalf("unexpected dto %+v", out)
	}
	if gw.sessionParams == nil {
		t.Fatal("expected session params captured")
	}
	if got := gw.sessionParams.Metadata[PendingQuoteMetadataKey]; got != quoteID.String() {
		t.Fatalf("expected pending_quote_id %s, got %q", quoteID, got)
	}
	if gw.sessionParams.Mode == nil || *gw.sessionParams.Mode != string(stripe.CheckoutSessionModeSetup) {
		t.Fatal("expected mode=setup")
	}
}

func TestVerifyOwnershipForbidden(t *testing.T) {
	existing := "cus_1"
	gw := &stubGateway{method: &stripe.PaymentMethod{
		ID:       "pm_1",
		Customer: &stripe.Customer{ID: "cus_other"},
	}}
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(&existing)}, gw)

	err := svc.VerifyOwnership(context.Background(), "cus_1", "pm_1")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestChargeOffSessionConfirmsIntent(t *testing.T) {
	gw := &stubGateway{
		method: &stripe.PaymentMethod{ID: "pm_1", Customer: &stripe.Customer{ID: "cus_1"}},
		intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded},
	}
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(nil)}, gw)

	intent, err := svc.ChargeOffSession(context.Background(), ChargeInput{
		StripeCustomerID: "cus_1",
		PaymentMethodID:  "pm_1",
		AmountCents:      2350,
		Currency:         "USD",
		OrderUUID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if intent.ID != "pi_1" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if gw.chargeParams == nil {
		t.Fatal("expected charge params captured")
	}
	if gw.chargeParams.OffSession == nil || !*gw.chargeParams.OffSession {
		t.Fatal("expected off_session charge")
	}
	if gw.chargeParams.Currency == nil || *gw.chargeParams.Currency != "usd" {
		t.Fatalf("expected lowercased currency, got %v", gw.chargeParams.Currency)
	}
}

func TestChargeOffSessionRejectsForeignCard(t *testing.T) {
	gw := &stubGateway{
		method: &stripe.PaymentMethod{ID: "pm_1", Customer: &stripe.Customer{ID: "cus_other"}},
	}
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(nil)}, gw)

	_, err := svc.ChargeOffSession(context.Background(), ChargeInput{
		StripeCustomerID: "cus_1",
		PaymentMethodID:  "pm_1",
		AmountCents:      1000,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if gw.chargeParams != nil {
		t.Fatal("charge must not be attempted for a foreign card")
	}
}

func TestChargeOffSessionValidatesAmount(t *testing.T) {
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(nil)}, &stubGateway{})

	_, err := svc.ChargeOffSession(context.Background(), ChargeInput{AmountCents: 0})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWrapStripeErrCardDecline(t *testing.T) {
	declined := &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}
	err := wrapStripeErr(declined, "charging")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for decline, got %v", err)
	}

	other := errors.New("network down")
	err = wrapStripeErr(other, "charging")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestDetachMethodChecksOwnership(t *testing.T) {
	existing := "cus_1"
	gw := &stubGateway{
		method: &stripe.PaymentMethod{ID: "pm_1", Customer: &stripe.Customer{ID: "cus_1"}},
	}
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(&existing)}, gw)

	if err := svc.DetachMethod(context.Background(), uuid.New(), "pm_1"); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if gw.detachedMethodID != "pm_1" {
		t.Fatalf("expected detach of pm_1, got %q", gw.detachedMethodID)
	}
}

func TestCancelIntentRequiresID(t *testing.T) {
	svc := newTestService(t, &stubUsersRepo{user: userWithCustomer(nil)}, &stubGateway{})

	err := svc.CancelIntent(context.Background(), " ")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
