package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/internal/paymentmethods"
	"github.com/laundrylink/laundrylink-backend/pkg/config"
	"github.com/laundrylink/laundrylink-backend/pkg/courier"
	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/outbox"
)

type stubQuoteRepo struct {
	created      *models.DeliveryQuote
	findResult   *models.DeliveryQuote
	findErr      error
	statusUpdate *enums.QuoteStatus
	pmID         string
	pmStatus     enums.QuoteStatus
	stale        []models.DeliveryQuote
}

func (s *stubQuoteRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubQuoteRepo) Create(ctx context.Context, quote *models.DeliveryQuote) error {
	quote.ID = uuid.New()
	s.created = quote
	return nil
}

func (s *stubQuoteRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.findResult, nil
}

func (s *stubQuoteRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error) {
	return s.FindByID(ctx, id)
}

func (s *stubQuoteRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) error {
	s.statusUpdate = &status
	return nil
}

func (s *stubQuoteRepo) SetPaymentMethod(ctx context.Context, id uuid.UUID, paymentMethodID string, status enums.QuoteStatus) error {
	s.pmID = paymentMethodID
	s.pmStatus = status
	return nil
}

func (s *stubQuoteRepo) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryQuote, error) {
	return s.stale, nil
}

type stubCourier struct {
	responses []*courier.QuoteResponse
	requests  []courier.QuoteRequest
	err       error
}

func (s *stubCourier) CreateQuote(ctx context.Context, req courier.QuoteRequest) (*courier.QuoteResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

type stubPayments struct {
	customerID string
	methods    []paymentmethods.PaymentMethodDTO
	sessionURL string
	confirmed  []string
	confirmErr error
}

func (s *stubPayments) EnsureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.customerID, nil
}

func (s *stubPayments) ListSavedMethods(ctx context.Context, userID uuid.UUID) ([]paymentmethods.PaymentMethodDTO, error) {
	return s.methods, nil
}

func (s *stubPayments) CreateSetupSession(ctx context.Context, userID, quoteID uuid.UUID) (*paymentmethods.SetupSessionDTO, error) {
	return &paymentmethods.SetupSessionDTO{SessionID: "cs_test", URL: s.sessionURL}, nil
}

func (s *stubPayments) ConfirmSetupForMethod(ctx context.Context, stripeCustomerID, paymentMethodID string) error {
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmed = append(s.confirmed, paymentMethodID)
	return nil
}

type stubStores struct {
	store *models.Store
	err   error
}

func (s *stubStores) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.store, nil
}

type stubUsers struct{ user *models.User }

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.user, nil
}

type stubOrchestrator struct {
	order *models.Order
	err   error
	calls int
}

func (s *stubOrchestrator) AcceptAndFulfill(ctx context.Context, tx *gorm.DB, quote *models.DeliveryQuote) (*models.Order, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	quote.Status = enums.QuoteStatusAccepted
	return s.order, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type quoteFixture struct {
	repo     *stubQuoteRepo
	couriers *stubCourier
	payments *stubPayments
	stores   *stubStores
	orch     *stubOrchestrator
	emitter  *stubEmitter
	svc      Service
	now      time.Time
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()
	f := &quoteFixture{
		repo: &stubQuoteRepo{},
		couriers: &stubCourier{responses: []*courier.QuoteResponse{{
			ID:       "dqt_1",
			Fee:      1250,
			Currency: "usd",
			Duration: 35,
			Expires:  time.Now().Add(15 * time.Minute),
		}}},
		payments: &stubPayments{customerID: "cus_1", sessionURL: "https://checkout.example/cs_test"},
		stores: &stubStores{store: &models.Store{
			ID:      uuid.New(),
			OwnerID: uuid.New(),
			Active:  true,
		}},
		orch:    &stubOrchestrator{order: &models.Order{ID: uuid.New()}},
		emitter: &stubEmitter{},
		now:     time.Now(),
	}
	svc, err := NewService(ServiceParams{
		Repo:         f.repo,
		Stores:       f.stores,
		Users:        &stubUsers{},
		Courier:      f.couriers,
		Payments:     f.payments,
		Orchestrator: f.orch,
		Tx:           stubTx{},
		Outbox:       f.emitter,
		Config:       config.QuotesConfig{TTL: 15 * time.Minute},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func validRequestInput(storeID uuid.UUID) RequestQuoteInput {
	return RequestQuoteInput{
		CustomerID:     uuid.New(),
		StoreID:        storeID,
		ServiceType:    enums.ServiceTypePickup,
		PickupAddress:  "12 Oak St, Springfield",
		PickupPhone:    "+15551230001",
		DropoffAddress: "900 Main St, Springfield",
		DropoffPhone:   "+15551230002",
		ManifestItems: []ManifestItemInput{{
			Name:     "laundry bag",
			Quantity: 2,
			Size:     enums.ManifestSizeMedium,
			Price:    decimal.NewFromInt(20),
		}},
	}
}

func TestRequestQuoteSavedCardGoesPending(t *testing.T) {
	f := newQuoteFixture(t)
	f.payments.methods = []paymentmethods.PaymentMethodDTO{{ID: "pm_1"}}

	result, err := f.svc.RequestQuote(context.Background(), validRequestInput(f.stores.store.ID))
	require.NoError(t, err)
	require.NotNil(t, f.repo.created)

	assert.Equal(t, enums.QuoteStatusPending, f.repo.created.Status)
	assert.Nil(t, result.CheckoutURL)
	assert.Equal(t, "12.5", f.repo.created.Fee.String())
	assert.Equal(t, "40", f.repo.created.ManifestTotalValue.String())

	require.Len(t, f.emitter.events, 2)
	assert.Equal(t, enums.EventQuoteRequested, f.emitter.events[0].EventType)
	assert.Equal(t, enums.EventQuoteReadyForReview, f.emitter.events[1].EventType)
}

func TestRequestQuoteNoCardAwaitsSetup(t *testing.T) {
	f := newQuoteFixture(t)

	result, err := f.svc.RequestQuote(context.Background(), validRequestInput(f.stores.store.ID))
	require.NoError(t, err)

	assert.Equal(t, enums.QuoteStatusAwaitingPaymentSetup, f.repo.created.Status)
	require.NotNil(t, result.CheckoutURL)
	assert.Equal(t, "https://checkout.example/cs_test", *result.CheckoutURL)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, enums.EventQuoteRequested, f.emitter.events[0].EventType)
}

func TestRequestQuoteFullServicePricesBothLegs(t *testing.T) {
	f := newQuoteFixture(t)
	f.couriers.responses = []*courier.QuoteResponse{
		{ID: "dqt_out", Fee: 1000, Currency: "usd", Expires: time.Now().Add(10 * time.Minute)},
		{ID: "dqt_back", Fee: 800, Currency: "usd"},
	}
	input := validRequestInput(f.stores.store.ID)
	input.ServiceType = enums.ServiceTypeFullService

	_, err := f.svc.RequestQuote(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, f.couriers.requests, 2)
	assert.Equal(t, input.PickupAddress, f.couriers.requests[0].PickupAddress)
	assert.Equal(t, input.DropoffAddress, f.couriers.requests[1].PickupAddress)

	assert.Equal(t, "18", f.repo.created.Fee.String())
	require.NotNil(t, f.repo.created.SecondQuoteID)
	assert.Equal(t, "dqt_back", *f.repo.created.SecondQuoteID)
}

func TestRequestQuoteBadPhoneRejected(t *testing.T) {
	f := newQuoteFixture(t)
	input := validRequestInput(f.stores.store.ID)
	input.PickupPhone = "555-1234"

	_, err := f.svc.RequestQuote(context.Background(), input)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	assert.Nil(t, f.repo.created)
}

func TestRequestQuoteInactiveStore(t *testing.T) {
	f := newQuoteFixture(t)
	f.stores.store.Active = false

	_, err := f.svc.RequestQuote(context.Background(), validRequestInput(f.stores.store.ID))

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestSelectPaymentMethodMovesToPending(t *testing.T) {
	f := newQuoteFixture(t)
	customerID := uuid.New()
	f.repo.findResult = &models.DeliveryQuote{
		ID:         uuid.New(),
		CustomerID: customerID,
		StoreID:    f.stores.store.ID,
		Status:     enums.QuoteStatusAwaitingPaymentSetup,
		Expires:    time.Now().Add(5 * time.Minute),
	}

	dto, err := f.svc.SelectPaymentMethod(context.Background(), f.repo.findResult.ID, customerID, "pm_9")
	require.NoError(t, err)

	assert.Equal(t, enums.QuoteStatusPending, dto.Status)
	assert.Equal(t, "pm_9", f.repo.pmID)
	assert.Equal(t, enums.QuoteStatusPending, f.repo.pmStatus)
	assert.Equal(t, []string{"pm_9"}, f.payments.confirmed)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, enums.EventQuoteReadyForReview, f.emitter.events[0].EventType)
}

func TestSelectPaymentMethodWrongCustomer(t *testing.T) {
	f := newQuoteFixture(t)
	f.repo.findResult = &models.DeliveryQuote{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Status:     enums.QuoteStatusAwaitingPaymentSetup,
		Expires:    time.Now().Add(5 * time.Minute),
	}

	_, err := f.svc.SelectPaymentMethod(context.Background(), f.repo.findResult.ID, uuid.New(), "pm_9")

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeForbidden, appErr.Code())
	assert.Empty(t, f.payments.confirmed)
}

func TestSelectPaymentMethodExpiredQuote(t *testing.T) {
	f := newQuoteFixture(t)
	customerID := uuid.New()
	f.repo.findResult = &models.DeliveryQuote{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     enums.QuoteStatusAwaitingPaymentSetup,
		Expires:    time.Now().Add(-time.Minute),
	}

	_, err := f.svc.SelectPaymentMethod(context.Background(), f.repo.findResult.ID, customerID, "pm_9")

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	require.NotNil(t, f.repo.statusUpdate)
	assert.Equal(t, enums.QuoteStatusExpired, *f.repo.statusUpdate)
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, enums.EventQuoteExpired, f.emitter.events[0].EventType)
}

func decideFixture(t *testing.T) (*quoteFixture, DecideInput) {
	f := newQuoteFixture(t)
	storeID := f.stores.store.ID
	f.repo.findResult = &models.DeliveryQuote{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		StoreID:    storeID,
		Status:     enums.QuoteStatusPending,
		Expires:    time.Now().Add(5 * time.Minute),
	}
	return f, DecideInput{
		QuoteID:      f.repo.findResult.ID,
		ActorUserID:  f.stores.store.OwnerID,
		ActorStoreID: storeID,
		Decision:     enums.QuoteDecisionAccept,
	}
}

func TestDecideAcceptRunsOrchestrator(t *testing.T) {
	f, input := decideFixture(t)

	dto, err := f.svc.Decide(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, f.orch.calls)
	assert.Equal(t, enums.QuoteStatusAccepted, dto.Status)
}

func TestDecideRejectEmitsEvent(t *testing.T) {
	f, input := decideFixture(t)
	input.Decision = enums.QuoteDecisionReject

	dto, err := f.svc.Decide(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, enums.QuoteStatusRejected, dto.Status)
	assert.Equal(t, 0, f.orch.calls)
	require.NotNil(t, f.repo.statusUpdate)
	assert.Equal(t, enums.QuoteStatusRejected, *f.repo.statusUpdate)
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, enums.EventQuoteRejected, f.emitter.events[0].EventType)
}

func TestDecideForeignStoreForbidden(t *testing.T) {
	f, input := decideFixture(t)
	input.ActorStoreID = uuid.New()

	_, err := f.svc.Decide(context.Background(), input)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeForbidden, appErr.Code())
	assert.Equal(t, 0, f.orch.calls)
}

func TestDecideNonPendingConflicts(t *testing.T) {
	f, input := decideFixture(t)
	f.repo.findResult.Status = enums.QuoteStatusRejected

	_, err := f.svc.Decide(context.Background(), input)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestDecideExpiredAtDecisionTime(t *testing.T) {
	f, input := decideFixture(t)
	f.repo.findResult.Expires = time.Now().Add(-time.Second)

	_, err := f.svc.Decide(context.Background(), input)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	require.NotNil(t, f.repo.statusUpdate)
	assert.Equal(t, enums.QuoteStatusExpired, *f.repo.statusUpdate)
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, enums.EventQuoteExpired, f.emitter.events[0].EventType)
	assert.Equal(t, 0, f.orch.calls)
}

func TestExpireStaleSweep(t *testing.T) {
	f := newQuoteFixture(t)
	f.repo.stale = []models.DeliveryQuote{
		{ID: uuid.New(), Status: enums.QuoteStatusPending},
		{ID: uuid.New(), Status: enums.QuoteStatusPending},
	}

	count, err := f.svc.ExpireStale(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, count)
	require.Len(t, f.emitter.events, 2)
	for _, event := range f.emitter.events {
		assert.Equal(t, enums.EventQuoteExpired, event.EventType)
	}
}

func TestGetByIDVendorAccess(t *testing.T) {
	f := newQuoteFixture(t)
	f.repo.findResult = &models.DeliveryQuote{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		StoreID:    f.stores.store.ID,
		Status:     enums.QuoteStatusPending,
	}

	dto, err := f.svc.GetByID(context.Background(), f.repo.findResult.ID, f.stores.store.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, f.repo.findResult.ID, dto.ID)

	_, err = f.svc.GetByID(context.Background(), f.repo.findResult.ID, uuid.New())
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeForbidden, appErr.Code())
}
