package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/internal/quotes"
	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	"github.com/laundrylink/laundrylink-backend/pkg/outbox"
)

type stubQuotes struct {
	quote        *models.DeliveryQuote
	pmID         string
	pmStatus     enums.QuoteStatus
	statusUpdate *enums.QuoteStatus
}

func (s *stubQuotes) WithTx(tx *gorm.DB) quotes.Repository { return s }

func (s *stubQuotes) Create(ctx context.Context, quote *models.DeliveryQuote) error { return nil }

func (s *stubQuotes) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error) {
	return s.FindByIDForUpdate(ctx, id)
}

func (s *stubQuotes) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error) {
	if s.quote == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.quote, nil
}

func (s *stubQuotes) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) error {
	s.statusUpdate = &status
	return nil
}

func (s *stubQuotes) SetPaymentMethod(ctx context.Context, id uuid.UUID, paymentMethodID string, status enums.QuoteStatus) error {
	s.pmID = paymentMethodID
	s.pmStatus = status
	return nil
}

func (s *stubQuotes) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryQuote, error) {
	return nil, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubSetup struct{ method string }

func (s *stubSetup) GetSetupIntentMethod(ctx context.Context, setupIntentID string) (string, error) {
	return s.method, nil
}

type stubStore struct{ keys map[string]bool }

func newStubStore() *stubStore { return &stubStore{keys: map[string]bool{}} }

func (s *stubStore) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (s *stubStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *stubStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (s *stubStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

type fixture struct {
	quotes  *stubQuotes
	emitter *stubEmitter
	setup   *stubSetup
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		quotes:  &stubQuotes{},
		emitter: &stubEmitter{},
		setup:   &stubSetup{method: "pm_new"},
	}
	guard, err := NewIdempotencyGuard(newStubStore(), time.Hour, "stripe-webhook")
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Quotes: f.quotes,
		Tx:     stubTx{},
		Outbox: f.emitter,
		Setup:  f.setup,
		Guard:  guard,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func sessionEvent(t *testing.T, id string, session stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   id,
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func awaitingQuote() *models.DeliveryQuote {
	return &models.DeliveryQuote{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		StoreID:    uuid.New(),
		Status:     enums.QuoteStatusAwaitingPaymentSetup,
		Expires:    time.Now().Add(10 * time.Minute),
	}
}

func TestHandleEventMovesQuoteToPending(t *testing.T) {
	f := newFixture(t)
	f.quotes.quote = awaitingQuote()

	event := sessionEvent(t, "evt_1", stripe.CheckoutSession{
		ID:          "cs_1",
		Mode:        stripe.CheckoutSessionModeSetup,
		Metadata:    map[string]string{"pending_quote_id": f.quotes.quote.ID.String()},
		SetupIntent: &stripe.SetupIntent{ID: "seti_1"},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	assert.Equal(t, "pm_new", f.quotes.pmID)
	assert.Equal(t, enums.QuoteStatusPending, f.quotes.pmStatus)
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, enums.EventQuoteReadyForReview, f.emitter.events[0].EventType)
}

func TestHandleEventDuplicateStatusNoop(t *testing.T) {
	f := newFixture(t)
	f.quotes.quote = awaitingQuote()
	f.quotes.quote.Status = enums.QuoteStatusPending

	event := sessionEvent(t, "evt_1", stripe.CheckoutSession{
		ID:       "cs_1",
		Mode:     stripe.CheckoutSessionModeSetup,
		Metadata: map[string]string{"pending_quote_id": f.quotes.quote.ID.String()},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	assert.Empty(t, f.quotes.pmID)
	assert.Empty(t, f.emitter.events)
}

func TestHandleEventDeduplicatesByEventID(t *testing.T) {
	f := newFixture(t)
	f.quotes.quote = awaitingQuote()

	event := sessionEvent(t, "evt_1", stripe.CheckoutSession{
		ID:       "cs_1",
		Mode:     stripe.CheckoutSessionModeSetup,
		Metadata: map[string]string{"pending_quote_id": f.quotes.quote.ID.String()},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	assert.Len(t, f.emitter.events, 1)
}

func TestHandleEventMissingMetadata(t *testing.T) {
	f := newFixture(t)
	f.quotes.quote = awaitingQuote()

	event := sessionEvent(t, "evt_1", stripe.CheckoutSession{
		ID:   "cs_1",
		Mode: stripe.CheckoutSessionModeSetup,
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Empty(t, f.emitter.events)
}

func TestHandleEventUnknownQuote(t *testing.T) {
	f := newFixture(t)

	event := sessionEvent(t, "evt_1", stripe.CheckoutSession{
		ID:       "cs_1",
		Mode:     stripe.CheckoutSessionModeSetup,
		Metadata: map[string]string{"pending_quote_id": uuid.NewString()},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Empty(t, f.emitter.events)
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.HandleEvent(context.Background(), &stripe.Event{ID: "evt_1", Type: "invoice.paid"}))
	assert.Empty(t, f.emitter.events)
}

func TestHandleEventIgnoresPaymentModeSessions(t *testing.T) {
	f := newFixture(t)
	f.quotes.quote = awaitingQuote()

	event := sessionEvent(t, "evt_1", stripe.CheckoutSession{
		ID:       "cs_1",
		Mode:     stripe.CheckoutSessionModePayment,
		Metadata: map[string]string{"pending_quote_id": f.quotes.quote.ID.String()},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Empty(t, f.emitter.events)
}
