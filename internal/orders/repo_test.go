package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE delivery_quotes (
  id TEXT PRIMARY KEY,
  service_type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  quote_id TEXT,
  second_quote_id TEXT,
  customer_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  pickup_address TEXT NOT NULL,
  pickup_lat REAL,
  pickup_lng REAL,
  pickup_phone TEXT NOT NULL,
  dropoff_address TEXT NOT NULL,
  dropoff_lat REAL,
  dropoff_lng REAL,
  dropoff_phone TEXT NOT NULL,
  manifest_total_value NUMERIC NOT NULL DEFAULT 0,
  fee NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  duration_minutes INTEGER,
  pickup_duration_minutes INTEGER,
  dropoff_eta DATETIME,
  dropoff_deadline DATETIME,
  payment_method_id TEXT,
  expires DATETIME NOT NULL,
  saved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE deliveries (
  id TEXT PRIMARY KEY,
  delivery_uid TEXT,
  quote_id TEXT,
  parent_delivery_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  pickup_name TEXT NOT NULL,
  pickup_address TEXT NOT NULL,
  pickup_phone TEXT NOT NULL,
  pickup_lat REAL,
  pickup_lng REAL,
  dropoff_name TEXT NOT NULL,
  dropoff_address TEXT NOT NULL,
  dropoff_phone TEXT NOT NULL,
  dropoff_lat REAL,
  dropoff_lng REAL,
  fee NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  tracking_url TEXT,
  courier_name TEXT,
  courier_phone TEXT,
  courier_vehicle TEXT,
  courier_imminent INTEGER NOT NULL DEFAULT 0,
  idempotency_key TEXT NOT NULL UNIQUE,
  raw_response TEXT,
  pickup_eta DATETIME,
  dropoff_eta DATETIME,
  courier_updated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  uuid TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_setup',
  pickup_address TEXT NOT NULL,
  pickup_lat REAL,
  pickup_lng REAL,
  dropoff_address TEXT NOT NULL,
  dropoff_lat REAL,
  dropoff_lng REAL,
  weight_in_pounds NUMERIC,
  service_charge_cents INTEGER,
  delivery_fee_cents INTEGER,
  final_total_cents INTEGER,
  stripe_customer_id TEXT,
  stripe_payment_method_id TEXT,
  stripe_payment_intent_id TEXT,
  pickup_delivery_id TEXT,
  return_delivery_id TEXT,
  customer_note TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE manifest_items (
  id TEXT PRIMARY KEY,
  delivery_quote_id TEXT,
  delivery_id TEXT,
  order_id TEXT,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  size TEXT NOT NULL DEFAULT 'small',
  dimensions TEXT,
  weight NUMERIC,
  price NUMERIC NOT NULL DEFAULT 0,
  vat_percentage NUMERIC,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE delivery_attempts (
  id TEXT PRIMARY KEY,
  idempotency_key TEXT NOT NULL UNIQUE,
  quote_id TEXT NOT NULL,
  delivery_uid TEXT,
  raw_response TEXT,
  resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, order *models.Order) {
	t.Helper()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.UUID == uuid.Nil {
		order.UUID = uuid.New()
	}
	require.NoError(t, db.Create(order).Error)
}

func seedDelivery(t *testing.T, db *gorm.DB, delivery *models.Delivery) {
	t.Helper()
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	require.NoError(t, db.Create(delivery).Error)
}

func TestRepositoryOrderRoundTrip(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:             uuid.New(),
		UUID:           uuid.New(),
		UserID:         uuid.New(),
		StoreID:        uuid.New(),
		Status:         enums.OrderStatusCardSaved,
		PickupAddress:  "12 Oak St",
		DropoffAddress: "900 Main St",
	}
	require.NoError(t, repo.CreateOrder(ctx, order))

	found, err := repo.FindOrderByUUID(ctx, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, enums.OrderStatusCardSaved, found.Status)

	require.NoError(t, repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusProcessing))
	found, err = repo.FindOrderByUUID(ctx, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, found.Status)
}

func TestRepositoryFindOrderForDelivery(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	pickupID := uuid.New()
	returnID := uuid.New()
	order := &models.Order{
		UserID:           uuid.New(),
		StoreID:          uuid.New(),
		Status:           enums.OrderStatusCharged,
		PickupAddress:    "12 Oak St",
		DropoffAddress:   "900 Main St",
		PickupDeliveryID: &pickupID,
		ReturnDeliveryID: &returnID,
	}
	seedOrder(t, db, order)

	byPickup, err := repo.FindOrderForDelivery(ctx, pickupID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byPickup.ID)

	byReturn, err := repo.FindOrderForDelivery(ctx, returnID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byReturn.ID)

	_, err = repo.FindOrderForDelivery(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryDeliveryLookups(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	uid := "del_1"
	delivery := &models.Delivery{
		DeliveryUID:    &uid,
		Status:         enums.DeliveryStatusPending,
		PickupName:     "Pat Jordan",
		PickupAddress:  "12 Oak St",
		PickupPhone:    "+15551230001",
		DropoffName:    "Sunrise Laundromat",
		DropoffAddress: "900 Main St",
		DropoffPhone:   "+15551230002",
		Fee:            decimal.RequireFromString("12.50"),
		Currency:       enums.CurrencyUSD,
		IdempotencyKey: "key-1",
	}
	seedDelivery(t, db, delivery)

	byUID, err := repo.FindDeliveryByUID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, delivery.ID, byUID.ID)

	byKey, err := repo.FindDeliveryByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, delivery.ID, byKey.ID)

	_, err = repo.FindDeliveryByIdempotencyKey(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryReassignManifestToDelivery(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	quoteID := uuid.New()
	deliveryID := uuid.New()
	other := uuid.New()
	for _, owner := range []uuid.UUID{quoteID, quoteID, other} {
		ownerID := owner
		item := &models.ManifestItem{
			ID:              uuid.New(),
			DeliveryQuoteID: &ownerID,
			Name:            "laundry bag",
			Quantity:        1,
			Size:            enums.ManifestSizeSmall,
			Price:           decimal.NewFromInt(20),
		}
		require.NoError(t, db.Create(item).Error)
	}

	require.NoError(t, repo.ReassignManifestToDelivery(ctx, quoteID, deliveryID))

	var moved int64
	require.NoError(t, db.Model(&models.ManifestItem{}).
		Where("delivery_id = ? AND delivery_quote_id IS NULL", deliveryID).
		Count(&moved).Error)
	assert.Equal(t, int64(2), moved)

	var untouched int64
	require.NoError(t, db.Model(&models.ManifestItem{}).
		Where("delivery_quote_id = ?", other).
		Count(&untouched).Error)
	assert.Equal(t, int64(1), untouched)
}

func TestRepositoryAttemptLifecycle(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	attempt := &models.DeliveryAttempt{
		ID:             uuid.New(),
		IdempotencyKey: "key-1",
		QuoteID:        uuid.New(),
	}
	require.NoError(t, repo.CreateAttempt(ctx, attempt))
	// backdate so the cutoff catches it
	require.NoError(t, db.Model(&models.DeliveryAttempt{}).
		Where("id = ?", attempt.ID).
		UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)

	unresolved, err := repo.FindUnresolvedAttemptsBefore(ctx, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "key-1", unresolved[0].IdempotencyKey)

	require.NoError(t, repo.ResolveAttempt(ctx, "key-1", time.Now()))

	unresolved, err = repo.FindUnresolvedAttemptsBefore(ctx, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
}

func TestRepositoryMarkQuoteAccepted(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	quote := &models.DeliveryQuote{
		ID:             uuid.New(),
		ServiceType:    enums.ServiceTypePickup,
		Status:         enums.QuoteStatusPending,
		CustomerID:     uuid.New(),
		StoreID:        uuid.New(),
		PickupAddress:  "12 Oak St",
		PickupPhone:    "+15551230001",
		DropoffAddress: "900 Main St",
		DropoffPhone:   "+15551230002",
		Expires:        time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, db.Create(quote).Error)

	require.NoError(t, repo.MarkQuoteAccepted(ctx, quote.ID))

	var status string
	require.NoError(t, db.Model(&models.DeliveryQuote{}).
		Where("id = ?", quote.ID).
		Pluck("status", &status).Error)
	assert.Equal(t, string(enums.QuoteStatusAccepted), status)
}
