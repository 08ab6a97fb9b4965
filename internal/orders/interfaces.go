package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// Repository defines persistence operations for orders, deliveries and the
// delivery attempt journal.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByUUID(ctx context.Context, externalUUID uuid.UUID) (*models.Order, error)
	FindOrderByUUIDForUpdate(ctx context.Context, externalUUID uuid.UUID) (*models.Order, error)
	FindOrderForDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error

	CreateDelivery(ctx context.Context, delivery *models.Delivery) error
	FindDeliveryByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindDeliveryByUID(ctx context.Context, deliveryUID string) (*models.Delivery, error)
	FindDeliveryByUIDForUpdate(ctx context.Context, deliveryUID string) (*models.Delivery, error)
	FindDeliveryByIdempotencyKey(ctx context.Context, key string) (*models.Delivery, error)
	UpdateDelivery(ctx context.Context, delivery *models.Delivery) error

	ReassignManifestToDelivery(ctx context.Context, quoteID, deliveryID uuid.UUID) error
	MarkQuoteAccepted(ctx context.Context, quoteID uuid.UUID) error

	CreateAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error
	ResolveAttempt(ctx context.Context, idempotencyKey string, at time.Time) error
	FindUnresolvedAttemptsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryAttempt, error)
}
