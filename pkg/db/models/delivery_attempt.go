package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeliveryAttempt records a courier delivery creation before the local
// transaction commits. If the courier call succeeds but the commit fails,
// the row is the only trace of the courier-side delivery; the reconcile
// sweep re-persists from it. Resolved rows are kept for auditing.
type DeliveryAttempt struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	IdempotencyKey string          `gorm:"column:idempotency_key;not null;uniqueIndex"`
	QuoteID        uuid.UUID       `gorm:"column:quote_id;type:uuid;not null;index"`
	DeliveryUID    *string         `gorm:"column:delivery_uid"`
	RawResponse    json.RawMessage `gorm:"column:raw_response;type:jsonb"`
	ResolvedAt     *time.Time      `gorm:"column:resolved_at"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
