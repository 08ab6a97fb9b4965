package courier

import (
	"encoding/json"
	"time"
)

// QuoteRequest is the payload for a delivery quote call. Latitude/longitude
// are optional refinements; the courier geocodes addresses when absent.
type QuoteRequest struct {
	PickupAddress      string   `json:"pickup_address"`
	DropoffAddress     string   `json:"dropoff_address"`
	PickupLatitude     *float64 `json:"pickup_latitude,omitempty"`
	PickupLongitude    *float64 `json:"pickup_longitude,omitempty"`
	DropoffLatitude    *float64 `json:"dropoff_latitude,omitempty"`
	DropoffLongitude   *float64 `json:"dropoff_longitude,omitempty"`
	PickupPhoneNumber  string   `json:"pickup_phone_number"`
	DropoffPhoneNumber string   `json:"dropoff_phone_number"`
	ManifestTotalValue int64    `json:"manifest_total_value"`
}

// QuoteResponse is the courier's priced offer for one leg.
type QuoteResponse struct {
	ID              string    `json:"id"`
	Fee             int64     `json:"fee"`
	Currency        string    `json:"currency"`
	CurrencyType    string    `json:"currency_type"`
	Duration        int       `json:"duration"`
	PickupDuration  int       `json:"pickup_duration"`
	DropoffETA      time.Time `json:"dropoff_eta"`
	DropoffDeadline time.Time `json:"dropoff_deadline"`
	Expires         time.Time `json:"expires"`
}

// ManifestItem describes one item handed to the courier.
type ManifestItem struct {
	Name       string      `json:"name"`
	Quantity   int         `json:"quantity"`
	Size       string      `json:"size"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	Price      int64       `json:"price,omitempty"`
	Weight     int64       `json:"weight,omitempty"`
}

// Dimensions are item measurements in centimeters.
type Dimensions struct {
	Length int `json:"length"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DeliveryRequest creates a delivery, optionally against a prior quote.
type DeliveryRequest struct {
	QuoteID             string         `json:"quote_id,omitempty"`
	PickupName          string         `json:"pickup_name"`
	PickupAddress       string         `json:"pickup_address"`
	PickupPhoneNumber   string         `json:"pickup_phone_number"`
	DropoffName         string         `json:"dropoff_name"`
	DropoffAddress      string         `json:"dropoff_address"`
	DropoffPhoneNumber  string         `json:"dropoff_phone_number"`
	ManifestItems       []ManifestItem `json:"manifest_items"`
	DropoffNotes        string         `json:"dropoff_notes,omitempty"`
	PickupNotes         string         `json:"pickup_notes,omitempty"`
	ManifestTotalValue  int64          `json:"manifest_total_value,omitempty"`
	ManifestReference   string         `json:"manifest_reference,omitempty"`
	IdempotencyKey      string         `json:"idempotency_key,omitempty"`
	DeliverableAction   string         `json:"deliverable_action,omitempty"`
	UndeliverableAction string         `json:"undeliverable_action,omitempty"`
}

// CourierInfo is the driver assignment block on webhook/delivery payloads.
type CourierInfo struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	VehicleType string `json:"vehicle_type"`
	ImgHref     string `json:"img_href,omitempty"`
}

// DeliveryResponse is the courier's view of a created delivery. Raw preserves
// the full provider payload for debugging and replay.
type DeliveryResponse struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Fee         int64        `json:"fee"`
	Currency    string       `json:"currency"`
	TrackingURL string       `json:"tracking_url"`
	Courier     *CourierInfo `json:"courier"`
	PickupETA   *time.Time   `json:"pickup_eta"`
	DropoffETA  *time.Time   `json:"dropoff_eta"`

	Raw json.RawMessage `json:"-"`
}
