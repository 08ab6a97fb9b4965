package paymentmethods

// PaymentMethodDTO is the card summary returned to clients.
type PaymentMethodDTO struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
}

// SetupSessionDTO carries the hosted checkout session used to save a card.
type SetupSessionDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// SetupIntentDTO carries the client secret for in-app card capture.
type SetupIntentDTO struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}
