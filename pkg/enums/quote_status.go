package enums

import "fmt"

// QuoteStatus tracks the lifecycle of a delivery quote.
type QuoteStatus string

const (
	QuoteStatusAwaitingPaymentSetup QuoteStatus = "awaiting_payment_setup"
	QuoteStatusPending              QuoteStatus = "pending"
	QuoteStatusAccepted             QuoteStatus = "accepted"
	QuoteStatusRejected             QuoteStatus = "rejected"
	QuoteStatusExpired              QuoteStatus = "expired"
)

var validQuoteStatuses = []QuoteStatus{
	QuoteStatusAwaitingPaymentSetup,
	QuoteStatusPending,
	QuoteStatusAccepted,
	QuoteStatusRejected,
	QuoteStatusExpired,
}

// String implements fmt.Stringer.
func (q QuoteStatus) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuoteStatus.
func (q QuoteStatus) IsValid() bool {
	for _, candidate := range validQuoteStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of the status.
func (q QuoteStatus) IsTerminal() bool {
	return q == QuoteStatusAccepted || q == QuoteStatusRejected || q == QuoteStatusExpired
}

// ParseQuoteStatus converts raw input into a QuoteStatus.
func ParseQuoteStatus(value string) (QuoteStatus, error) {
	for _, candidate := range validQuoteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote status %q", value)
}
