package enums

// QuoteDecision represents the decision a vendor can take on a pending quote.
type QuoteDecision string

const (
	// QuoteDecisionAccept indicates the vendor accepts the quote.
	QuoteDecisionAccept QuoteDecision = "accept"
	// QuoteDecisionReject indicates the vendor rejects the quote.
	QuoteDecisionReject QuoteDecision = "reject"
)
