package courier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/laundrylink/laundrylink-backend/pkg/config"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

func testConfig() config.CourierConfig {
	return config.CourierConfig{
		BaseURL:       "http://courier.test/v1",
		AuthURL:       "http://courier.test/oauth/token",
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		CustomerID:    "cust-123",
		QuoteTimeout:  10 * time.Second,
		CreateTimeout: 15 * time.Second,
	}
}

func TestCreateQuoteRequest(t *testing.T) {
	const expectedURL = "http://courier.test/v1/customers/cust-123/delivery_quotes"
	respBody := `{"id":"dqt_123","fee":1250,"currency":"usd","duration":45,"pickup_duration":15}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["pickup_address"] != "20 W 34th St, New York" {
			t.Fatalf("unexpected pickup address %q", payload["pickup_address"])
		}
		if payload["manifest_total_value"] != float64(2000) {
			t.Fatalf("unexpected manifest total %v", payload["manifest_total_value"])
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient(testConfig(), staticTokens("tok-abc"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	quote, err := client.CreateQuote(context.Background(), QuoteRequest{
		PickupAddress:      "20 W 34th St, New York",
		DropoffAddress:     "11 Wall St, New York",
		PickupPhoneNumber:  "+15551234567",
		DropoffPhoneNumber: "+15557654321",
		ManifestTotalValue: 2000,
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if got := capturedHeaders.Get("Authorization"); got != "Bearer tok-abc" {
		t.Fatalf("unexpected authorization header %q", got)
	}
	if quote.ID != "dqt_123" || quote.Fee != 1250 {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestCreateDeliveryIdempotencyKey(t *testing.T) {
	respBody := `{"id":"del_456","status":"pending","fee":1250,"currency":"usd","tracking_url":"https://courier.test/track/del_456"}`

	var capturedHeaders http.Header
	var capturedPayload map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedHeaders = req.Header.Clone()
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(bodyBytes, &capturedPayload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient(testConfig(), staticTokens("tok-abc"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	delivery, err := client.CreateDelivery(context.Background(), DeliveryRequest{
		QuoteID:            "dqt_123",
		PickupName:         "Alice",
		PickupAddress:      "20 W 34th St, New York",
		PickupPhoneNumber:  "+15551234567",
		DropoffName:        "Spin Cycle",
		DropoffAddress:     "11 Wall St, New York",
		DropoffPhoneNumber: "+15557654321",
	}, "key-789")
	if err != nil {
		t.Fatalf("create delivery: %v", err)
	}

	if got := capturedHeaders.Get("X-Idempotency-Key"); got != "key-789" {
		t.Fatalf("unexpected idempotency header %q", got)
	}
	if capturedPayload["idempotency_key"] != "key-789" {
		t.Fatalf("idempotency key missing from payload: %v", capturedPayload)
	}
	if delivery.ID != "del_456" {
		t.Fatalf("unexpected delivery %+v", delivery)
	}
	if len(delivery.Raw) == 0 {
		t.Fatal("expected raw response to be preserved")
	}
}

func TestCreateDeliveryRequiresIdempotencyKey(t *testing.T) {
	client, err := NewClient(testConfig(), staticTokens("tok-abc"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateDelivery(context.Background(), DeliveryRequest{}, "  ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNon2xxBecomesDependencyError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader(`{"message":"no couriers available"}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient(testConfig(), staticTokens("tok-abc"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateQuote(context.Background(), QuoteRequest{
		PickupAddress:  "a",
		DropoffAddress: "b",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "delivery_quotes") {
		t.Fatalf("expected endpoint in message, got %v", err)
	}
}
