package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientCheckoutSession_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var params CheckoutParams
		if errDecode := json.NewDecoder(r.Body).Decode(&params); errDecode != nil {
			t.Fatalf("decode request: %v", errDecode)
		}
		if params.PriceID != "price_1" {
			t.Fatalf("unexpected price id %q", params.PriceID)
		}
		_ = json.NewEncoder(w).Encode(CheckoutSession{ID: "cs_1", URL: "https://pay.example.com/cs_1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key-123")
	session, err := client.CreateCheckoutSession(context.Background(), CheckoutParams{
		PriceID:    "price_1",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/cancel",
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	if session.ID != "cs_1" || session.URL == "" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestClientPortalSession_ProcessorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream exploded"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key-123")
	_, err := client.CreatePortalSession(context.Background(), PortalParams{CustomerID: "cus_1", ReturnURL: "https://app.example.com"})
	if err == nil {
		t.Fatalf("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "upstream exploded" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestClientCheckoutSession_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "key-123")
	_, err := client.CreateCheckoutSession(context.Background(), CheckoutParams{PriceID: "price_1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 0 {
		t.Fatalf("expected zero status for transport failure, got %d", apiErr.StatusCode)
	}
}
