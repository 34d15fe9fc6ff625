package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded","data":{"object":{}}}`)
	timestamp := time.Now().Unix()

	v := NewVerifier(secret, 0)
	if err := v.Verify(payload, buildSignatureHeader(secret, payload, timestamp)); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	if err := v.Verify(payload, buildSignatureHeader("wrong", payload, timestamp)); err == nil {
		t.Fatalf("expected invalid signature error")
	}

	if err := v.Verify(payload, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for empty header, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_old"}`)
	stale := time.Now().Add(-10 * time.Minute).Unix()

	v := NewVerifier(secret, 5*time.Minute)
	err := v.Verify(payload, buildSignatureHeader(secret, payload, stale))
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected stale timestamp error, got %v", err)
	}
}

func TestVerifyWithoutSecretFailsClosed(t *testing.T) {
	payload := []byte(`{}`)
	v := NewVerifier("", 0)
	if err := v.Verify(payload, buildSignatureHeader("anything", payload, time.Now().Unix())); err == nil {
		t.Fatalf("expected verification to fail without a secret")
	}
}

func TestParseEvent(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	invoiceID := node.Generate()
	created := time.Now().UTC().Unix()

	payload := mustJSON(t, map[string]any{
		"id":      "evt_pi",
		"type":    "payment_intent.succeeded",
		"created": created,
		"data": map[string]any{
			"object": map[string]any{
				"id":              "pi_1",
				"amount":          102930,
				"amount_received": 102930,
				"currency":        "usd",
				"created":         created,
				"metadata": map[string]any{
					"invoice_id":     invoiceID.String(),
					"invoice_number": "INV-10001",
				},
			},
		},
	})

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if event.Type != EventPaymentSucceeded {
		t.Fatalf("unexpected type %q", event.Type)
	}
	if event.IntentID != "pi_1" {
		t.Fatalf("unexpected intent id %q", event.IntentID)
	}
	if event.AmountCents != 102930 {
		t.Fatalf("unexpected amount %d", event.AmountCents)
	}
	if event.InvoiceID != invoiceID {
		t.Fatalf("unexpected invoice id %v", event.InvoiceID)
	}
	if event.InvoiceNumber != "INV-10001" {
		t.Fatalf("unexpected invoice number %q", event.InvoiceNumber)
	}
}

func TestParseEventIgnoresUnknownTypes(t *testing.T) {
	payload := mustJSON(t, map[string]any{
		"id":   "evt_x",
		"type": "customer.created",
		"data": map[string]any{"object": map[string]any{"id": "cus_1"}},
	})
	if _, err := ParseEvent(payload); !errors.Is(err, ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestParseEventFailureReason(t *testing.T) {
	payload := mustJSON(t, map[string]any{
		"id":   "evt_fail",
		"type": "payment_intent.payment_failed",
		"data": map[string]any{
			"object": map[string]any{
				"id":     "pi_2",
				"amount": 5000,
				"last_payment_error": map[string]any{
					"message": "Your card was declined.",
				},
			},
		},
	})
	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if event.Type != EventPaymentFailed {
		t.Fatalf("unexpected type %q", event.Type)
	}
	if event.FailureReason != "Your card was declined." {
		t.Fatalf("unexpected failure reason %q", event.FailureReason)
	}
}

func buildSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signed := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
