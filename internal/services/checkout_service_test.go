package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header the way Stripe does: HMAC-SHA256
// over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, ts time.Time) string {
	signed := fmt.Sprintf("%d.%s", ts.Unix(), payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func testCheckoutService() *CheckoutService {
	return &CheckoutService{webhookSecret: testWebhookSecret}
}

func TestVerifyWebhookValidSignature(t *testing.T) {
	svc := testCheckoutService()
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)

	event, err := svc.VerifyWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("VerifyWebhook() error = %v", err)
	}
	if event.ID != "evt_1" {
		t.Errorf("event ID = %q, want evt_1", event.ID)
	}
	if string(event.Type) != "checkout.session.completed" {
		t.Errorf("event type = %q", event.Type)
	}
}

func TestVerifyWebhookBadSecret(t *testing.T) {
	svc := testCheckoutService()
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	_, err := svc.VerifyWebhook(payload, signPayload(payload, "whsec_wrong", time.Now()))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifyWebhook(bad secret) error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyWebhookTamperedPayload(t *testing.T) {
	svc := testCheckoutService()
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := signPayload(payload, testWebhookSecret, time.Now())

	tampered := []byte(`{"id":"evt_2","type":"checkout.session.completed"}`)
	if _, err := svc.VerifyWebhook(tampered, header); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifyWebhook(tampered) error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyWebhookStaleTimestamp(t *testing.T) {
	svc := testCheckoutService()
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	// Outside the default 5 minute tolerance
	header := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))
	if _, err := svc.VerifyWebhook(payload, header); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifyWebhook(stale) error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyWebhookGarbageHeader(t *testing.T) {
	svc := testCheckoutService()
	payload := []byte(`{"id":"evt_1"}`)

	for _, header := range []string{"", "t=abc,v1=def", "v1=deadbeef"} {
		if _, err := svc.VerifyWebhook(payload, header); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("VerifyWebhook(header=%q) error = %v, want ErrInvalidSignature", header, err)
		}
	}
}

type fakeWebhookStore struct {
	recordID  string
	recordErr error
	orderID   string
	settleErr error
	settled   int
	discarded []string
	linked    [][2]string
}

func (f *fakeWebhookStore) recordEvent(_ context.Context, _ stripe.Event) (string, error) {
	return f.recordID, f.recordErr
}

func (f *fakeWebhookStore) discardEvent(_ context.Context, recordID string) {
	f.discarded = append(f.discarded, recordID)
}

func (f *fakeWebhookStore) settleOrder(_ context.Context, _ stripe.Event, _ *stripe.CheckoutSession, _, _ string) (string, error) {
	f.settled++
	return f.orderID, f.settleErr
}

func (f *fakeWebhookStore) linkEvent(_ context.Context, recordID, orderID string) {
	f.linked = append(f.linked, [2]string{recordID, orderID})
}

func completedEvent() stripe.Event {
	return stripe.Event{
		ID:   "evt_1",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"cs_1","metadata":{"order_id":"order-1"}}`)},
	}
}

func TestProcessWebhookEventSettles(t *testing.T) {
	store := &fakeWebhookStore{recordID: "rec-1", orderID: "order-1"}

	if err := processWebhookEvent(context.Background(), store, nil, completedEvent()); err != nil {
		t.Fatalf("processWebhookEvent() error = %v", err)
	}
	if store.settled != 1 {
		t.Errorf("settled = %d, want 1", store.settled)
	}
	if len(store.discarded) != 0 {
		t.Errorf("nothing should be discarded on success, got %v", store.discarded)
	}
	if len(store.linked) != 1 || store.linked[0] != [2]string{"rec-1", "order-1"} {
		t.Errorf("linked = %v, want [[rec-1 order-1]]", store.linked)
	}
}

func TestProcessWebhookEventDuplicateAcks(t *testing.T) {
	store := &fakeWebhookStore{recordErr: errDuplicateEvent}

	if err := processWebhookEvent(context.Background(), store, nil, completedEvent()); err != nil {
		t.Fatalf("a duplicate delivery must be acknowledged, got %v", err)
	}
	if store.settled != 0 {
		t.Error("a duplicate delivery must not touch the order")
	}
}

func TestProcessWebhookEventSettleFailureDiscardsRecord(t *testing.T) {
	store := &fakeWebhookStore{recordID: "rec-1", settleErr: errors.New("mongo down")}

	err := processWebhookEvent(context.Background(), store, nil, completedEvent())
	if err == nil {
		t.Fatal("a failed settlement must surface so Stripe retries")
	}
	// The retry must re-process instead of hitting the duplicate gate
	if len(store.discarded) != 1 || store.discarded[0] != "rec-1" {
		t.Errorf("discarded = %v, want [rec-1]", store.discarded)
	}
	if len(store.linked) != 0 {
		t.Errorf("nothing should be linked on failure, got %v", store.linked)
	}
}

func TestProcessWebhookEventBadPayloadDiscardsRecord(t *testing.T) {
	store := &fakeWebhookStore{recordID: "rec-1"}
	event := completedEvent()
	event.Data = &stripe.EventData{Raw: json.RawMessage(`not json`)}

	if err := processWebhookEvent(context.Background(), store, nil, event); err == nil {
		t.Fatal("an unparseable payload must surface an error")
	}
	if len(store.discarded) != 1 {
		t.Errorf("discarded = %v, want one record", store.discarded)
	}
	if store.settled != 0 {
		t.Error("an unparseable payload must not touch the order")
	}
}

func TestProcessWebhookEventIgnoredType(t *testing.T) {
	store := &fakeWebhookStore{recordID: "rec-1"}
	event := completedEvent()
	event.Type = "customer.created"

	if err := processWebhookEvent(context.Background(), store, nil, event); err != nil {
		t.Fatalf("an ignored type must be acknowledged, got %v", err)
	}
	if store.settled != 0 || len(store.discarded) != 0 {
		t.Error("an ignored type must neither settle nor discard")
	}
}

func TestSettlementForEvent(t *testing.T) {
	tests := []struct {
		eventType  stripe.EventType
		wantStatus string
		handled    bool
	}{
		{"checkout.session.completed", "completed", true},
		{"checkout.session.async_payment_succeeded", "completed", true},
		{"checkout.session.async_payment_failed", "failed", true},
		{"checkout.session.expired", "expired", true},
		{"customer.created", "", false},
		{"invoice.paid", "", false},
	}
	for _, tt := range tests {
		status, _, handled := settlementForEvent(tt.eventType)
		if handled != tt.handled || status != tt.wantStatus {
			t.Errorf("settlementForEvent(%q) = (%q, %t), want (%q, %t)",
				tt.eventType, status, handled, tt.wantStatus, tt.handled)
		}
	}
}
