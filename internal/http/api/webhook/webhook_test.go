package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tierhub-io/tierhub/internal/billing"
	"github.com/tierhub-io/tierhub/internal/db"
	"github.com/tierhub-io/tierhub/internal/models"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

func setupWebhookTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	r := gin.New()
	RegisterRoutes(r, billing.NewReconciler(conn), testSecret)
	return r, conn
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func deliver(r *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v0/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReceive_RejectsBadSignature(t *testing.T) {
	r, conn := setupWebhookTest(t)

	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)
	w := deliver(r, payload, "deadbeef")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	// Nothing was recorded: reconciliation never ran.
	var count int64
	if errCount := conn.Model(&models.WebhookEvent{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count events: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no recorded events, got %d", count)
	}
}

func TestReceive_RejectsMissingSignature(t *testing.T) {
	r, _ := setupWebhookTest(t)
	w := deliver(r, []byte(`{}`), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReceive_AcksUnknownEventKind(t *testing.T) {
	r, conn := setupWebhookTest(t)

	payload := []byte(`{"id":"evt_1","type":"customer.created","data":{"object":{}}}`)
	w := deliver(r, payload, sign(payload))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown kind, got %d", w.Code)
	}

	var record models.WebhookEvent
	if errFind := conn.Where("external_event_id = ?", "evt_1").First(&record).Error; errFind != nil {
		t.Fatalf("find record: %v", errFind)
	}
	if record.Outcome != models.WebhookOutcomeIgnored {
		t.Fatalf("expected ignored outcome, got %q", record.Outcome)
	}
}

func TestReceive_ProcessesInvoicePaid(t *testing.T) {
	r, conn := setupWebhookTest(t)

	priceID := "price_pro"
	product := models.Product{Name: "Pro", Price: 2999, ExternalPriceID: &priceID, IsActive: true}
	if errCreate := conn.Create(&product).Error; errCreate != nil {
		t.Fatalf("create product: %v", errCreate)
	}
	user := models.User{Email: "u@example.com", EmailVerified: true, Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	payload := []byte(`{
		"id": "evt_1",
		"type": "invoice.paid",
		"data": {"object": {
			"customer_email": "u@example.com",
			"customer": "cus_1",
			"subscription": "sub_1",
			"lines": {"data": [{"price": {"id": "price_pro"}, "period": {"end": 1756684800}}]}
		}}
	}`)

	w := deliver(r, payload, sign(payload))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var record models.Billing
	if errFind := conn.Where("user_id = ?", user.ID).First(&record).Error; errFind != nil {
		t.Fatalf("find billing: %v", errFind)
	}
	if record.Status != models.BillingStatusActive {
		t.Fatalf("expected active, got %q", record.Status)
	}

	var event models.WebhookEvent
	if errFind := conn.Where("external_event_id = ?", "evt_1").First(&event).Error; errFind != nil {
		t.Fatalf("find event record: %v", errFind)
	}
	if event.Outcome != models.WebhookOutcomeProcessed {
		t.Fatalf("expected processed outcome, got %q", event.Outcome)
	}
}

func TestReceive_UnknownUserFailsDelivery(t *testing.T) {
	r, conn := setupWebhookTest(t)

	priceID := "price_pro"
	product := models.Product{Name: "Pro", Price: 2999, ExternalPriceID: &priceID, IsActive: true}
	if errCreate := conn.Create(&product).Error; errCreate != nil {
		t.Fatalf("create product: %v", errCreate)
	}

	payload := []byte(`{
		"id": "evt_1",
		"type": "invoice.paid",
		"data": {"object": {
			"customer_email": "ghost@example.com",
			"subscription": "sub_1",
			"lines": {"data": [{"price": {"id": "price_pro"}, "period": {"end": 1756684800}}]}
		}}
	}`)

	w := deliver(r, payload, sign(payload))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unknown user, got %d", w.Code)
	}

	var event models.WebhookEvent
	if errFind := conn.Where("external_event_id = ?", "evt_1").First(&event).Error; errFind != nil {
		t.Fatalf("find event record: %v", errFind)
	}
	if event.Outcome != models.WebhookOutcomeFailed {
		t.Fatalf("expected failed outcome, got %q", event.Outcome)
	}
}

func TestReceive_MalformedEventIs400(t *testing.T) {
	r, _ := setupWebhookTest(t)

	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_1", "items": {"data": []}, "current_period_end": 1756684800}}
	}`)

	w := deliver(r, payload, sign(payload))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed event, got %d", w.Code)
	}
}
