package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tierhub-io/tierhub/internal/billing"
	"github.com/tierhub-io/tierhub/internal/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SignatureHeader carries the processor's HMAC-SHA256 payload signature.
const SignatureHeader = "X-Payment-Signature"

// maxPayloadBytes bounds webhook request bodies.
const maxPayloadBytes = 1 << 20

// Handler receives payment processor events and feeds the reconciler.
type Handler struct {
	reconciler *billing.Reconciler
	secret     string
}

// NewHandler constructs a webhook Handler.
func NewHandler(reconciler *billing.Reconciler, secret string) *Handler {
	return &Handler{reconciler: reconciler, secret: secret}
}

// RegisterRoutes registers the webhook endpoint.
func RegisterRoutes(r *gin.Engine, reconciler *billing.Reconciler, secret string) {
	if r == nil || reconciler == nil {
		return
	}
	handler := NewHandler(reconciler, secret)
	r.POST("/v0/webhooks/payment", handler.Receive)
}

// Receive verifies the signature, normalizes the payload, and applies the
// event. It acknowledges with 200 whenever the event was understood,
// including benign no-ops, and signals failure only when reconciliation
// could not complete and the source should redeliver.
func (h *Handler) Receive(c *gin.Context) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	// Signature verification happens before any reconciliation logic.
	if !h.verifySignature(payload, c.GetHeader(SignatureHeader)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	event, errNormalize := billing.Normalize(payload)
	if errNormalize != nil {
		log.WithError(errNormalize).Warn("malformed webhook payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	ctx := c.Request.Context()

	if ignored, ok := event.(billing.Ignored); ok {
		if errRecord := h.reconciler.RecordDelivery(ctx, ignored.ID, ignored.Type, payload, models.WebhookOutcomeIgnored, ignored.Reason); errRecord != nil {
			log.WithError(errRecord).Warn("record ignored event failed")
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if errApply := h.reconciler.Apply(ctx, event); errApply != nil {
		if errRecord := h.reconciler.RecordDelivery(ctx, event.ExternalID(), event.EventType(), payload, models.WebhookOutcomeFailed, errApply.Error()); errRecord != nil {
			log.WithError(errRecord).Warn("record failed event failed")
		}
		log.WithError(errApply).WithFields(log.Fields{
			"event_id": event.ExternalID(),
			"type":     event.EventType(),
		}).Error("webhook reconciliation failed")

		if errors.Is(errApply, billing.ErrUserNotFound) {
			// Data-integrity failure: loud, and redelivery gives the
			// operator time to repair the divergence.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "user directory mismatch"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	if errRecord := h.reconciler.RecordDelivery(ctx, event.ExternalID(), event.EventType(), payload, models.WebhookOutcomeProcessed, ""); errRecord != nil {
		log.WithError(errRecord).Warn("record processed event failed")
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// verifySignature checks the hex HMAC-SHA256 of the payload.
func (h *Handler) verifySignature(payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if h.secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
