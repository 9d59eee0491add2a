package billing

import (
	"time"

	"github.com/tierhub-io/tierhub/internal/models"
)

// Processor event type discriminators consumed by the normalizer.
const (
	TypeInvoicePaid          = "invoice.paid"
	TypeInvoicePaymentFailed = "invoice.payment_failed"
	TypeSubscriptionUpdated  = "customer.subscription.updated"
	TypeSubscriptionDeleted  = "customer.subscription.deleted"
)

// Event is the closed set of normalized processor events. The reconciler
// dispatches on the concrete type and never inspects raw payload shape.
type Event interface {
	// ExternalID returns the processor-assigned event ID.
	ExternalID() string
	// EventType returns the processor event type discriminator.
	EventType() string

	isEvent()
}

// InvoicePaid signals a successful subscription payment.
type InvoicePaid struct {
	ID                     string
	CustomerEmail          string
	CustomerID             string
	ExternalPriceID        string
	ExternalSubscriptionID string
	PeriodEnd              time.Time
}

// InvoicePaymentFailed signals a failed payment attempt.
type InvoicePaymentFailed struct {
	ID                     string
	ExternalSubscriptionID string
}

// SubscriptionUpdated signals a change to subscription status or period.
// Status is empty when the processor status did not map to an internal one;
// ExpiresAt is the effective expiry with cancel-at precedence applied.
type SubscriptionUpdated struct {
	ID                     string
	ExternalSubscriptionID string
	Status                 models.BillingStatus
	ExpiresAt              time.Time
}

// SubscriptionDeleted signals a terminated subscription.
type SubscriptionDeleted struct {
	ID                     string
	ExternalSubscriptionID string
}

// Ignored marks an event this system understands enough to acknowledge but
// takes no action on: unknown event types and zero-line-item paid invoices.
type Ignored struct {
	ID     string
	Type   string
	Reason string
}

func (e InvoicePaid) ExternalID() string { return e.ID }
func (e InvoicePaid) EventType() string  { return TypeInvoicePaid }
func (e InvoicePaid) isEvent()           {}

func (e InvoicePaymentFailed) ExternalID() string { return e.ID }
func (e InvoicePaymentFailed) EventType() string  { return TypeInvoicePaymentFailed }
func (e InvoicePaymentFailed) isEvent()           {}

func (e SubscriptionUpdated) ExternalID() string { return e.ID }
func (e SubscriptionUpdated) EventType() string  { return TypeSubscriptionUpdated }
func (e SubscriptionUpdated) isEvent()           {}

func (e SubscriptionDeleted) ExternalID() string { return e.ID }
func (e SubscriptionDeleted) EventType() string  { return TypeSubscriptionDeleted }
func (e SubscriptionDeleted) isEvent()           {}

func (e Ignored) ExternalID() string { return e.ID }
func (e Ignored) EventType() string  { return e.Type }
func (e Ignored) isEvent()           {}
