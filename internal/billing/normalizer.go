package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tierhub-io/tierhub/internal/models"
)

// rawEnvelope is the outer processor event shape.
type rawEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// rawInvoice maps the invoice fields the normalizer extracts.
type rawInvoice struct {
	CustomerEmail string `json:"customer_email"`
	Customer      string `json:"customer"`
	Subscription  string `json:"subscription"`
	Lines         struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// rawSubscription maps the subscription fields the normalizer extracts.
type rawSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	CancelAt         *int64 `json:"cancel_at"`
}

// Normalize maps a raw processor payload to a canonical event. It is the
// only place processor unix-second timestamps become time.Time values.
// Unknown event types yield Ignored, not an error.
func Normalize(payload []byte) (Event, error) {
	var envelope rawEnvelope
	if errUnmarshal := json.Unmarshal(payload, &envelope); errUnmarshal != nil {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedEvent)
	}
	if strings.TrimSpace(envelope.ID) == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}

	switch envelope.Type {
	case TypeInvoicePaid:
		return normalizeInvoicePaid(envelope)
	case TypeInvoicePaymentFailed:
		return normalizeInvoicePaymentFailed(envelope)
	case TypeSubscriptionUpdated:
		return normalizeSubscriptionUpdated(envelope)
	case TypeSubscriptionDeleted:
		return normalizeSubscriptionDeleted(envelope)
	default:
		return Ignored{ID: envelope.ID, Type: envelope.Type, Reason: "unhandled event type"}, nil
	}
}

func normalizeInvoicePaid(envelope rawEnvelope) (Event, error) {
	var invoice rawInvoice
	if errUnmarshal := json.Unmarshal(envelope.Data.Object, &invoice); errUnmarshal != nil {
		return nil, fmt.Errorf("%w: invalid invoice object", ErrMalformedEvent)
	}

	// Some processors emit zero-line-item paid invoices for $0 charges
	// unrelated to subscription activation. Benign, not an error.
	if len(invoice.Lines.Data) == 0 {
		return Ignored{ID: envelope.ID, Type: envelope.Type, Reason: "invoice has no line items"}, nil
	}

	line := invoice.Lines.Data[0]
	if strings.TrimSpace(line.Price.ID) == "" {
		return nil, fmt.Errorf("%w: invoice line missing price id", ErrMalformedEvent)
	}
	if strings.TrimSpace(invoice.CustomerEmail) == "" {
		return nil, fmt.Errorf("%w: invoice missing customer email", ErrMalformedEvent)
	}
	if strings.TrimSpace(invoice.Subscription) == "" {
		return nil, fmt.Errorf("%w: invoice missing subscription id", ErrMalformedEvent)
	}
	if line.Period.End <= 0 {
		return nil, fmt.Errorf("%w: invoice line missing period end", ErrMalformedEvent)
	}

	return InvoicePaid{
		ID:                     envelope.ID,
		CustomerEmail:          strings.TrimSpace(invoice.CustomerEmail),
		CustomerID:             strings.TrimSpace(invoice.Customer),
		ExternalPriceID:        line.Price.ID,
		ExternalSubscriptionID: invoice.Subscription,
		PeriodEnd:              time.Unix(line.Period.End, 0).UTC(),
	}, nil
}

func normalizeInvoicePaymentFailed(envelope rawEnvelope) (Event, error) {
	var invoice rawInvoice
	if errUnmarshal := json.Unmarshal(envelope.Data.Object, &invoice); errUnmarshal != nil {
		return nil, fmt.Errorf("%w: invalid invoice object", ErrMalformedEvent)
	}
	if strings.TrimSpace(invoice.Subscription) == "" {
		return nil, fmt.Errorf("%w: invoice missing subscription id", ErrMalformedEvent)
	}
	return InvoicePaymentFailed{ID: envelope.ID, ExternalSubscriptionID: invoice.Subscription}, nil
}

func normalizeSubscriptionUpdated(envelope rawEnvelope) (Event, error) {
	var sub rawSubscription
	if errUnmarshal := json.Unmarshal(envelope.Data.Object, &sub); errUnmarshal != nil {
		return nil, fmt.Errorf("%w: invalid subscription object", ErrMalformedEvent)
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, fmt.Errorf("%w: subscription missing id", ErrMalformedEvent)
	}
	if len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("%w: subscription has no items", ErrMalformedEvent)
	}
	if sub.CurrentPeriodEnd <= 0 && sub.CancelAt == nil {
		return nil, fmt.Errorf("%w: subscription missing period end", ErrMalformedEvent)
	}

	// A subscription scheduled for cancellation must expire exactly at its
	// cancel time, not roll forward to the next period end.
	expiresAt := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	if sub.CancelAt != nil && *sub.CancelAt > 0 {
		expiresAt = time.Unix(*sub.CancelAt, 0).UTC()
	}

	return SubscriptionUpdated{
		ID:                     envelope.ID,
		ExternalSubscriptionID: sub.ID,
		Status:                 mapProcessorStatus(sub.Status),
		ExpiresAt:              expiresAt,
	}, nil
}

func normalizeSubscriptionDeleted(envelope rawEnvelope) (Event, error) {
	var sub rawSubscription
	if errUnmarshal := json.Unmarshal(envelope.Data.Object, &sub); errUnmarshal != nil {
		return nil, fmt.Errorf("%w: invalid subscription object", ErrMalformedEvent)
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, fmt.Errorf("%w: subscription missing id", ErrMalformedEvent)
	}
	return SubscriptionDeleted{ID: envelope.ID, ExternalSubscriptionID: sub.ID}, nil
}

// mapProcessorStatus maps processor status strings to internal statuses.
// Unknown statuses map to empty, which the reconciler treats as absent.
func mapProcessorStatus(status string) models.BillingStatus {
	switch strings.TrimSpace(status) {
	case "active", "trialing":
		return models.BillingStatusActive
	case "past_due", "unpaid":
		return models.BillingStatusPastDue
	case "canceled", "incomplete_expired":
		return models.BillingStatusCanceled
	default:
		return ""
	}
}
