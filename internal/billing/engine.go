package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tierhub-io/tierhub/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reconciler consumes normalized processor events and converges billing
// state. It is the only writer of billing rows and of a user's current
// product assignment. Every handler is idempotent with respect to repeated
// delivery, and every external-subscription-id lookup miss is a silent
// no-op so that redeliveries of foreign events stay cheap.
type Reconciler struct {
	db    *gorm.DB
	locks *keyLock
	now   func() time.Time
}

// NewReconciler constructs a Reconciler backed by GORM.
func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{
		db:    db,
		locks: newKeyLock(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Apply dispatches a normalized event to its handler. It returns nil for
// recognized no-ops; a non-nil error means reconciliation did not complete
// and the event source should redeliver.
func (r *Reconciler) Apply(ctx context.Context, event Event) error {
	switch ev := event.(type) {
	case InvoicePaid:
		return r.HandleInvoicePaid(ctx, ev)
	case InvoicePaymentFailed:
		return r.HandleInvoicePaymentFailed(ctx, ev)
	case SubscriptionUpdated:
		return r.HandleSubscriptionUpdated(ctx, ev)
	case SubscriptionDeleted:
		return r.HandleSubscriptionDeleted(ctx, ev)
	case Ignored:
		log.WithFields(log.Fields{"event_id": ev.ID, "type": ev.Type, "reason": ev.Reason}).Debug("event ignored")
		return nil
	default:
		return fmt.Errorf("billing: unhandled event %T", event)
	}
}

// HandleInvoicePaid creates or updates the payer's billing record. Repeated
// deliveries for the same subscription converge on the same row.
func (r *Reconciler) HandleInvoicePaid(ctx context.Context, event InvoicePaid) error {
	unlock := r.locks.Lock(event.ExternalSubscriptionID)
	defer unlock()
	// Billing rows are unique per user. Two subscriptions paying for the
	// same account must not race the create path.
	unlockUser := r.locks.Lock("email:" + event.CustomerEmail)
	defer unlockUser()

	var product models.Product
	errProduct := r.db.WithContext(ctx).Where("external_price_id = ?", event.ExternalPriceID).First(&product).Error
	if errProduct != nil {
		if errors.Is(errProduct, gorm.ErrRecordNotFound) {
			// Price no longer sold or catalog mismatch. Record and move on;
			// failing the delivery would only trigger infinite redelivery.
			log.WithFields(log.Fields{
				"event_id": event.ID,
				"price_id": event.ExternalPriceID,
			}).Warn("invoice references unknown price, discarding")
			return nil
		}
		return fmt.Errorf("billing: find product: %w", errProduct)
	}

	var user models.User
	errUser := r.db.WithContext(ctx).Where("email = ?", event.CustomerEmail).First(&user).Error
	if errUser != nil {
		if errors.Is(errUser, gorm.ErrRecordNotFound) {
			// The processor and the user directory have diverged. Loud by
			// contract: the operator must see this.
			log.WithFields(log.Fields{
				"event_id": event.ID,
				"email":    event.CustomerEmail,
			}).Error("invoice paid for unknown user")
			return fmt.Errorf("%w: no user for email %s", ErrUserNotFound, event.CustomerEmail)
		}
		return fmt.Errorf("billing: find user: %w", errUser)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Billing
		errFind := tx.Where("user_id = ?", user.ID).First(&existing).Error
		switch {
		case errors.Is(errFind, gorm.ErrRecordNotFound):
			record := models.Billing{
				UserID:                 user.ID,
				ProductID:              product.ID,
				ExternalSubscriptionID: event.ExternalSubscriptionID,
				ExternalCustomerID:     event.CustomerID,
				Status:                 models.BillingStatusActive,
				ExpiresAt:              event.PeriodEnd,
			}
			if errCreate := tx.Create(&record).Error; errCreate != nil {
				return fmt.Errorf("billing: create record: %w", errCreate)
			}
		case errFind != nil:
			return fmt.Errorf("billing: find record: %w", errFind)
		default:
			// Update in place; never a second row. Only expiry moves, plus
			// the product when the paid price differs.
			updates := map[string]any{"expires_at": event.PeriodEnd}
			if existing.ProductID != product.ID {
				updates["product_id"] = product.ID
			}
			if errUpdate := tx.Model(&models.Billing{}).Where("id = ?", existing.ID).Updates(updates).Error; errUpdate != nil {
				return fmt.Errorf("billing: update record: %w", errUpdate)
			}
		}

		if errAssign := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("current_product_id", product.ID).Error; errAssign != nil {
			return fmt.Errorf("billing: assign product: %w", errAssign)
		}
		return nil
	})
}

// HandleInvoicePaymentFailed marks the subscription past due. Expiry is left
// untouched; a past-due subscription keeps its access window until it lapses
// or is canceled.
func (r *Reconciler) HandleInvoicePaymentFailed(ctx context.Context, event InvoicePaymentFailed) error {
	unlock := r.locks.Lock(event.ExternalSubscriptionID)
	defer unlock()

	result := r.db.WithContext(ctx).Model(&models.Billing{}).
		Where("external_subscription_id = ?", event.ExternalSubscriptionID).
		Update("status", models.BillingStatusPastDue)
	if result.Error != nil {
		return fmt.Errorf("billing: mark past due: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		log.WithFields(log.Fields{
			"event_id":        event.ID,
			"subscription_id": event.ExternalSubscriptionID,
		}).Info("payment failed for unknown subscription, no-op")
	}
	return nil
}

// HandleSubscriptionUpdated applies the event's status and effective expiry.
// Delivery order is not guaranteed upstream; the last event applied wins,
// not the chronologically last one.
func (r *Reconciler) HandleSubscriptionUpdated(ctx context.Context, event SubscriptionUpdated) error {
	unlock := r.locks.Lock(event.ExternalSubscriptionID)
	defer unlock()

	updates := map[string]any{"expires_at": event.ExpiresAt}
	if event.Status != "" {
		updates["status"] = event.Status
	}

	result := r.db.WithContext(ctx).Model(&models.Billing{}).
		Where("external_subscription_id = ?", event.ExternalSubscriptionID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("billing: apply subscription update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		log.WithFields(log.Fields{
			"event_id":        event.ID,
			"subscription_id": event.ExternalSubscriptionID,
		}).Info("update for unknown subscription, no-op")
	}
	return nil
}

// HandleSubscriptionDeleted cancels the subscription with immediate
// revocation and moves the owner back to the default product. Both writes
// run in one transaction; on failure the whole event fails and redelivery
// retries both.
func (r *Reconciler) HandleSubscriptionDeleted(ctx context.Context, event SubscriptionDeleted) error {
	unlock := r.locks.Lock(event.ExternalSubscriptionID)
	defer unlock()

	var record models.Billing
	errFind := r.db.WithContext(ctx).
		Where("external_subscription_id = ?", event.ExternalSubscriptionID).
		First(&record).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithFields(log.Fields{
				"event_id":        event.ID,
				"subscription_id": event.ExternalSubscriptionID,
			}).Info("deletion for unknown subscription, no-op")
			return nil
		}
		return fmt.Errorf("billing: find record: %w", errFind)
	}

	var defaultProduct models.Product
	if errDefault := r.db.WithContext(ctx).Where("is_default = ?", true).First(&defaultProduct).Error; errDefault != nil {
		return fmt.Errorf("billing: find default product: %w", errDefault)
	}

	now := r.now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCancel := tx.Model(&models.Billing{}).Where("id = ?", record.ID).Updates(map[string]any{
			"status":     models.BillingStatusCanceled,
			"expires_at": now,
		}).Error; errCancel != nil {
			return fmt.Errorf("billing: cancel record: %w", errCancel)
		}
		if errAssign := tx.Model(&models.User{}).Where("id = ?", record.UserID).
			Update("current_product_id", defaultProduct.ID).Error; errAssign != nil {
			return fmt.Errorf("billing: reassign default product: %w", errAssign)
		}
		return nil
	})
}
