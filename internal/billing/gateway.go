package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tierhub-io/tierhub/internal/models"
	"github.com/tierhub-io/tierhub/internal/payment"

	"gorm.io/gorm"
)

// SessionGateway drives the synchronous checkout and portal flows against
// the payment processor.
type SessionGateway struct {
	db        *gorm.DB
	processor payment.Processor
}

// NewSessionGateway constructs a SessionGateway.
func NewSessionGateway(db *gorm.DB, processor payment.Processor) *SessionGateway {
	return &SessionGateway{db: db, processor: processor}
}

// CreateCheckoutSession starts a hosted checkout for the user and product.
// The email-verified gate runs before any external call.
func (g *SessionGateway) CreateCheckoutSession(ctx context.Context, userID, productID uint64, successURL, cancelURL string) (*payment.CheckoutSession, error) {
	var user models.User
	if errFind := g.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("billing: find user: %w", errFind)
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	var product models.Product
	errProduct := g.db.WithContext(ctx).Where("id = ? AND is_active = ?", productID, true).First(&product).Error
	if errProduct != nil {
		if errors.Is(errProduct, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("billing: find product: %w", errProduct)
	}
	if product.ExternalPriceID == nil || strings.TrimSpace(*product.ExternalPriceID) == "" {
		return nil, fmt.Errorf("%w: product %d is not purchasable", ErrProductNotFound, productID)
	}

	params := payment.CheckoutParams{
		PriceID:       *product.ExternalPriceID,
		CustomerEmail: user.Email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	}

	// Reuse the processor customer when one exists so repeat purchases do
	// not create duplicate customer records.
	var existing models.Billing
	errBilling := g.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error
	if errBilling == nil && existing.ExternalCustomerID != "" {
		params.CustomerID = existing.ExternalCustomerID
		params.CustomerEmail = ""
	} else if errBilling != nil && !errors.Is(errBilling, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("billing: find record: %w", errBilling)
	}

	session, errCreate := g.processor.CreateCheckoutSession(ctx, params)
	if errCreate != nil {
		return nil, errCreate
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, ErrSessionCreationFailed
	}
	return session, nil
}

// CreatePortalSession starts a self-service portal session for the user.
func (g *SessionGateway) CreatePortalSession(ctx context.Context, userID uint64, returnURL string) (*payment.PortalSession, error) {
	var record models.Billing
	errFind := g.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrBillingNotFound, userID)
		}
		return nil, fmt.Errorf("billing: find record: %w", errFind)
	}
	if strings.TrimSpace(record.ExternalCustomerID) == "" {
		return nil, fmt.Errorf("%w: billing %d has no customer id", ErrCustomerNotFound, record.ID)
	}

	session, errCreate := g.processor.CreatePortalSession(ctx, payment.PortalParams{
		CustomerID: record.ExternalCustomerID,
		ReturnURL:  returnURL,
	})
	if errCreate != nil {
		return nil, errCreate
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, ErrSessionCreationFailed
	}
	return session, nil
}
