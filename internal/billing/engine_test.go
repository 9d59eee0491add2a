package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tierhub-io/tierhub/internal/db"
	"github.com/tierhub-io/tierhub/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", t.Name())
	conn, err := db.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Email: email, Name: "Test User", EmailVerified: true, Active: true}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

func seedProduct(t *testing.T, conn *gorm.DB, name, priceID string) models.Product {
	t.Helper()
	product := models.Product{Name: name, Price: 2999, ExternalPriceID: &priceID, IsActive: true}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

func TestHandleInvoicePaid_CreatesThenConverges(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	user := seedUser(t, conn, "u@example.com")
	product := seedProduct(t, conn, "Pro", "price_pro")

	periodEnd := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	event := InvoicePaid{
		ID:                     "evt_1",
		CustomerEmail:          user.Email,
		CustomerID:             "cus_1",
		ExternalPriceID:        "price_pro",
		ExternalSubscriptionID: "sub_1",
		PeriodEnd:              periodEnd,
	}

	require.NoError(t, reconciler.HandleInvoicePaid(context.Background(), event))
	// Replay of the same delivery must converge on the same row.
	require.NoError(t, reconciler.HandleInvoicePaid(context.Background(), event))

	var count int64
	require.NoError(t, conn.Model(&models.Billing{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var record models.Billing
	require.NoError(t, conn.Where("user_id = ?", user.ID).First(&record).Error)
	require.Equal(t, models.BillingStatusActive, record.Status)
	require.Equal(t, product.ID, record.ProductID)
	require.Equal(t, "sub_1", record.ExternalSubscriptionID)
	require.Equal(t, "cus_1", record.ExternalCustomerID)
	require.True(t, record.ExpiresAt.Equal(periodEnd))

	var updatedUser models.User
	require.NoError(t, conn.First(&updatedUser, user.ID).Error)
	require.NotNil(t, updatedUser.CurrentProductID)
	require.Equal(t, product.ID, *updatedUser.CurrentProductID)
}

func TestHandleInvoicePaid_UpdatesExpiryAndProduct(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	user := seedUser(t, conn, "u@example.com")
	seedProduct(t, conn, "Pro", "price_pro")
	plus := seedProduct(t, conn, "Plus", "price_plus")

	first := InvoicePaid{
		ID: "evt_1", CustomerEmail: user.Email, CustomerID: "cus_1",
		ExternalPriceID: "price_pro", ExternalSubscriptionID: "sub_1",
		PeriodEnd: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, reconciler.HandleInvoicePaid(context.Background(), first))

	renewal := first
	renewal.ID = "evt_2"
	renewal.ExternalPriceID = "price_plus"
	renewal.PeriodEnd = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, reconciler.HandleInvoicePaid(context.Background(), renewal))

	var record models.Billing
	require.NoError(t, conn.Where("user_id = ?", user.ID).First(&record).Error)
	require.Equal(t, plus.ID, record.ProductID)
	require.True(t, record.ExpiresAt.Equal(renewal.PeriodEnd))
}

func TestHandleInvoicePaid_UnknownPriceIsTolerated(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	user := seedUser(t, conn, "u@example.com")

	event := InvoicePaid{
		ID: "evt_1", CustomerEmail: user.Email,
		ExternalPriceID: "price_ghost", ExternalSubscriptionID: "sub_1",
		PeriodEnd: time.Now().UTC(),
	}
	require.NoError(t, reconciler.HandleInvoicePaid(context.Background(), event))

	var count int64
	require.NoError(t, conn.Model(&models.Billing{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestHandleInvoicePaid_UnknownUserIsLoud(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	seedProduct(t, conn, "Pro", "price_pro")

	event := InvoicePaid{
		ID: "evt_1", CustomerEmail: "ghost@example.com",
		ExternalPriceID: "price_pro", ExternalSubscriptionID: "sub_1",
		PeriodEnd: time.Now().UTC(),
	}
	err := reconciler.HandleInvoicePaid(context.Background(), event)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestHandleInvoicePaymentFailed(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	user := seedUser(t, conn, "u@example.com")
	product := seedProduct(t, conn, "Pro", "price_pro")

	expiry := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	record := models.Billing{
		UserID: user.ID, ProductID: product.ID,
		ExternalSubscriptionID: "sub_1", ExternalCustomerID: "cus_1",
		Status: models.BillingStatusActive, ExpiresAt: expiry,
	}
	require.NoError(t, conn.Create(&record).Error)

	require.NoError(t, reconciler.HandleInvoicePaymentFailed(context.Background(), InvoicePaymentFailed{
		ID: "evt_1", ExternalSubscriptionID: "sub_1",
	}))

	var updated models.Billing
	require.NoError(t, conn.First(&updated, record.ID).Error)
	require.Equal(t, models.BillingStatusPastDue, updated.Status)
	// Expiry keeps the current access window.
	require.True(t, updated.ExpiresAt.Equal(expiry))

	// Unknown subscription is a silent no-op.
	require.NoError(t, reconciler.HandleInvoicePaymentFailed(context.Background(), InvoicePaymentFailed{
		ID: "evt_2", ExternalSubscriptionID: "sub_unknown",
	}))
}

func TestHandleSubscriptionUpdated_LastAppliedWins(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	user := seedUser(t, conn, "u@example.com")
	product := seedProduct(t, conn, "Pro", "price_pro")

	record := models.Billing{
		UserID: user.ID, ProductID: product.ID,
		ExternalSubscriptionID: "sub_1",
		Status:                 models.BillingStatusActive,
		ExpiresAt:              time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, conn.Create(&record).Error)

	t2 := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	// The chronologically later event arrives first; the one applied last
	// wins regardless.
	require.NoError(t, reconciler.HandleSubscriptionUpdated(context.Background(), SubscriptionUpdated{
		ID: "evt_1", ExternalSubscriptionID: "sub_1", Status: models.BillingStatusActive, ExpiresAt: t2,
	}))
	require.NoError(t, reconciler.HandleSubscriptionUpdated(context.Background(), SubscriptionUpdated{
		ID: "evt_2", ExternalSubscriptionID: "sub_1", Status: models.BillingStatusPastDue, ExpiresAt: t1,
	}))

	var updated models.Billing
	require.NoError(t, conn.First(&updated, record.ID).Error)
	require.Equal(t, models.BillingStatusPastDue, updated.Status)
	require.True(t, updated.ExpiresAt.Equal(t1))
}

func TestHandleSubscriptionUpdated_AbsentStatusKeepsCurrent(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	user := seedUser(t, conn, "u@example.com")
	product := seedProduct(t, conn, "Pro", "price_pro")

	record := models.Billing{
		UserID: user.ID, ProductID: product.ID,
		ExternalSubscriptionID: "sub_1",
		Status:                 models.BillingStatusPastDue,
		ExpiresAt:              time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, conn.Create(&record).Error)

	next := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, reconciler.HandleSubscriptionUpdated(context.Background(), SubscriptionUpdated{
		ID: "evt_1", ExternalSubscriptionID: "sub_1", ExpiresAt: next,
	}))

	var updated models.Billing
	require.NoError(t, conn.First(&updated, record.ID).Error)
	require.Equal(t, models.BillingStatusPastDue, updated.Status)
	require.True(t, updated.ExpiresAt.Equal(next))
}

func TestHandleSubscriptionDeleted_Cascade(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	now := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	reconciler.now = func() time.Time { return now }

	user := seedUser(t, conn, "u@example.com")
	product := seedProduct(t, conn, "Pro", "price_pro")
	require.NoError(t, conn.Model(&models.User{}).Where("id = ?", user.ID).
		Update("current_product_id", product.ID).Error)

	record := models.Billing{
		UserID: user.ID, ProductID: product.ID,
		ExternalSubscriptionID: "sub_1",
		Status:                 models.BillingStatusActive,
		ExpiresAt:              time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, conn.Create(&record).Error)

	require.NoError(t, reconciler.HandleSubscriptionDeleted(context.Background(), SubscriptionDeleted{
		ID: "evt_1", ExternalSubscriptionID: "sub_1",
	}))

	var updated models.Billing
	require.NoError(t, conn.First(&updated, record.ID).Error)
	require.Equal(t, models.BillingStatusCanceled, updated.Status)
	require.True(t, updated.ExpiresAt.Equal(now))

	var defaultProduct models.Product
	require.NoError(t, conn.Where("is_default = ?", true).First(&defaultProduct).Error)

	var updatedUser models.User
	require.NoError(t, conn.First(&updatedUser, user.ID).Error)
	require.NotNil(t, updatedUser.CurrentProductID)
	require.Equal(t, defaultProduct.ID, *updatedUser.CurrentProductID)
}

func TestHandleSubscriptionDeleted_UnknownIsNoop(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)
	user := seedUser(t, conn, "u@example.com")

	require.NoError(t, reconciler.HandleSubscriptionDeleted(context.Background(), SubscriptionDeleted{
		ID: "evt_1", ExternalSubscriptionID: "sub_ghost",
	}))

	var count int64
	require.NoError(t, conn.Model(&models.Billing{}).Count(&count).Error)
	require.Zero(t, count)

	var unchanged models.User
	require.NoError(t, conn.First(&unchanged, user.ID).Error)
	require.Nil(t, unchanged.CurrentProductID)
}

func TestRecordDelivery_BumpsAttempts(t *testing.T) {
	conn := openTestDB(t)
	reconciler := NewReconciler(conn)

	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	require.NoError(t, reconciler.RecordDelivery(context.Background(), "evt_1", "invoice.paid", payload, models.WebhookOutcomeProcessed, ""))
	require.NoError(t, reconciler.RecordDelivery(context.Background(), "evt_1", "invoice.paid", payload, models.WebhookOutcomeProcessed, ""))

	var record models.WebhookEvent
	require.NoError(t, conn.Where("external_event_id = ?", "evt_1").First(&record).Error)
	require.Equal(t, 2, record.Attempts)
	require.Equal(t, models.WebhookOutcomeProcessed, record.Outcome)
}
