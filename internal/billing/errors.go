package billing

import "errors"

// Domain errors surfaced by the reconciliation engine and session gateway.
// Each carries a stable kind usable by transport adapters; no internal
// detail (queries, stack traces) crosses the package boundary.
var (
	// ErrMalformedEvent indicates a processor payload missing a required
	// field for its detected kind.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUserNotFound indicates an invoice for an email with no matching
	// user; a data-integrity failure the operator must see.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailNotVerified blocks checkout for unverified accounts.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrProductNotFound indicates a missing or non-purchasable product.
	ErrProductNotFound = errors.New("product not found")
	// ErrBillingNotFound indicates the user has no billing record.
	ErrBillingNotFound = errors.New("billing not found")
	// ErrCustomerNotFound indicates a billing record without a processor
	// customer ID.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrSessionCreationFailed indicates the processor returned no usable
	// redirect URL.
	ErrSessionCreationFailed = errors.New("session creation failed")
)
