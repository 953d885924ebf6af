package domain

import "errors"

// Sentinel errors for failure discrimination across component boundaries.
// Callers wrap these with %w so the poller and dispatcher can classify
// outcomes without depending on infrastructure error types.
var (
	// ErrUnsupportedRetailer is returned by the provider registry when no
	// adapter is registered for a product's retailer id.
	ErrUnsupportedRetailer = errors.New("unsupported retailer")

	// ErrProductNotFound means the retailer has no product for the SKU.
	// Terminal for that SKU until corrected externally.
	ErrProductNotFound = errors.New("product not found")

	// ErrRateLimited means the adapter's request budget is exhausted and the
	// call could not be admitted within the caller's deadline.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderUnavailable covers transport failures and 5xx responses.
	// Retryable on the next tick, never within the same tick.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrPersistence marks a state or history write failure.
	ErrPersistence = errors.New("persistence failure")

	// ErrPublish marks a change-event publish failure. The persisted state
	// change remains the source of truth; reconciliation is out-of-band.
	ErrPublish = errors.New("event publish failure")

	// ErrChannelDelivery marks a single channel send failure.
	ErrChannelDelivery = errors.New("channel delivery failure")

	// ErrAllChannelsFailed means every attempted channel of a notification
	// request failed; the transport should redeliver the message.
	ErrAllChannelsFailed = errors.New("all notification channels failed")

	// ErrNotConfigured marks a sender missing required configuration.
	ErrNotConfigured = errors.New("sender not configured")
)
