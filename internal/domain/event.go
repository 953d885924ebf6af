package domain

import "time"

// Change event types on the wire.
const (
	EventInventoryAvailable   = "inventory.available"
	EventInventoryUnavailable = "inventory.unavailable"
)

// Notification channels.
const (
	ChannelSMS  = "sms"
	ChannelPush = "push"
)

// ProductSummary is the product slice embedded in a change event.
type ProductSummary struct {
	ID           string `json:"id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Retailer     string `json:"retailer"`
	ProductURL   string `json:"productUrl"`
	AddToCartURL string `json:"addToCartUrl"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

// EventStore is a per-location availability snapshot inside a change event.
type EventStore struct {
	StoreID   string `json:"storeId"`
	StoreName string `json:"storeName"`
	Available bool   `json:"available"`
}

// EventAvailability is the availability snapshot at the moment of transition.
type EventAvailability struct {
	Online bool         `json:"online"`
	Stores []EventStore `json:"stores"`
}

// EventMetadata carries tracing fields through the pipeline.
type EventMetadata struct {
	CorrelationID string `json:"correlationId"`
	Source        string `json:"source"`
}

// ChangeEvent is the immutable message published once per detected
// availability transition. Delivery is at-least-once; consumers must
// deduplicate by EventID.
type ChangeEvent struct {
	EventID      string            `json:"eventId"`
	EventType    string            `json:"eventType"`
	Timestamp    time.Time         `json:"timestamp"`
	Product      ProductSummary    `json:"product"`
	Availability EventAvailability `json:"availability"`
	Metadata     EventMetadata     `json:"metadata"`
}

// NotificationRequest is a self-contained delivery job. The trigger event is
// embedded (not referenced) so redelivered messages can be processed without
// any lookup. The payload is immutable once enqueued: attempt bookkeeping is
// owned by the queue transport's delivery count, never written back here.
type NotificationRequest struct {
	RequestID     string      `json:"requestId"`
	Timestamp     time.Time   `json:"timestamp"`
	TriggerEvent  ChangeEvent `json:"triggerEvent"`
	Channels      []string    `json:"channels"`
	AttemptCount  int         `json:"attemptCount"`
	MaxAttempts   int         `json:"maxAttempts"`
	CorrelationID string      `json:"correlationId"`
}

// NotificationResult is the per-channel outcome of one dispatch attempt.
// Transient: aggregated in memory and surfaced to logs, never persisted.
type NotificationResult struct {
	RequestID string    `json:"requestId"`
	Channel   string    `json:"channel"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
