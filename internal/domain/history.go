package domain

import "time"

// History entry event types.
const (
	EventInStock    = "in_stock"
	EventOutOfStock = "out_of_stock"
)

// HistoryEntry is an immutable record of a single availability transition.
// Partition key is the product id, sort key the transition timestamp, so a
// descending query yields the most recent entry first. Entries are insert-only
// and expire via the table's TTL attribute.
type HistoryEntry struct {
	ProductID         string              `json:"product_id" dynamodbav:"product_id"`
	Timestamp         time.Time           `json:"timestamp" dynamodbav:"timestamp"`
	EntryID           string              `json:"entry_id" dynamodbav:"entry_id"`
	EventType         string              `json:"event_type" dynamodbav:"event_type"`
	Online            OnlineAvailability  `json:"online" dynamodbav:"online"`
	Stores            []StoreAvailability `json:"stores,omitempty" dynamodbav:"stores"`
	DurationInStockMs *int64              `json:"duration_in_stock_ms,omitempty" dynamodbav:"duration_in_stock_ms"`
	ExpiresAt         int64               `json:"-" dynamodbav:"expires_at"` // epoch seconds, DynamoDB TTL
}
