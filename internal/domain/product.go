package domain

import "time"

// Monitoring priorities. High-priority products are polled on a shorter cadence.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// OnlineAvailability is the retailer's online-channel stock state for a SKU.
type OnlineAvailability struct {
	Available          bool       `json:"available" dynamodbav:"available"`
	Quantity           *int       `json:"quantity,omitempty" dynamodbav:"quantity"`
	LastKnownAvailable *time.Time `json:"last_known_available,omitempty" dynamodbav:"last_known_available"`
}

// StoreAvailability is the stock state at a single physical store.
type StoreAvailability struct {
	StoreID   string `json:"store_id" dynamodbav:"store_id"`
	StoreName string `json:"store_name" dynamodbav:"store_name"`
	Available bool   `json:"available" dynamodbav:"available"`
}

// AvailabilityState is the full observed availability for a product:
// the online channel plus zero or more monitored store locations.
type AvailabilityState struct {
	Online OnlineAvailability  `json:"online" dynamodbav:"online"`
	Stores []StoreAvailability `json:"stores,omitempty" dynamodbav:"stores"`
}

// Overall reduces the state to the single availability verdict:
// available online OR available in any monitored store.
func (a AvailabilityState) Overall() bool {
	if a.Online.Available {
		return true
	}
	for _, s := range a.Stores {
		if s.Available {
			return true
		}
	}
	return false
}

// MonitoredProduct is a product under availability monitoring. Only the poll
// scheduler mutates its status fields; the management API (a separate service)
// creates, pauses and deletes records.
type MonitoredProduct struct {
	ProductID          string            `json:"id" dynamodbav:"product_id"`
	Retailer           string            `json:"retailer" dynamodbav:"retailer"`
	SKU                string            `json:"sku" dynamodbav:"sku"`
	Name               string            `json:"name" dynamodbav:"name"`
	Active             int               `json:"active" dynamodbav:"active"` // 1 = monitored, 0 = paused (numeric for the GSI key)
	Priority           string            `json:"priority" dynamodbav:"priority"`
	StoreLocations     []string          `json:"store_locations,omitempty" dynamodbav:"store_locations"`
	CurrentStatus      AvailabilityState `json:"current_status" dynamodbav:"current_status"`
	LastCheckedAt      *time.Time        `json:"last_checked_at,omitempty" dynamodbav:"last_checked_at"`
	LastStatusChangeAt *time.Time        `json:"last_status_change_at,omitempty" dynamodbav:"last_status_change_at"`
	ProductURL         string            `json:"product_url,omitempty" dynamodbav:"product_url"`
	AddToCartURL       string            `json:"add_to_cart_url,omitempty" dynamodbav:"add_to_cart_url"`
	ImageURL           string            `json:"image_url,omitempty" dynamodbav:"image_url"`
	CreatedAt          time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt          time.Time         `json:"updated" dynamodbav:"updated_at"`
}
