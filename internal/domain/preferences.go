package domain

import "time"

// PushKeys are the client keys of a web-push subscription.
type PushKeys struct {
	P256dh string `json:"p256dh" dynamodbav:"p256dh"`
	Auth   string `json:"auth" dynamodbav:"auth"`
}

// PushSubscription is a single registered push endpoint.
type PushSubscription struct {
	Endpoint string   `json:"endpoint" dynamodbav:"endpoint"`
	Keys     PushKeys `json:"keys" dynamodbav:"keys"`
}

// SMSPreferences controls the SMS channel.
type SMSPreferences struct {
	Enabled     bool   `json:"enabled" dynamodbav:"enabled"`
	PhoneNumber string `json:"phone_number,omitempty" dynamodbav:"phone_number"` // E.164
}

// PushPreferences controls the push channel.
type PushPreferences struct {
	Enabled       bool               `json:"enabled" dynamodbav:"enabled"`
	Subscriptions []PushSubscription `json:"subscriptions,omitempty" dynamodbav:"subscriptions"`
}

// Preferences is the recipient's notification configuration. Managed by the
// preference API (a separate service); this worker only reads it.
type Preferences struct {
	PreferencesID string          `json:"-" dynamodbav:"preferences_id"`
	SMS           SMSPreferences  `json:"sms" dynamodbav:"sms"`
	Push          PushPreferences `json:"push" dynamodbav:"push"`
	UpdatedAt     time.Time       `json:"updated" dynamodbav:"updated_at"`
}
