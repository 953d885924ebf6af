// Package push builds web-push payloads for restock alerts.
//
// Delivery here is a placeholder: payloads are constructed and logged per
// subscription but no push service is called, and every subscription reports
// success. Real delivery needs VAPID signing and payload encryption against
// each subscription's keys; until that lands the push channel is effectively
// log-only and must not be the sole channel relied on for alerts.
package push

import (
	"context"
	"log/slog"
	"time"

	"github.com/restockwatch/worker/internal/domain"
)

// Payload is the structured notification shown by the client.
type Payload struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	URL     string   `json:"url"`
	Icon    string   `json:"icon,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Action is a button rendered on the notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
}

// Sender fans an alert out to every registered subscription. Failures per
// subscription are independent; one bad endpoint never blocks the rest.
type Sender struct {
	timeout time.Duration
}

// NewSender creates a push sender with the given per-subscription timeout.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{timeout: timeout}
}

// Send builds the payload once and attempts delivery to each subscription.
// Returns the number of subscriptions that accepted the payload.
func (s *Sender) Send(ctx context.Context, subs []domain.PushSubscription, ev domain.ChangeEvent) (int, error) {
	payload := BuildPayload(ev)

	delivered := 0
	for _, sub := range subs {
		subCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.deliver(subCtx, sub, payload)
		cancel()
		if err != nil {
			slog.Warn("push delivery failed", "endpoint", sub.Endpoint, "err", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// deliver is the placeholder transport. See the package comment.
func (s *Sender) deliver(_ context.Context, sub domain.PushSubscription, p Payload) error {
	slog.Info("push payload built", "endpoint", sub.Endpoint, "title", p.Title, "url", p.URL)
	return nil
}

// BuildPayload maps a change event to the client-facing notification.
func BuildPayload(ev domain.ChangeEvent) Payload {
	return Payload{
		Title: "Back in stock",
		Body:  ev.Product.Name,
		URL:   ev.Product.ProductURL,
		Icon:  ev.Product.ImageURL,
		Actions: []Action{
			{Action: "view", Title: "View", URL: ev.Product.ProductURL},
			{Action: "cart", Title: "Add to cart", URL: ev.Product.AddToCartURL},
		},
	}
}
