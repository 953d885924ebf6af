// Package dispatcher consumes delivered notification requests, resolves the
// recipient's channel preferences and fans out to the channel senders.
// Retry is owned entirely by the queue transport: the dispatcher only
// decides success (ack) versus all-attempted-channels-failed (redeliver).
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/restockwatch/worker/internal/domain"
	"github.com/restockwatch/worker/internal/pkg/validate"
)

type Service interface {
	// Handle processes one delivered notification request. deliveryCount is
	// the transport's receive count for this message, starting at 1.
	// A non-nil return asks the transport to redeliver.
	Handle(ctx context.Context, req domain.NotificationRequest, deliveryCount int) error
}

type preferenceStore interface {
	Get(ctx context.Context) (*domain.Preferences, error)
}

type smsSender interface {
	Configured() bool
	Send(ctx context.Context, to string, ev domain.ChangeEvent) (string, error)
}

type pushSender interface {
	Send(ctx context.Context, subs []domain.PushSubscription, ev domain.ChangeEvent) (int, error)
}

type service struct {
	prefs       preferenceStore
	sms         smsSender
	push        pushSender
	sendTimeout time.Duration
}

type ServiceDeps struct {
	Preferences preferenceStore
	SMS         smsSender
	Push        pushSender
	SendTimeout time.Duration
}

func NewService(deps ServiceDeps) Service {
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 10 * time.Second
	}
	return &service{
		prefs:       deps.Preferences,
		sms:         deps.SMS,
		push:        deps.Push,
		sendTimeout: deps.SendTimeout,
	}
}

func (s *service) Handle(ctx context.Context, req domain.NotificationRequest, deliveryCount int) error {
	// Attempt numbering is derived from the transport's delivery count; the
	// payload itself is never mutated.
	slog.Info("dispatching notification",
		"request_id", req.RequestID,
		"correlation_id", req.CorrelationID,
		"attempt", fmt.Sprintf("%d of %d", deliveryCount, req.MaxAttempts),
	)

	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		return fmt.Errorf("resolve preferences for %s: %w", req.RequestID, err)
	}
	if prefs == nil {
		// Nothing to notify; ack so the transport doesn't retry.
		slog.Info("no preferences stored, skipping request", "request_id", req.RequestID)
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []domain.NotificationResult

	collect := func(r domain.NotificationResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	for _, ch := range req.Channels {
		switch ch {
		case domain.ChannelSMS:
			if !prefs.SMS.Enabled {
				slog.Info("sms channel disabled, skipping", "request_id", req.RequestID)
				continue
			}
			if !validate.E164(prefs.SMS.PhoneNumber) {
				slog.Info("sms channel has no valid phone number, skipping", "request_id", req.RequestID)
				continue
			}
			wg.Add(1)
			go func(to string) {
				defer wg.Done()
				collect(s.sendSMS(ctx, req, to))
			}(prefs.SMS.PhoneNumber)

		case domain.ChannelPush:
			if !prefs.Push.Enabled || len(prefs.Push.Subscriptions) == 0 {
				slog.Info("push channel disabled or without subscriptions, skipping", "request_id", req.RequestID)
				continue
			}
			wg.Add(1)
			go func(subs []domain.PushSubscription) {
				defer wg.Done()
				collect(s.sendPush(ctx, req, subs))
			}(prefs.Push.Subscriptions)

		default:
			slog.Warn("unknown channel requested, skipping", "request_id", req.RequestID, "channel", ch)
		}
	}
	wg.Wait()

	if len(results) == 0 {
		// All channels disabled or misconfigured: success, nothing to retry.
		slog.Info("no channels attempted", "request_id", req.RequestID)
		return nil
	}

	failed := 0
	for _, r := range results {
		if r.Success {
			slog.Info("channel delivered", "request_id", r.RequestID, "channel", r.Channel)
		} else {
			failed++
			slog.Warn("channel failed", "request_id", r.RequestID, "channel", r.Channel, "err", r.Error)
		}
	}
	if failed == len(results) {
		return fmt.Errorf("%w: request %s, %d channel(s)", domain.ErrAllChannelsFailed, req.RequestID, failed)
	}
	return nil
}

// sendSMS attempts the SMS channel, converting any panic or error into a
// failed result so sibling channels keep going.
func (s *service) sendSMS(ctx context.Context, req domain.NotificationRequest, to string) (res domain.NotificationResult) {
	res = domain.NotificationResult{
		RequestID: req.RequestID,
		Channel:   domain.ChannelSMS,
		Timestamp: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("sms sender panicked: %v", r)
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	msgID, err := s.sms.Send(sctx, to, req.TriggerEvent)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	slog.Debug("sms accepted", "request_id", req.RequestID, "message_id", msgID)
	return res
}

func (s *service) sendPush(ctx context.Context, req domain.NotificationRequest, subs []domain.PushSubscription) (res domain.NotificationResult) {
	res = domain.NotificationResult{
		RequestID: req.RequestID,
		Channel:   domain.ChannelPush,
		Timestamp: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("push sender panicked: %v", r)
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	delivered, err := s.push.Send(sctx, subs, req.TriggerEvent)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if delivered == 0 {
		res.Error = "no subscription accepted the payload"
		return res
	}
	res.Success = true
	return res
}
