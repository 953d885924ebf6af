// Package poller runs the recurring availability scan: it fans out
// per-product provider checks, diffs each observation against the stored
// state, and on a transition records history, publishes a change event and
// queues a notification request.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/restockwatch/worker/internal/domain"
	"github.com/restockwatch/worker/internal/infrastructure/dynamo"
	"github.com/restockwatch/worker/internal/pkg/id"
	"github.com/restockwatch/worker/internal/provider"
)

type Service interface {
	// Tick runs one poll pass over all active products with the given
	// priority. It blocks until every check has settled.
	Tick(ctx context.Context, priority string) TickSummary
}

// TickSummary reports how one poll pass went.
type TickSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int // products whose retailer has no registered adapter
}

type productStore interface {
	ListActive(ctx context.Context, priority string) ([]domain.MonitoredProduct, error)
	UpdateObserved(ctx context.Context, productID string, u dynamo.ObservedUpdate) error
}

type historyStore interface {
	Append(ctx context.Context, e *domain.HistoryEntry) error
	Latest(ctx context.Context, productID string) (*domain.HistoryEntry, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

type eventArchive interface {
	Store(ctx context.Context, ev domain.ChangeEvent) error
}

type notificationQueue interface {
	Enqueue(ctx context.Context, req domain.NotificationRequest) error
}

type providerRegistry interface {
	For(retailer string) (provider.Provider, error)
}

type service struct {
	products     productStore
	history      historyStore
	publisher    eventPublisher
	archive      eventArchive
	queue        notificationQueue
	providers    providerRegistry
	concurrency  int
	checkTimeout time.Duration
	historyTTL   time.Duration
	maxAttempts  int
	source       string
}

type ServiceDeps struct {
	Products     productStore
	History      historyStore
	Publisher    eventPublisher
	Archive      eventArchive // optional; nil disables the reconciliation trail
	Queue        notificationQueue
	Providers    providerRegistry
	Concurrency  int
	CheckTimeout time.Duration
	HistoryTTL   time.Duration
	MaxAttempts  int
	Source       string
}

func NewService(deps ServiceDeps) Service {
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}
	if deps.CheckTimeout <= 0 {
		deps.CheckTimeout = 8 * time.Second
	}
	if deps.MaxAttempts < 1 {
		deps.MaxAttempts = 3
	}
	return &service{
		products:     deps.Products,
		history:      deps.History,
		publisher:    deps.Publisher,
		archive:      deps.Archive,
		queue:        deps.Queue,
		providers:    deps.Providers,
		concurrency:  deps.Concurrency,
		checkTimeout: deps.CheckTimeout,
		historyTTL:   deps.HistoryTTL,
		maxAttempts:  deps.MaxAttempts,
		source:       deps.Source,
	}
}

func (s *service) Tick(ctx context.Context, priority string) TickSummary {
	products, err := s.products.ListActive(ctx, priority)
	if err != nil {
		slog.Error("load active products failed", "priority", priority, "err", err)
		return TickSummary{}
	}
	if len(products) == 0 {
		return TickSummary{}
	}

	summary := TickSummary{Total: len(products)}
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range products {
		p := products[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			err := s.checkOne(ctx, &p)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, domain.ErrUnsupportedRetailer):
				summary.Skipped++
			case err != nil:
				summary.Failed++
			default:
				summary.Succeeded++
			}
		}()
	}
	wg.Wait()

	slog.Info("poll tick complete",
		"priority", priority,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary
}

// checkOne polls a single product. Every failure is returned, never
// propagated to siblings in the same tick.
func (s *service) checkOne(ctx context.Context, p *domain.MonitoredProduct) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
			slog.Error("product check panicked", "product_id", p.ProductID, "panic", r)
		}
	}()

	prov, err := s.providers.For(p.Retailer)
	if err != nil {
		slog.Warn("no adapter for retailer, skipping product",
			"product_id", p.ProductID, "retailer", p.Retailer)
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()
	res, err := prov.CheckInventory(cctx, p.SKU, p.StoreLocations)
	if err != nil {
		slog.Warn("inventory check failed",
			"product_id", p.ProductID, "retailer", p.Retailer, "sku", p.SKU, "err", err)
		return err
	}

	verdict := Diff(p.CurrentStatus, res.Status)
	now := time.Now().UTC()

	// One atomic write per check: status + checked-at + refreshed links,
	// and the change timestamp only when the verdict flipped.
	if err := s.products.UpdateObserved(ctx, p.ProductID, dynamo.ObservedUpdate{
		Status:       res.Status,
		ProductURL:   res.ProductURL,
		AddToCartURL: res.AddToCartURL,
		ImageURL:     res.ImageURL,
		Name:         res.ProductName,
		Changed:      verdict.Changed(),
		CheckedAt:    now,
	}); err != nil {
		return fmt.Errorf("%w: update product %s: %v", domain.ErrPersistence, p.ProductID, err)
	}

	if !verdict.Changed() {
		return nil
	}
	return s.recordTransition(ctx, p, res, verdict, now)
}

// recordTransition appends the history entry, publishes exactly one change
// event, and — only for transitions to available — queues exactly one
// notification request.
func (s *service) recordTransition(ctx context.Context, p *domain.MonitoredProduct, res *provider.CheckResult, verdict Verdict, now time.Time) error {
	latest, err := s.history.Latest(ctx, p.ProductID)
	if err != nil {
		return fmt.Errorf("%w: latest history for %s: %v", domain.ErrPersistence, p.ProductID, err)
	}

	entry := &domain.HistoryEntry{
		ProductID: p.ProductID,
		Timestamp: now,
		EntryID:   id.New(),
		EventType: domain.EventOutOfStock,
		Online:    res.Status.Online,
		Stores:    res.Status.Stores,
	}
	if verdict.Now {
		entry.EventType = domain.EventInStock
	}
	if s.historyTTL > 0 {
		entry.ExpiresAt = now.Add(s.historyTTL).Unix()
	}
	// Stock duration exists only for in_stock → out_of_stock.
	if !verdict.Now && latest != nil && latest.EventType == domain.EventInStock {
		d := now.Sub(latest.Timestamp).Milliseconds()
		entry.DurationInStockMs = &d
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("%w: append history for %s: %v", domain.ErrPersistence, p.ProductID, err)
	}

	ev := s.buildEvent(p, res, verdict, now)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		// The persisted state change stays authoritative; reconciliation of
		// the missed event happens out-of-band.
		return err
	}
	if s.archive != nil {
		if aerr := s.archive.Store(ctx, ev); aerr != nil {
			slog.Warn("event archive write failed", "event_id", ev.EventID, "err", aerr)
		}
	}

	slog.Info("availability transition",
		"product_id", p.ProductID, "event_type", ev.EventType, "event_id", ev.EventID)

	if !verdict.Now {
		// Going out of stock never notifies anyone.
		return nil
	}

	req := domain.NotificationRequest{
		RequestID:     id.New(),
		Timestamp:     now,
		TriggerEvent:  ev,
		Channels:      []string{domain.ChannelSMS, domain.ChannelPush},
		AttemptCount:  0,
		MaxAttempts:   s.maxAttempts,
		CorrelationID: ev.Metadata.CorrelationID,
	}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		return err
	}
	slog.Info("notification request queued", "request_id", req.RequestID, "product_id", p.ProductID)
	return nil
}

func (s *service) buildEvent(p *domain.MonitoredProduct, res *provider.CheckResult, verdict Verdict, now time.Time) domain.ChangeEvent {
	eventType := domain.EventInventoryUnavailable
	if verdict.Now {
		eventType = domain.EventInventoryAvailable
	}

	name := res.ProductName
	if name == "" {
		name = p.Name
	}
	stores := make([]domain.EventStore, 0, len(res.Status.Stores))
	for _, st := range res.Status.Stores {
		stores = append(stores, domain.EventStore{
			StoreID:   st.StoreID,
			StoreName: st.StoreName,
			Available: st.Available,
		})
	}

	return domain.ChangeEvent{
		EventID:   id.New(),
		EventType: eventType,
		Timestamp: now,
		Product: domain.ProductSummary{
			ID:           p.ProductID,
			SKU:          p.SKU,
			Name:         name,
			Retailer:     p.Retailer,
			ProductURL:   res.ProductURL,
			AddToCartURL: res.AddToCartURL,
			ImageURL:     res.ImageURL,
		},
		Availability: domain.EventAvailability{
			Online: res.Status.Online.Available,
			Stores: stores,
		},
		Metadata: domain.EventMetadata{
			CorrelationID: id.New(),
			Source:        s.source,
		},
	}
}
