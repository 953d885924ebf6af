package poller

import (
	"context"
	"testing"
	"time"

	"github.com/restockwatch/worker/internal/domain"
	"github.com/restockwatch/worker/internal/infrastructure/dynamo"
	"github.com/restockwatch/worker/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockProducts struct{ mock.Mock }

func (m *mockProducts) ListActive(ctx context.Context, priority string) ([]domain.MonitoredProduct, error) {
	args := m.Called(ctx, priority)
	if v, _ := args.Get(0).([]domain.MonitoredProduct); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProducts) UpdateObserved(ctx context.Context, productID string, u dynamo.ObservedUpdate) error {
	return m.Called(ctx, productID, u).Error(0)
}

type mockHistory struct{ mock.Mock }

func (m *mockHistory) Append(ctx context.Context, e *domain.HistoryEntry) error {
	return m.Called(ctx, e).Error(0)
}
func (m *mockHistory) Latest(ctx context.Context, productID string) (*domain.HistoryEntry, error) {
	args := m.Called(ctx, productID)
	if e, _ := args.Get(0).(*domain.HistoryEntry); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Enqueue(ctx context.Context, req domain.NotificationRequest) error {
	return m.Called(ctx, req).Error(0)
}

type mockProvider struct{ mock.Mock }

func (m *mockProvider) CheckInventory(ctx context.Context, sku string, storeLocations []string) (*provider.CheckResult, error) {
	args := m.Called(ctx, sku, storeLocations)
	if r, _ := args.Get(0).(*provider.CheckResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProvider) ProductURL(sku string) string   { return "https://example.com/p/" + sku }
func (m *mockProvider) AddToCartURL(sku string) string { return "https://example.com/cart/" + sku }
func (m *mockProvider) ValidateSKU(string) bool        { return true }

// --- helpers ---

type fixtures struct {
	products *mockProducts
	history  *mockHistory
	pub      *mockPublisher
	queue    *mockQueue
	prov     *mockProvider
}

func newSvc(f *fixtures) Service {
	return NewService(ServiceDeps{
		Products:     f.products,
		History:      f.history,
		Publisher:    f.pub,
		Queue:        f.queue,
		Providers:    provider.NewRegistry(map[string]provider.Provider{"bestbuy": f.prov}),
		Concurrency:  4,
		CheckTimeout: time.Second,
		HistoryTTL:   24 * time.Hour,
		MaxAttempts:  3,
		Source:       "poller-test",
	})
}

func newFixtures() *fixtures {
	return &fixtures{
		products: &mockProducts{},
		history:  &mockHistory{},
		pub:      &mockPublisher{},
		queue:    &mockQueue{},
		prov:     &mockProvider{},
	}
}

func unavailableProduct(id string) domain.MonitoredProduct {
	return domain.MonitoredProduct{
		ProductID: id,
		Retailer:  "bestbuy",
		SKU:       "1234567",
		Name:      "Graphics Card",
		Active:    1,
		Priority:  domain.PriorityNormal,
	}
}

func observed(available bool) *provider.CheckResult {
	return &provider.CheckResult{
		Status: domain.AvailabilityState{
			Online: domain.OnlineAvailability{Available: available},
		},
		ProductURL:   "https://example.com/p/1234567",
		AddToCartURL: "https://example.com/cart/1234567",
		ProductName:  "Graphics Card",
	}
}

// --- tests ---

func TestTick_ZeroProducts_NoOp(t *testing.T) {
	f := newFixtures()
	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{}, nil)

	summary := newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	assert.Equal(t, TickSummary{}, summary)
	f.prov.AssertNotCalled(t, "CheckInventory", mock.Anything, mock.Anything, mock.Anything)
}

func TestTick_NoChange_NoSideEffects(t *testing.T) {
	f := newFixtures()
	p := unavailableProduct("p1")
	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{p}, nil)
	f.prov.On("CheckInventory", mock.Anything, "1234567", mock.Anything).Return(observed(false), nil)
	f.products.On("UpdateObserved", mock.Anything, "p1", mock.MatchedBy(func(u dynamo.ObservedUpdate) bool {
		return !u.Changed
	})).Return(nil)

	summary := newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	assert.Equal(t, 1, summary.Succeeded)
	f.products.AssertExpectations(t)
	f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestTick_TransitionToAvailable(t *testing.T) {
	f := newFixtures()
	p := unavailableProduct("p1")
	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{p}, nil)
	f.prov.On("CheckInventory", mock.Anything, "1234567", mock.Anything).Return(observed(true), nil)
	f.products.On("UpdateObserved", mock.Anything, "p1", mock.MatchedBy(func(u dynamo.ObservedUpdate) bool {
		return u.Changed && u.Status.Online.Available
	})).Return(nil)
	f.history.On("Latest", mock.Anything, "p1").Return(nil, nil)

	var appended *domain.HistoryEntry
	f.history.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		appended = args.Get(1).(*domain.HistoryEntry)
	}).Return(nil)

	var published domain.ChangeEvent
	f.pub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		published = args.Get(1).(domain.ChangeEvent)
	}).Return(nil)

	var queued domain.NotificationRequest
	f.queue.On("Enqueue", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		queued = args.Get(1).(domain.NotificationRequest)
	}).Return(nil)

	summary := newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	assert.Equal(t, TickSummary{Total: 1, Succeeded: 1}, summary)

	require.NotNil(t, appended)
	assert.Equal(t, domain.EventInStock, appended.EventType)
	assert.Nil(t, appended.DurationInStockMs, "first in_stock entry has no duration")

	assert.Equal(t, domain.EventInventoryAvailable, published.EventType)
	assert.Equal(t, "p1", published.Product.ID)
	assert.NotEmpty(t, published.EventID)
	assert.NotEmpty(t, published.Metadata.CorrelationID)

	assert.Equal(t, published.EventID, queued.TriggerEvent.EventID, "request embeds the trigger event")
	assert.Equal(t, []string{domain.ChannelSMS, domain.ChannelPush}, queued.Channels)
	assert.Equal(t, 0, queued.AttemptCount)
	assert.Equal(t, 3, queued.MaxAttempts)
	assert.Equal(t, published.Metadata.CorrelationID, queued.CorrelationID)

	f.pub.AssertNumberOfCalls(t, "Publish", 1)
	f.queue.AssertNumberOfCalls(t, "Enqueue", 1)
	f.history.AssertNumberOfCalls(t, "Append", 1)
}

func TestTick_TransitionToUnavailable_ComputesDuration(t *testing.T) {
	f := newFixtures()
	p := unavailableProduct("p1")
	p.CurrentStatus.Online.Available = true

	inStockAt := time.Now().UTC().Add(-90 * time.Second)
	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{p}, nil)
	f.prov.On("CheckInventory", mock.Anything, "1234567", mock.Anything).Return(observed(false), nil)
	f.products.On("UpdateObserved", mock.Anything, "p1", mock.Anything).Return(nil)
	f.history.On("Latest", mock.Anything, "p1").Return(&domain.HistoryEntry{
		ProductID: "p1",
		Timestamp: inStockAt,
		EventType: domain.EventInStock,
	}, nil)

	var appended *domain.HistoryEntry
	f.history.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		appended = args.Get(1).(*domain.HistoryEntry)
	}).Return(nil)
	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev domain.ChangeEvent) bool {
		return ev.EventType == domain.EventInventoryUnavailable
	})).Return(nil)

	summary := newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	assert.Equal(t, 1, summary.Succeeded)
	require.NotNil(t, appended)
	assert.Equal(t, domain.EventOutOfStock, appended.EventType)
	require.NotNil(t, appended.DurationInStockMs)
	assert.InDelta(t, 90_000, *appended.DurationInStockMs, 5_000)

	// Going out of stock never notifies.
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestTick_OutOfStockAfterOutOfStockEntry_NoDuration(t *testing.T) {
	f := newFixtures()
	p := unavailableProduct("p1")
	p.CurrentStatus.Online.Available = true

	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{p}, nil)
	f.prov.On("CheckInventory", mock.Anything, "1234567", mock.Anything).Return(observed(false), nil)
	f.products.On("UpdateObserved", mock.Anything, "p1", mock.Anything).Return(nil)
	// Prior entry is out_of_stock (e.g. history was trimmed), so no duration.
	f.history.On("Latest", mock.Anything, "p1").Return(&domain.HistoryEntry{
		ProductID: "p1",
		Timestamp: time.Now().UTC().Add(-time.Hour),
		EventType: domain.EventOutOfStock,
	}, nil)

	var appended *domain.HistoryEntry
	f.history.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		appended = args.Get(1).(*domain.HistoryEntry)
	}).Return(nil)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	require.NotNil(t, appended)
	assert.Nil(t, appended.DurationInStockMs)
}

func TestTick_ProviderFailureIsolated(t *testing.T) {
	f := newFixtures()
	bad := unavailableProduct("p-bad")
	bad.SKU = "0000000"
	good := unavailableProduct("p-good")

	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{bad, good}, nil)
	f.prov.On("CheckInventory", mock.Anything, "0000000", mock.Anything).Return(nil, domain.ErrProductNotFound)
	f.prov.On("CheckInventory", mock.Anything, "1234567", mock.Anything).Return(observed(false), nil)
	f.products.On("UpdateObserved", mock.Anything, "p-good", mock.Anything).Return(nil)

	summary := newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	assert.Equal(t, TickSummary{Total: 2, Succeeded: 1, Failed: 1}, summary)
	f.products.AssertCalled(t, "UpdateObserved", mock.Anything, "p-good", mock.Anything)
	f.products.AssertNotCalled(t, "UpdateObserved", mock.Anything, "p-bad", mock.Anything)
}

func TestTick_MissingAdapterSkipsProduct(t *testing.T) {
	f := newFixtures()
	p := unavailableProduct("p1")
	p.Retailer = "target"

	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{p}, nil)

	summary := newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	assert.Equal(t, TickSummary{Total: 1, Skipped: 1}, summary)
	f.products.AssertNotCalled(t, "UpdateObserved", mock.Anything, mock.Anything, mock.Anything)
}

func TestTick_PublishFailure_FailsCheckButKeepsState(t *testing.T) {
	f := newFixtures()
	p := unavailableProduct("p1")

	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{p}, nil)
	f.prov.On("CheckInventory", mock.Anything, "1234567", mock.Anything).Return(observed(true), nil)
	f.products.On("UpdateObserved", mock.Anything, "p1", mock.Anything).Return(nil)
	f.history.On("Latest", mock.Anything, "p1").Return(nil, nil)
	f.history.On("Append", mock.Anything, mock.Anything).Return(nil)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(domain.ErrPublish)

	summary := newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	assert.Equal(t, TickSummary{Total: 1, Failed: 1}, summary)
	// State and history were already persisted before the publish failed.
	f.products.AssertCalled(t, "UpdateObserved", mock.Anything, "p1", mock.Anything)
	f.history.AssertCalled(t, "Append", mock.Anything, mock.Anything)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestTick_PersistenceFailure_NoHistoryWritten(t *testing.T) {
	f := newFixtures()
	p := unavailableProduct("p1")

	f.products.On("ListActive", mock.Anything, domain.PriorityNormal).Return([]domain.MonitoredProduct{p}, nil)
	f.prov.On("CheckInventory", mock.Anything, "1234567", mock.Anything).Return(observed(true), nil)
	f.products.On("UpdateObserved", mock.Anything, "p1", mock.Anything).Return(assert.AnError)

	summary := newSvc(f).Tick(context.Background(), domain.PriorityNormal)

	assert.Equal(t, TickSummary{Total: 1, Failed: 1}, summary)
	f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
