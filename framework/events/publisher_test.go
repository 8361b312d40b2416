package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"
)

// MockEvent для тестирования
type MockEvent struct {
	eventID     string
	eventType   string
	aggregateID string
	occurredAt  time.Time
	metadata    EventMetadata
}

func (e *MockEvent) EventID() string {
	return e.eventID
}

func (e *MockEvent) EventType() string {
	return e.eventType
}

func (e *MockEvent) OccurredAt() time.Time {
	return e.occurredAt
}

func (e *MockEvent) AggregateID() string {
	return e.aggregateID
}

func (e *MockEvent) Metadata() EventMetadata {
	return e.metadata
}

func newMockEvent(eventType, aggregateID string) *MockEvent {
	return &MockEvent{
		eventID:     uuid.New().String(),
		eventType:   eventType,
		aggregateID: aggregateID,
		occurredAt:  time.Now(),
		metadata:    make(EventMetadata),
	}
}

// MockEventHandler для тестирования
type MockEventHandler struct {
	mu      sync.Mutex
	handled []Event
	err     error
	calls   int
}

func (h *MockEventHandler) Handle(ctx context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.err != nil {
		return h.err
	}
	h.handled = append(h.handled, event)
	return nil
}

func (h *MockEventHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *MockEventHandler) EventType() string {
	return "test_event"
}

func (h *MockEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func staticSource(handlers ...EventHandler) HandlerSource {
	return func(string) []EventHandler { return handlers }
}

func TestInMemoryEventPublisher_Publish(t *testing.T) {
	handler := &MockEventHandler{}
	publisher := NewInMemoryEventPublisher(staticSource(handler))

	err := publisher.Publish(context.Background(), newMockEvent("test_event", "agg-1"))
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if handler.HandledCount() != 1 {
		t.Errorf("Expected 1 handled event, got %d", handler.HandledCount())
	}
}

func TestInMemoryEventPublisher_NoHandlers(t *testing.T) {
	publisher := NewInMemoryEventPublisher(staticSource())

	if err := publisher.Publish(context.Background(), newMockEvent("test_event", "agg-1")); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestInMemoryEventPublisher_WithRetry(t *testing.T) {
	handler := &MockEventHandler{err: errors.New("handler error")}
	publisher := NewInMemoryEventPublisher(staticSource(handler)).WithRetry(RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})

	err := publisher.Publish(context.Background(), newMockEvent("test_event", "agg-1"))
	if err == nil {
		t.Fatal("Expected error after retries")
	}
	if !errors.Is(err, handler.err) {
		t.Errorf("Expected handler error to be wrapped, got %v", err)
	}
	if handler.Calls() != 3 {
		t.Errorf("Expected 3 attempts, got %d", handler.Calls())
	}
}

func TestInMemoryEventPublisher_MultipleSubscribers(t *testing.T) {
	handler1 := &MockEventHandler{}
	handler2 := &MockEventHandler{}

	for _, ordered := range []bool{false, true} {
		publisher := NewInMemoryEventPublisher(staticSource(handler1, handler2)).WithOrdering(ordered)
		if err := publisher.Publish(context.Background(), newMockEvent("test_event", "agg-1")); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	}

	if handler1.HandledCount() != 2 {
		t.Errorf("Expected handler1 to handle 2 events, got %d", handler1.HandledCount())
	}
	if handler2.HandledCount() != 2 {
		t.Errorf("Expected handler2 to handle 2 events, got %d", handler2.HandledCount())
	}
}

func TestInMemoryEventPublisher_OrderedCollectsErrors(t *testing.T) {
	failing := &MockEventHandler{err: errors.New("down")}
	healthy := &MockEventHandler{}
	publisher := NewInMemoryEventPublisher(staticSource(failing, healthy)).WithOrdering(true)

	err := publisher.Publish(context.Background(), newMockEvent("test_event", "agg-1"))
	if err == nil {
		t.Fatal("Expected error from failing handler")
	}
	if healthy.HandledCount() != 1 {
		t.Error("Expected healthy handler to be called despite failure")
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := RetryConfig{BackoffMultiplier: 2, MaxDelay: 300 * time.Millisecond}

	if got := cfg.Backoff(100 * time.Millisecond); got != 200*time.Millisecond {
		t.Errorf("Expected 200ms, got %v", got)
	}
	if got := cfg.Backoff(200 * time.Millisecond); got != 300*time.Millisecond {
		t.Errorf("Expected delay capped at 300ms, got %v", got)
	}
}
