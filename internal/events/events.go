// Package events implements the publish/subscribe channel the browser and
// download pipeline use to deliver results to their consumers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/girdertools/girder-nav/internal/constants"
	"github.com/girdertools/girder-nav/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// EventListing - a navigation completed and produced a listing
	EventListing EventType = "listing"
	// EventFetchError - a navigation failed; one per accepted navigation
	EventFetchError EventType = "fetch_error"

	// Download pipeline events
	EventDownloadStarted   EventType = "download_started"
	EventDownloadCompleted EventType = "download_completed"
	EventDownloadFailed    EventType = "download_failed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ListingEvent carries one consolidated directory listing.
type ListingEvent struct {
	BaseEvent
	Listing models.Listing
}

// FetchErrorEvent reports a failed navigation. Op names the sub-operation
// class that failed (folders, items, files, root path, users, collections,
// current user, item contents); Message is the underlying error text.
type FetchErrorEvent struct {
	BaseEvent
	Op      string
	Message string
}

// DownloadEvent reports progress of the bulk download pipeline.
type DownloadEvent struct {
	BaseEvent
	Node  models.NodeRef
	Path  string // local destination
	Bytes int64
	Err   error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Publishing never blocks; an
// event is dropped for a subscriber whose buffer is full.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// PublishListing is a convenience method for publishing a listing event.
func (eb *EventBus) PublishListing(listing models.Listing) {
	eb.Publish(&ListingEvent{
		BaseEvent: BaseEvent{EventType: EventListing, Time: time.Now()},
		Listing:   listing,
	})
}

// PublishFetchError is a convenience method for publishing a fetch failure.
func (eb *EventBus) PublishFetchError(op, message string) {
	eb.Publish(&FetchErrorEvent{
		BaseEvent: BaseEvent{EventType: EventFetchError, Time: time.Now()},
		Op:        op,
		Message:   message,
	})
}

// Unsubscribe removes a subscription channel from a specific event type.
// This prevents leaks from abandoned subscriptions.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// DroppedEventCount returns the number of events dropped due to full buffers.
func (eb *EventBus) DroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
