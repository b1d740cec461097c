package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lakestore/tablecore/core"
)

// EventType defines the type of a hook event.
type EventType string

// --- Event Type Constants ---
const (
	// Merge-read lifecycle
	EventPreCreateReader      EventType = "PreCreateReader"
	EventPostCreateReader     EventType = "PostCreateReader"
	EventOnDeletionVectorLoad EventType = "OnDeletionVectorLoad"

	// Partition-expire lifecycle
	EventPreExpire  EventType = "PreExpire"
	EventPostExpire EventType = "PostExpire"

	// Commit lifecycle
	EventPreCommit        EventType = "PreCommit"
	EventPostCommit       EventType = "PostCommit"
	EventOnCommitConflict EventType = "OnCommitConflict"

	// Cache events. Constructors for them exist below; no component in this
	// module triggers them.
	EventOnCacheHit      EventType = "OnCacheHit"
	EventOnCacheMiss     EventType = "OnCacheMiss"
	EventOnCacheEviction EventType = "OnCacheEviction"
)

// --- HookManager Interface and Implementation ---

// HookManager defines the interface for managing and triggering hooks.
type HookManager interface {
	// Register adds a listener for a specific event type.
	Register(eventType EventType, listener HookListener)
	// Trigger fires all registered listeners for a given event.
	// It handles synchronous vs. asynchronous execution based on the event type and listener preference.
	Trigger(ctx context.Context, event HookEvent) error
	// Stop waits for all asynchronous listeners to complete. Useful for graceful shutdown.
	Stop()
}

// HookEvent is the interface that all event objects must implement.
type HookEvent interface {
	// Type returns the type of the event.
	Type() EventType
	// Payload returns the data associated with the event.
	Payload() interface{}
}

// BaseEvent provides a base implementation for HookEvent.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
}

func (e *BaseEvent) Type() EventType      { return e.eventType }
func (e *BaseEvent) Payload() interface{} { return e.payload }

func newEvent(t EventType, payload interface{}) HookEvent {
	return &BaseEvent{eventType: t, payload: payload}
}

// PreCreateReaderPayload carries the split about to be served; a Pre-hook
// listener can reject it by returning an error, cancelling CreateReader.
type PreCreateReaderPayload struct {
	Split *core.DataSplit
}

func NewPreCreateReaderEvent(payload PreCreateReaderPayload) HookEvent {
	return newEvent(EventPreCreateReader, payload)
}

// PostCreateReaderPayload reports whether the merge or no-merge path was
// chosen and how many sections were planned.
type PostCreateReaderPayload struct {
	Split        *core.DataSplit
	UsedMerge    bool
	SectionCount int
	Error        error
}

func NewPostCreateReaderEvent(payload PostCreateReaderPayload) HookEvent {
	return newEvent(EventPostCreateReader, payload)
}

// DeletionVectorLoadPayload reports a deletion-vector load for one data file.
type DeletionVectorLoadPayload struct {
	DataFilePath string
	RowCount     uint64
	FromCache    bool
}

func NewDeletionVectorLoadEvent(payload DeletionVectorLoadPayload) HookEvent {
	return newEvent(EventOnDeletionVectorLoad, payload)
}

// PreExpirePayload carries the wall-clock reference the expire pass was
// invoked with; a Pre-hook can cancel the pass by returning an error.
type PreExpirePayload struct {
	Now time.Time
}

func NewPreExpireEvent(payload PreExpirePayload) HookEvent {
	return newEvent(EventPreExpire, payload)
}

// PostExpirePayload reports the outcome of a completed expire pass.
type PostExpirePayload struct {
	Now               time.Time
	Ran               bool
	ExpiredPartitions []core.Partition
	Error             error
}

func NewPostExpireEvent(payload PostExpirePayload) HookEvent {
	return newEvent(EventPostExpire, payload)
}

// PreCommitPayload carries the prepared snapshot before it is published.
type PreCommitPayload struct {
	CommitIdentifier int64
	Kind             core.CommitKind
}

func NewPreCommitEvent(payload PreCommitPayload) HookEvent {
	return newEvent(EventPreCommit, payload)
}

// PostCommitPayload reports the result of a commit attempt.
type PostCommitPayload struct {
	CommitIdentifier int64
	SnapshotID       int64
	Error            error
}

func NewPostCommitEvent(payload PostCommitPayload) HookEvent {
	return newEvent(EventPostCommit, payload)
}

// CommitConflictPayload reports an optimistic-concurrency retry.
type CommitConflictPayload struct {
	CommitIdentifier int64
	Attempt          int
	ExpectedBase     int64
	ActualLatest     int64
}

func NewCommitConflictEvent(payload CommitConflictPayload) HookEvent {
	return newEvent(EventOnCommitConflict, payload)
}

// CachePayload contains information for cache-related events.
type CachePayload struct {
	Key string
}

func NewOnCacheHitEvent(payload CachePayload) HookEvent      { return newEvent(EventOnCacheHit, payload) }
func NewOnCacheMissEvent(payload CachePayload) HookEvent     { return newEvent(EventOnCacheMiss, payload) }
func NewOnCacheEvictionEvent(payload CachePayload) HookEvent { return newEvent(EventOnCacheEviction, payload) }

// --- HookListener Interface ---

// HookListener defines the interface for components that want to listen to events.
type HookListener interface {
	// OnEvent is called by the HookManager when a registered event is triggered.
	// Returning an error from a "Pre" hook (e.g., PreCommit) can cancel the operation.
	// Errors from "Post" hooks are typically logged without affecting the main operation.
	OnEvent(ctx context.Context, event HookEvent) error

	// Priority returns the listener's priority. Lower numbers are executed first.
	Priority() int

	// IsAsync indicates if the listener should be called asynchronously for Post-events.
	IsAsync() bool
}

// listenerWithPriority wraps a listener with its priority for the
// priority-sorted listener slice.
type listenerWithPriority struct {
	listener HookListener
	priority int
}

// DefaultHookManager is a concrete implementation of HookManager.
type DefaultHookManager struct {
	// The map stores slices of listeners, kept sorted by priority.
	listeners map[EventType][]*listenerWithPriority
	mu        sync.RWMutex
	wg        sync.WaitGroup // For tracking async listeners
	logger    *slog.Logger
}

// NewHookManager creates a new DefaultHookManager.
func NewHookManager(logger *slog.Logger) HookManager {
	if logger == nil {
		// Default to a discard logger to prevent nil panics if no logger is provided.
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DefaultHookManager{
		listeners: make(map[EventType][]*listenerWithPriority),
		logger:    logger,
	}
}

// Register adds a listener for a specific event type, maintaining priority order.
func (m *DefaultHookManager) Register(eventType EventType, listener HookListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &listenerWithPriority{
		listener: listener,
		priority: listener.Priority(),
	}

	// Get the existing slice of listeners for this event type.
	l := m.listeners[eventType]

	// Find the correct insertion index to maintain sorted order.
	// sort.Search finds the first index i where l[i].priority >= item.priority.
	idx := sort.Search(len(l), func(i int) bool {
		return l[i].priority >= item.priority
	})

	// Optimized insertion to reduce re-allocations.
	l = append(l, nil)
	copy(l[idx+1:], l[idx:])
	l[idx] = item

	m.listeners[eventType] = l
}

// Trigger fires all registered listeners for a given event in priority order.
func (m *DefaultHookManager) Trigger(ctx context.Context, event HookEvent) error {
	m.mu.RLock()
	listeners, ok := m.listeners[event.Type()]
	m.mu.RUnlock()

	if !ok || len(listeners) == 0 {
		return nil
	}

	isPreHook := strings.HasPrefix(string(event.Type()), "Pre")

	for _, item := range listeners {
		isListenerAsync := item.listener.IsAsync()

		// Pre-hooks MUST be synchronous to allow for cancellation.
		// Post-hooks can be sync or async based on the listener's preference.
		if isPreHook || !isListenerAsync {
			if isPreHook && isListenerAsync {
				m.logger.Warn("listener for pre-hook requested async execution, but pre-hooks are always synchronous", "event", event.Type(), "priority", item.priority)
			}

			if err := item.listener.OnEvent(ctx, event); err != nil {
				if isPreHook {
					// For Pre-hooks, the error is critical and cancels the operation.
					return fmt.Errorf("pre-hook for event %s (priority %d) failed: %w", event.Type(), item.priority, err)
				}
				m.logger.Error("error from synchronous post-hook listener", "event", event.Type(), "priority", item.priority, "error", err)
			}
		} else {
			m.wg.Add(1)
			go func(currentItem *listenerWithPriority) {
				defer m.wg.Done()
				if err := currentItem.listener.OnEvent(ctx, event); err != nil {
					m.logger.Error("error from asynchronous post-hook listener", "event", event.Type(), "priority", currentItem.priority, "error", err)
				}
			}(item)
		}
	}
	return nil
}

// Stop waits for all asynchronous listeners to complete.
func (m *DefaultHookManager) Stop() {
	m.wg.Wait()
}
