package eventstore

import (
	"fmt"
	"io"
	"strings"
)

// EventStore defines the interface for type-partitioned, time-ordered event storage.
// Implementations are safe for concurrent use without external locking.
type EventStore interface {
	io.Closer

	// Insert stores an event in the bucket of its type, creating the bucket if needed.
	// Inserting a nil event panics with ErrNilEvent.
	Insert(event *Event) error

	// RemoveAll discards every event of the given type. Removing an unknown type is a no-op.
	RemoveAll(eventType string)

	// Query returns an iterator over the events of eventType whose timestamp lies in
	// [startTime, endTime), in timestamp order, using the store's default IterationMode.
	// An unknown type or an empty interval yields an empty iterator.
	Query(eventType string, startTime, endTime int64) EventIterator

	// QueryWithMode is Query with an explicit IterationMode.
	QueryWithMode(eventType string, startTime, endTime int64, mode IterationMode) EventIterator

	// Types returns the registered event types in lexical order.
	Types() []string

	// Count returns the number of stored events of eventType.
	Count(eventType string) int

	// Statistics returns aggregate statistics about the store.
	Statistics() Statistics
}

// EventIterator is a forward-only cursor over the result of a query.
//
// A fresh iterator is positioned before its first element. MoveNext must be called before Current
// returns anything; Remove is only legal right after a successful MoveNext.
type EventIterator interface {
	io.Closer

	// MoveNext advances to the next event in range and reports whether there was one.
	// Once it has returned false it keeps returning false.
	MoveNext() bool

	// Current returns the event resolved by the last successful MoveNext, or nil. A Remove does
	// not clear it.
	Current() *Event

	// Remove deletes the current event from the store.
	// It panics with ErrNoCurrentEvent if there is no current event or it was already removed, and with
	// ErrIteratorClosed if the iterator has been closed.
	Remove()
}

// HealthChecker is implemented by stores that can report liveness.
type HealthChecker interface {
	Healthy() bool
}

// Statistics provides aggregate statistics about an event store
type Statistics struct {
	TotalEvents int64            // Total number of events across all types
	TypeCounts  map[string]int64 // Number of events per type
	TypeCount   int              // Number of distinct types
}

// IterationMode selects how an iterator relates to the store's storage.
type IterationMode int

const (
	// ModeSnapshot iterates over a copy of the matching range. Removals are forwarded to the
	// store by identity, and concurrent structural changes never disturb the traversal.
	ModeSnapshot IterationMode = iota
	// ModeLive iterates over the store's bucket itself. Removals shift the cursor in place.
	// Events inserted into the part of the window not yet reached are picked up. Events that
	// sort into the part already traversed are not, and nothing is returned twice. A RemoveAll
	// of the type ends the traversal.
	ModeLive
)

func (m IterationMode) String() string {
	switch m {
	case ModeSnapshot:
		return "snapshot"
	case ModeLive:
		return "live"
	default:
		return fmt.Sprintf("IterationMode(%d)", int(m))
	}
}

// ParseIterationMode parses "snapshot" or "live".
func ParseIterationMode(s string) (IterationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "snapshot":
		return ModeSnapshot, nil
	case "live":
		return ModeLive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// OrderingPolicy selects how a store keeps each bucket sorted by timestamp.
type OrderingPolicy int

const (
	// OrderingSort places out-of-order events at their sorted position. Events with equal
	// timestamps keep insertion order.
	OrderingSort OrderingPolicy = iota
	// OrderingReject refuses events older than the newest event of their type with ErrOutOfOrder.
	OrderingReject
)

func (p OrderingPolicy) String() string {
	switch p {
	case OrderingSort:
		return "sort"
	case OrderingReject:
		return "reject"
	default:
		return fmt.Sprintf("OrderingPolicy(%d)", int(p))
	}
}

// ParseOrderingPolicy parses "sort" or "reject".
func ParseOrderingPolicy(s string) (OrderingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sort":
		return OrderingSort, nil
	case "reject":
		return OrderingReject, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrdering, s)
	}
}
