package eventstore

import (
	"slices"
	"sort"
	"sync"

	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

// bucket holds the events of a single type sorted by timestamp.
type bucket struct {
	mu      sync.RWMutex
	events  []*eventstore.Event
	evicted bool // set once the bucket has been dropped from the store
}

func newBucket() *bucket {
	return &bucket{
		events: make([]*eventstore.Event, 0),
	}
}

// insert places the event after every event with a timestamp <= its own.
// Callers must hold b.mu for writing.
func (b *bucket) insert(event *eventstore.Event, policy eventstore.OrderingPolicy) error {
	n := len(b.events)
	if n == 0 || b.events[n-1].Timestamp() <= event.Timestamp() {
		b.events = append(b.events, event)
		return nil
	}

	if policy == eventstore.OrderingReject {
		return eventstore.ErrOutOfOrder
	}

	i := upperBound(b.events, event.Timestamp())
	b.events = slices.Insert(b.events, i, event)
	return nil
}

// indexOf locates event by identity, or returns -1.
// Callers must hold b.mu.
func (b *bucket) indexOf(event *eventstore.Event) int {
	ts := event.Timestamp()
	for i := lowerBound(b.events, ts); i < len(b.events) && b.events[i].Timestamp() == ts; i++ {
		if b.events[i] == event {
			return i
		}
	}
	return -1
}

// removeAt deletes the event at index i. Callers must hold b.mu for writing.
func (b *bucket) removeAt(i int) {
	b.events = slices.Delete(b.events, i, i+1)
}

// lowerBound returns the index of the first event whose timestamp is >= ts,
// or len(events) if there is none.
func lowerBound(events []*eventstore.Event, ts int64) int {
	return sort.Search(len(events), func(i int) bool {
		return events[i].Timestamp() >= ts
	})
}

// upperBound returns the index of the first event whose timestamp is > ts,
// or len(events) if there is none.
func upperBound(events []*eventstore.Event, ts int64) int {
	return sort.Search(len(events), func(i int) bool {
		return events[i].Timestamp() > ts
	})
}

// lastBefore returns the index of the last event whose timestamp is < ts, or -1.
func lastBefore(events []*eventstore.Event, ts int64) int {
	return lowerBound(events, ts) - 1
}

// matchRange returns the inclusive index range [start, end] of events in [startTime, endTime).
// ok is false when no event matches.
func matchRange(events []*eventstore.Event, startTime, endTime int64) (start, end int, ok bool) {
	start = lowerBound(events, startTime)
	end = lastBefore(events, endTime)
	if start > end {
		return 0, -1, false
	}
	return start, end, true
}

// evict marks the bucket as dropped and releases its events, returning how many it held.
func (b *bucket) evict() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.events)
	b.events = nil
	b.evicted = true
	return n
}
