package eventstore

import (
	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

// iteratorState tracks where a cursor is in its lifecycle.
type iteratorState int

const (
	stateReady iteratorState = iota
	stateExhausted
	stateClosed
)

// snapshotIterator walks a private copy of the matching range.
// Remove forwards the deletion to the store by identity.
type snapshotIterator struct {
	store   *InMemoryEventStore
	events  []*eventstore.Event
	pos     int
	current *eventstore.Event
	removed bool
	state   iteratorState
}

func newSnapshotIterator(store *InMemoryEventStore, events []*eventstore.Event) *snapshotIterator {
	return &snapshotIterator{
		store:  store,
		events: events,
	}
}

func (it *snapshotIterator) MoveNext() bool {
	if it.state != stateReady || it.pos >= len(it.events) {
		it.exhaust()
		return false
	}

	it.current = it.events[it.pos]
	it.removed = false
	it.pos++
	return true
}

func (it *snapshotIterator) Current() *eventstore.Event {
	return it.current
}

func (it *snapshotIterator) Remove() {
	if it.state == stateClosed {
		panic(eventstore.ErrIteratorClosed)
	}
	if it.current == nil || it.removed {
		panic(eventstore.ErrNoCurrentEvent)
	}

	it.store.removeEvent(it.current)
	it.removed = true
}

func (it *snapshotIterator) Close() error {
	it.state = stateClosed
	it.events = nil
	it.current = nil
	return nil
}

func (it *snapshotIterator) exhaust() {
	if it.state == stateReady {
		it.state = stateExhausted
	}
	it.current = nil
}

// liveIterator walks the store's bucket directly. The window starts at the first event with
// timestamp >= startTime and ends before the first event with timestamp >= endTime.
//
// The cursor is anchored on the bucket element just before it rather than on a bare index, so
// inserts that sort in ahead of the cursor never make an event come back twice. A nil anchor
// means the cursor sits at the start of the window.
type liveIterator struct {
	store     *InMemoryEventStore
	bucket    *bucket
	startTime int64
	endTime   int64
	pos       int
	anchor    *eventstore.Event
	current   *eventstore.Event
	removed   bool
	state     iteratorState
}

func newLiveIterator(store *InMemoryEventStore, b *bucket, startTime, endTime int64) *liveIterator {
	return &liveIterator{
		store:     store,
		bucket:    b,
		startTime: startTime,
		endTime:   endTime,
	}
}

func (it *liveIterator) MoveNext() bool {
	if it.state != stateReady {
		it.exhaust()
		return false
	}

	b := it.bucket
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.evicted {
		it.exhaust()
		return false
	}

	it.pos = it.resync(b)
	if it.pos >= len(b.events) || b.events[it.pos].Timestamp() >= it.endTime {
		it.exhaust()
		return false
	}

	it.current = b.events[it.pos]
	it.anchor = it.current
	it.removed = false
	it.pos++
	return true
}

// resync returns the cursor position in b. Callers must hold b.mu.
func (it *liveIterator) resync(b *bucket) int {
	events := b.events
	if it.anchor == nil {
		return lowerBound(events, it.startTime)
	}
	if i := it.pos - 1; i >= 0 && i < len(events) && events[i] == it.anchor {
		return it.pos
	}
	if i := b.indexOf(it.anchor); i >= 0 {
		return i + 1
	}
	// The anchor was removed elsewhere. Everything already visited sorts at or before it.
	return upperBound(events, it.anchor.Timestamp())
}

func (it *liveIterator) Current() *eventstore.Event {
	return it.current
}

func (it *liveIterator) Remove() {
	if it.state == stateClosed {
		panic(eventstore.ErrIteratorClosed)
	}
	if it.current == nil || it.removed {
		panic(eventstore.ErrNoCurrentEvent)
	}

	b := it.bucket
	b.mu.Lock()
	if !b.evicted {
		i := it.pos - 1
		if i < 0 || i >= len(b.events) || b.events[i] != it.current {
			i = b.indexOf(it.current)
		}
		if i >= 0 {
			b.removeAt(i)
			it.pos = i
			it.anchor = nil
			if i > 0 {
				it.anchor = b.events[i-1]
			}
			it.store.metrics.remove(removeReasonIterator, 1)
		}
	}
	b.mu.Unlock()

	it.removed = true
}

func (it *liveIterator) Close() error {
	it.state = stateClosed
	it.bucket = nil
	it.anchor = nil
	it.current = nil
	return nil
}

func (it *liveIterator) exhaust() {
	if it.state == stateReady {
		it.state = stateExhausted
	}
	it.current = nil
}

// Verify that both iterators implement the EventIterator interface at compile time
var (
	_ eventstore.EventIterator = (*snapshotIterator)(nil)
	_ eventstore.EventIterator = (*liveIterator)(nil)
)
