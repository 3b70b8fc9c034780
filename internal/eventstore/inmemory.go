package eventstore

import (
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

// InMemoryEventStore implements the eventstore.EventStore interface using in-memory type-partitioned storage.
// Each type has its own bucket kept sorted by timestamp, guarded by its own lock, so inserts into
// different types never contend for more than a map lookup.
// It is safe for concurrent use.
type InMemoryEventStore struct {
	config  *Config
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.RWMutex
	buckets map[string]*bucket // type -> events
	closed  bool
}

// NewInMemoryEventStore creates a new in-memory store with the default configuration.
func NewInMemoryEventStore() *InMemoryEventStore {
	store, err := NewInMemoryEventStoreWithConfig(NewConfig())
	if err != nil {
		// The default configuration is valid and registers no metrics
		panic(err)
	}
	return store
}

// NewInMemoryEventStoreWithConfig creates a new in-memory store.
// A nil config uses NewConfig.
func NewInMemoryEventStoreWithConfig(config *Config) (*InMemoryEventStore, error) {
	if config == nil {
		config = NewConfig()
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store := &InMemoryEventStore{
		config:  config,
		logger:  config.Logger.With("component", "eventstore"),
		buckets: make(map[string]*bucket),
	}

	if config.Registerer != nil {
		metrics, err := newMetrics(config.Registerer, store.Statistics)
		if err != nil {
			return nil, err
		}
		store.metrics = metrics
	}

	return store, nil
}

// Insert stores an event in the bucket of its type, creating the bucket on first use.
// Out-of-order events are sorted into place or rejected with ErrOutOfOrder, depending on
// the configured ordering policy.
func (s *InMemoryEventStore) Insert(event *eventstore.Event) error {
	if event == nil {
		panic(eventstore.ErrNilEvent)
	}

	for {
		b, err := s.bucketFor(event.Type(), true)
		if err != nil {
			s.metrics.insert(insertResultClosed)
			return err
		}

		b.mu.Lock()
		if b.evicted {
			// Lost a race with RemoveAll or Close; retry against the current bucket
			b.mu.Unlock()
			continue
		}
		err = b.insert(event, s.config.Ordering)
		b.mu.Unlock()

		if err != nil {
			s.metrics.insert(insertResultOutOfOrder)
			s.logger.Warn("rejected out-of-order event", "type", event.Type(), "timestamp", event.Timestamp())
			return err
		}

		s.metrics.insert(insertResultOK)
		s.logger.Debug("inserted event", "type", event.Type(), "timestamp", event.Timestamp())
		return nil
	}
}

// RemoveAll discards every event of eventType. Removing an unknown type is a no-op.
func (s *InMemoryEventStore) RemoveAll(eventType string) {
	s.mu.Lock()
	b, exists := s.buckets[eventType]
	delete(s.buckets, eventType)
	s.mu.Unlock()

	if !exists {
		return
	}

	n := b.evict()
	s.metrics.remove(removeReasonRemoveAll, n)
	s.logger.Info("removed all events of type", "type", eventType, "removed", n)
}

// Query returns an iterator over the events of eventType in [startTime, endTime)
// using the configured iteration mode.
func (s *InMemoryEventStore) Query(eventType string, startTime, endTime int64) eventstore.EventIterator {
	return s.QueryWithMode(eventType, startTime, endTime, s.config.Mode)
}

// QueryWithMode returns an iterator over the events of eventType in [startTime, endTime).
// The query never modifies the bucket, whether or not anything matches.
func (s *InMemoryEventStore) QueryWithMode(eventType string, startTime, endTime int64, mode eventstore.IterationMode) eventstore.EventIterator {
	b, err := s.bucketFor(eventType, false)
	if err != nil || b == nil {
		s.metrics.query(mode, 0)
		return newSnapshotIterator(s, nil)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	start, end, ok := matchRange(b.events, startTime, endTime)
	matched := 0
	if ok {
		matched = end - start + 1
	}
	s.metrics.query(mode, matched)

	if mode == eventstore.ModeLive {
		return newLiveIterator(s, b, startTime, endTime)
	}

	if !ok {
		return newSnapshotIterator(s, nil)
	}
	return newSnapshotIterator(s, slices.Clone(b.events[start:end+1]))
}

// Types returns the registered event types in lexical order.
func (s *InMemoryEventStore) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.buckets))
	for eventType := range s.buckets {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of stored events of eventType.
func (s *InMemoryEventStore) Count(eventType string) int {
	b, err := s.bucketFor(eventType, false)
	if err != nil || b == nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Statistics returns aggregate statistics about the store.
func (s *InMemoryEventStore) Statistics() eventstore.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := eventstore.Statistics{
		TypeCounts: make(map[string]int64, len(s.buckets)),
		TypeCount:  len(s.buckets),
	}
	for eventType, b := range s.buckets {
		b.mu.RLock()
		n := int64(len(b.events))
		b.mu.RUnlock()

		stats.TypeCounts[eventType] = n
		stats.TotalEvents += n
	}
	return stats
}

// Healthy reports whether the store still accepts events.
func (s *InMemoryEventStore) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Close clears all buckets. Later inserts fail with ErrStoreClosed and queries are empty.
// Closing twice is a no-op.
func (s *InMemoryEventStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	buckets := s.buckets
	s.buckets = make(map[string]*bucket)
	s.closed = true
	s.mu.Unlock()

	for _, b := range buckets {
		b.evict()
	}
	s.logger.Info("event store closed", "types", len(buckets))
	return nil
}

// bucketFor returns the bucket of eventType. When create is set, a missing bucket is created;
// the existence check and the creation happen under the same write lock.
func (s *InMemoryEventStore) bucketFor(eventType string, create bool) (*bucket, error) {
	s.mu.RLock()
	b, exists := s.buckets[eventType]
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return nil, eventstore.ErrStoreClosed
	}
	if exists || !create {
		return b, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, eventstore.ErrStoreClosed
	}
	if b, exists := s.buckets[eventType]; exists {
		return b, nil
	}

	b = newBucket()
	s.buckets[eventType] = b
	s.logger.Debug("created bucket", "type", eventType)
	return b, nil
}

// removeEvent deletes event from its bucket by identity. It reports whether the event was found.
func (s *InMemoryEventStore) removeEvent(event *eventstore.Event) bool {
	b, err := s.bucketFor(event.Type(), false)
	if err != nil || b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.evicted {
		return false
	}
	i := b.indexOf(event)
	if i < 0 {
		return false
	}
	b.removeAt(i)
	s.metrics.remove(removeReasonIterator, 1)
	return true
}

// Verify that InMemoryEventStore implements the EventStore interface at compile time
var (
	_ eventstore.EventStore    = (*InMemoryEventStore)(nil)
	_ eventstore.HealthChecker = (*InMemoryEventStore)(nil)
)
