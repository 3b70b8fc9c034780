// Package eventstore provides the public types of the typed in-memory event store.
//
// This package defines the core abstractions shared by the store implementation and its front doors:
//   - Event: an immutable (type, timestamp) value
//   - EventStore: type-partitioned storage with insert, bulk removal and half-open range queries
//   - EventIterator: a forward-only cursor over a query result that can remove the current event
//
// Each event type owns its own bucket, kept sorted by timestamp. A query for [start, end) locates
// the matching run of a bucket with two binary searches and hands back an iterator over it.
//
// Example usage:
//
//	store.Insert(eventstore.NewEvent("login", 1700000000))
//
//	it := store.Query("login", 1700000000, 1700003600)
//	defer it.Close()
//	for it.MoveNext() {
//		if shouldDrop(it.Current()) {
//			it.Remove()
//		}
//	}
//
// Iterators come in two modes. ModeSnapshot walks a copy of the matching range and forwards removals
// to the store; ModeLive walks the store's bucket directly. See IterationMode.
package eventstore
