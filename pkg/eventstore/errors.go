package eventstore

import "errors"

var (
	// ErrNilEvent is the panic value when a nil event is inserted
	ErrNilEvent = errors.New("event cannot be nil")
	// ErrEmptyType is returned when an event type label is empty
	ErrEmptyType = errors.New("event type cannot be empty")
	// ErrOutOfOrder is returned when an insert would break timestamp order under OrderingReject
	ErrOutOfOrder = errors.New("event timestamp is older than the latest event of its type")
	// ErrStoreClosed is returned when inserting into a closed store
	ErrStoreClosed = errors.New("event store is closed")
	// ErrNoCurrentEvent is the panic value when Remove is called without a current event
	ErrNoCurrentEvent = errors.New("iterator has no current event")
	// ErrIteratorClosed is the panic value when Remove is called on a closed iterator
	ErrIteratorClosed = errors.New("iterator is closed")
	// ErrInvalidMode is returned when an iteration mode is not recognised
	ErrInvalidMode = errors.New("invalid iteration mode")
	// ErrInvalidOrdering is returned when an ordering policy is not recognised
	ErrInvalidOrdering = errors.New("invalid ordering policy")
)
