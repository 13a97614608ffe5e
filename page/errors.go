package page

import "errors"

var (
	// ErrNoSession is returned when no session exists for a page id.
	ErrNoSession = errors.New("page: no session")

	// ErrStaleBatch is returned for a batch whose sequence number is not
	// greater than the last one applied.
	ErrStaleBatch = errors.New("page: stale batch")

	// ErrNoDocument is returned when a batch arrives before any snapshot.
	ErrNoDocument = errors.New("page: no snapshot loaded")
)
