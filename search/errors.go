package search

import "errors"

var (
	// ErrNotImplemented is returned by a transformation a module did not
	// supply. It aborts the invocation.
	ErrNotImplemented = errors.New("search: transformation not implemented")

	// ErrUnknownProvider is returned for a provider id with no adapter.
	ErrUnknownProvider = errors.New("search: unknown provider")
)
