// Package idgen produces the identifiers farmshift hands out: run ids on
// reports, page session ids and snapshot ids.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns time-sortable RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every id of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the generator behind New.
var Default Generator = UUIDv7()

// Typed generators.
var (
	Run      = Prefixed("run_", func() string { return Default() })
	Page     = Prefixed("page_", func() string { return Default() })
	Snapshot = Prefixed("snap_", func() string { return Default() })
)

// New produces an id with Default.
func New() string {
	return Default()
}

// Parse validates a bare UUID and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	return u.String(), nil
}
