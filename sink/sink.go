// Package sink delivers rewrite events (what the engine changed on a page)
// to output backends: in-process callbacks, JSON lines, webhooks.
package sink

import (
	"context"
	"time"

	"github.com/hazyhaar/farmshift/search"
)

// Event types.
const (
	TypeRewrite  = "rewrite"  // one-shot document rewrite
	TypeSnapshot = "snapshot" // page session loaded a snapshot
	TypeBatch    = "batch"    // page session applied a mutation batch
)

// Event reports one engine pass over a document.
type Event struct {
	Type      string         `json:"type"`
	PageID    string         `json:"page_id,omitempty"`
	PageURL   string         `json:"page_url,omitempty"`
	Seq       uint64         `json:"seq,omitempty"`
	Report    *search.Report `json:"report"`
	Unapplied int            `json:"unapplied,omitempty"`
	// Timestamp is epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, pageID string, rep *search.Report) Event {
	return Event{Type: typ, PageID: pageID, Report: rep, Timestamp: time.Now().UnixMilli()}
}

// Sink is the output interface.
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Send(context.Context, Event) error { return nil }
func (Discard) Close() error                      { return nil }
