// Package mutation defines the wire types a page watcher sends to keep a
// server-side copy of a live results page in sync: full snapshots, and
// batches of DOM mutation records addressed by positional XPath.
package mutation

import (
	"errors"
	"fmt"
)

// Op is the type of DOM mutation observed.
type Op string

const (
	OpInsert   Op = "insert"    // node inserted; HTML carries the subtree
	OpRemove   Op = "remove"    // node removed
	OpText     Op = "text"      // character data changed
	OpAttr     Op = "attr"      // attribute set
	OpAttrDel  Op = "attr_del"  // attribute removed
	OpDocReset Op = "doc_reset" // whole document replaced; HTML carries it
)

// ErrInvalid is wrapped by Validate errors.
var ErrInvalid = errors.New("mutation: invalid")

// Record is a single DOM mutation.
type Record struct {
	Op       Op     `json:"op"`
	XPath    string `json:"xpath"`
	NodeType int    `json:"node_type,omitempty"` // 1=element, 3=text, 8=comment
	Tag      string `json:"tag,omitempty"`
	Name     string `json:"name,omitempty"` // attribute name for attr/attr_del
	Value    string `json:"value,omitempty"`
	OldValue string `json:"old_value,omitempty"`
	HTML     string `json:"html,omitempty"` // inserted subtree; text inserts use Value
}

// Batch is a group of records applied together.
type Batch struct {
	ID      string   `json:"id"`
	PageURL string   `json:"page_url,omitempty"`
	PageID  string   `json:"page_id"`
	Seq     uint64   `json:"seq"` // increasing per page
	Records []Record `json:"records"`
	// Timestamp is epoch milliseconds.
	Timestamp   int64  `json:"timestamp,omitempty"`
	SnapshotRef string `json:"snapshot_ref,omitempty"`
}

// Snapshot is a complete serialised document.
type Snapshot struct {
	ID        string `json:"id"`
	PageURL   string `json:"page_url,omitempty"`
	PageID    string `json:"page_id"`
	Provider  string `json:"provider,omitempty"`
	HTML      []byte `json:"html"`
	HTMLHash  string `json:"html_hash,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Validate checks that every record carries what its op needs.
func (r Record) Validate() error {
	switch r.Op {
	case OpInsert:
		if r.XPath == "" || (r.HTML == "" && r.Value == "") {
			return fmt.Errorf("%w: insert needs xpath and content", ErrInvalid)
		}
	case OpRemove, OpText:
		if r.XPath == "" {
			return fmt.Errorf("%w: %s needs xpath", ErrInvalid, r.Op)
		}
	case OpAttr, OpAttrDel:
		if r.XPath == "" || r.Name == "" {
			return fmt.Errorf("%w: %s needs xpath and name", ErrInvalid, r.Op)
		}
	case OpDocReset:
		if r.HTML == "" {
			return fmt.Errorf("%w: doc_reset needs html", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalid, r.Op)
	}
	return nil
}

// Validate checks the batch header and every record.
func (b *Batch) Validate() error {
	if b.PageID == "" {
		return fmt.Errorf("%w: batch without page_id", ErrInvalid)
	}
	for i, r := range b.Records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
