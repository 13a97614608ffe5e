package dom

import "golang.org/x/net/html"

// RecordType is the kind of change a Record describes.
type RecordType int

const (
	ChildList RecordType = iota
	Attributes
	CharacterData
)

func (t RecordType) String() string {
	switch t {
	case ChildList:
		return "childList"
	case Attributes:
		return "attributes"
	case CharacterData:
		return "characterData"
	}
	return "unknown"
}

// Record is a single observed change.
type Record struct {
	Type          RecordType
	Target        *html.Node
	Added         []*html.Node
	Removed       []*html.Node
	AttributeName string
	OldValue      string
}

// ObserveOptions selects which records an Observer receives. Without
// Subtree only changes whose target is the observed node itself qualify.
type ObserveOptions struct {
	ChildList     bool
	Attributes    bool
	CharacterData bool
	Subtree       bool
}

// Callback receives the records queued for an Observer since the last
// delivery.
type Callback func(records []Record, o *Observer)

// Observer is a subscription to changes under one target node. It lives
// until Disconnect is called or the document is reset.
type Observer struct {
	doc       *Document
	target    *html.Node
	opts      ObserveOptions
	fn        Callback
	pending   []Record
	connected bool
}

// maxDeliveryRounds bounds Deliver when callbacks keep producing records
// for each other.
const maxDeliveryRounds = 64

// Observe subscribes fn to changes on target.
func (d *Document) Observe(target *html.Node, opts ObserveOptions, fn Callback) *Observer {
	o := &Observer{doc: d, target: target, opts: opts, fn: fn, connected: true}
	d.observers = append(d.observers, o)
	return o
}

// Disconnect stops delivery and drops queued records. Safe to call twice.
func (o *Observer) Disconnect() {
	if !o.connected {
		return
	}
	o.connected = false
	o.pending = nil
	obs := o.doc.observers
	for i, other := range obs {
		if other == o {
			o.doc.observers = append(obs[:i:i], obs[i+1:]...)
			break
		}
	}
}

// Connected reports whether the observer still receives records.
func (o *Observer) Connected() bool { return o.connected }

// Target returns the observed node.
func (o *Observer) Target() *html.Node { return o.target }

// TakeRecords returns and clears the queued records without invoking the
// callback.
func (o *Observer) TakeRecords() []Record {
	recs := o.pending
	o.pending = nil
	return recs
}

func (o *Observer) wants(rec Record) bool {
	switch rec.Type {
	case ChildList:
		if !o.opts.ChildList {
			return false
		}
	case Attributes:
		if !o.opts.Attributes {
			return false
		}
	case CharacterData:
		if !o.opts.CharacterData {
			return false
		}
	}
	if rec.Target == o.target {
		return true
	}
	return o.opts.Subtree && Contains(o.target, rec.Target)
}

// ObserverCount returns the number of connected observers.
func (d *Document) ObserverCount() int { return len(d.observers) }

func (d *Document) queue(rec Record) {
	for _, o := range d.observers {
		if o.wants(rec) {
			o.pending = append(o.pending, rec)
		}
	}
}

// Deliver hands queued records to their observers and repeats while the
// callbacks themselves queue more. It returns the number of callback
// invocations.
func (d *Document) Deliver() int {
	calls := 0
	for round := 0; round < maxDeliveryRounds; round++ {
		var ready []*Observer
		for _, o := range d.observers {
			if len(o.pending) > 0 {
				ready = append(ready, o)
			}
		}
		if len(ready) == 0 {
			return calls
		}
		for _, o := range ready {
			if !o.connected {
				continue
			}
			recs := o.TakeRecords()
			if len(recs) == 0 {
				continue
			}
			calls++
			o.fn(recs, o)
		}
	}
	return calls
}
