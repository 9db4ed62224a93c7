// Package viewer is the client side of the realtime channel: a local replica
// of the record collections plus a websocket client that keeps it reconciled.
// The replica is possibly stale by construction; only broadcast events and
// explicit re-seeding move it toward the server's state.
package viewer

import (
	"sync"

	"github.com/civicworks/wastewatch/internal/events"
	"github.com/civicworks/wastewatch/internal/store"
)

type Replica struct {
	mu      sync.RWMutex
	records map[store.Kind]map[string]*store.Record
}

func NewReplica() *Replica {
	return &Replica{
		records: map[store.Kind]map[string]*store.Record{
			store.KindRequest: {},
			store.KindReport:  {},
		},
	}
}

// Seed replaces a collection with the result of a full fetch. Called on every
// (re)connect; it is the only catch-up mechanism for missed events.
func (r *Replica) Seed(kind store.Kind, recs []*store.Record) {
	m := make(map[string]*store.Record, len(recs))
	for _, rec := range recs {
		m[rec.ID] = rec
	}
	r.mu.Lock()
	r.records[kind] = m
	r.mu.Unlock()
}

// Apply reconciles one broadcast event. Creation events insert idempotently:
// an id already present is left untouched. Status events replace the local
// record wholesale, so the last delivered event wins regardless of
// timestamps. A status event for an unknown id inserts the record (the seed
// fetch may have raced the mutation).
func (r *Replica) Apply(e events.Event) {
	rec := e.Record
	if rec == nil || rec.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.records[rec.Kind]
	if m == nil {
		m = make(map[string]*store.Record)
		r.records[rec.Kind] = m
	}
	switch e.Type {
	case events.TypeNewRequest, events.TypeNewReport:
		if _, ok := m[rec.ID]; ok {
			return
		}
		m[rec.ID] = rec
	case events.TypeStatusUpdated:
		m[rec.ID] = rec
	}
}

// Get returns the local copy of a record, which may lag the server.
func (r *Replica) Get(kind store.Kind, id string) (*store.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[kind][id]
	return rec, ok
}

// Len returns the number of records held for a collection.
func (r *Replica) Len(kind store.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records[kind])
}

// Records returns a snapshot slice of a collection, in no particular order.
func (r *Replica) Records(kind store.Kind) []*store.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*store.Record, 0, len(r.records[kind]))
	for _, rec := range r.records[kind] {
		out = append(out, rec)
	}
	return out
}
