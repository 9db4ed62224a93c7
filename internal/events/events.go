package events

import "github.com/civicworks/wastewatch/internal/store"

// Event type names, as delivered on the realtime channel.
const (
	TypeNewRequest    = "newRequest"
	TypeNewReport     = "newReport"
	TypeStatusUpdated = "statusUpdated"
)

// Event is a record change pushed to connected viewers. Record carries the
// full post-mutation record, the same value the mutation response returned.
type Event struct {
	Type   string        `json:"type"`
	Record *store.Record `json:"record"`
}

// Created returns the creation event for a freshly inserted record.
func Created(rec *store.Record) Event {
	t := TypeNewRequest
	if rec.Kind == store.KindReport {
		t = TypeNewReport
	}
	return Event{Type: t, Record: rec}
}

// StatusUpdated returns the status-change event for an updated record.
func StatusUpdated(rec *store.Record) Event {
	return Event{Type: TypeStatusUpdated, Record: rec}
}

// Broadcaster sends events to connected viewer sessions.
// A nil Broadcaster is safe to use -- Broadcast becomes a no-op.
type Broadcaster interface {
	Broadcast(e Event)
}
