package viewer_test

import (
	"testing"

	"github.com/civicworks/wastewatch/internal/events"
	"github.com/civicworks/wastewatch/internal/store"
	"github.com/civicworks/wastewatch/internal/viewer"
)

func request(id string, status store.Status, version int64) *store.Record {
	return &store.Record{ID: id, Kind: store.KindRequest, Status: status, Version: version}
}

func TestApplyCreatedInserts(t *testing.T) {
	r := viewer.NewReplica()
	r.Apply(events.Created(request("a", store.StatusPending, 1)))

	got, ok := r.Get(store.KindRequest, "a")
	if !ok {
		t.Fatal("record not inserted")
	}
	if got.Status != store.StatusPending {
		t.Errorf("status: got %q", got.Status)
	}
	if r.Len(store.KindRequest) != 1 {
		t.Errorf("len: got %d", r.Len(store.KindRequest))
	}
}

func TestApplyCreatedIsIdempotent(t *testing.T) {
	r := viewer.NewReplica()
	r.Apply(events.Created(request("a", store.StatusInProgress, 2)))
	// A duplicate create for the same id is a no-op and must not regress the
	// local copy.
	r.Apply(events.Created(request("a", store.StatusPending, 1)))

	got, _ := r.Get(store.KindRequest, "a")
	if got.Status != store.StatusInProgress {
		t.Errorf("duplicate create overwrote record: %q", got.Status)
	}
	if r.Len(store.KindRequest) != 1 {
		t.Errorf("len: got %d want 1", r.Len(store.KindRequest))
	}
}

func TestApplyStatusUpdatedReplacesWholesale(t *testing.T) {
	r := viewer.NewReplica()
	rec := request("a", store.StatusPending, 1)
	rec.Payload = map[string]any{"location": "Elm St"}
	r.Apply(events.Created(rec))

	updated := request("a", store.StatusResolved, 2)
	updated.Payload = map[string]any{"location": "Elm St", "crew": "7"}
	r.Apply(events.StatusUpdated(updated))

	got, _ := r.Get(store.KindRequest, "a")
	if got.Status != store.StatusResolved || got.Version != 2 {
		t.Errorf("got %q v%d", got.Status, got.Version)
	}
	if got.Payload["crew"] != "7" {
		t.Error("replacement must be wholesale, not a merge of status only")
	}
}

func TestApplyStatusUpdatedLastDeliveryWins(t *testing.T) {
	r := viewer.NewReplica()
	r.Apply(events.Created(request("a", store.StatusPending, 1)))
	r.Apply(events.StatusUpdated(request("a", store.StatusResolved, 3)))
	// Delivery order decides, even when the later event carries an older
	// version.
	r.Apply(events.StatusUpdated(request("a", store.StatusInProgress, 2)))

	got, _ := r.Get(store.KindRequest, "a")
	if got.Status != store.StatusInProgress {
		t.Errorf("got %q, want the last delivered status", got.Status)
	}
}

func TestApplyStatusUpdatedUnknownIDInserts(t *testing.T) {
	r := viewer.NewReplica()
	r.Apply(events.StatusUpdated(request("a", store.StatusResolved, 2)))
	if _, ok := r.Get(store.KindRequest, "a"); !ok {
		t.Error("status event for unknown id should insert the record")
	}
}

func TestSeedResetsCollection(t *testing.T) {
	r := viewer.NewReplica()
	r.Apply(events.Created(request("stale", store.StatusPending, 1)))

	r.Seed(store.KindRequest, []*store.Record{
		request("a", store.StatusPending, 1),
		request("b", store.StatusResolved, 4),
	})

	if _, ok := r.Get(store.KindRequest, "stale"); ok {
		t.Error("seed must replace the collection, not merge into it")
	}
	if r.Len(store.KindRequest) != 2 {
		t.Errorf("len: got %d want 2", r.Len(store.KindRequest))
	}
}

func TestCollectionsAreIndependent(t *testing.T) {
	r := viewer.NewReplica()
	r.Apply(events.Created(&store.Record{ID: "a", Kind: store.KindReport, Status: store.StatusPending}))
	if r.Len(store.KindRequest) != 0 {
		t.Error("report leaked into requests")
	}
	if r.Len(store.KindReport) != 1 {
		t.Error("report missing")
	}
}

func TestApplyIgnoresMalformedEvents(t *testing.T) {
	r := viewer.NewReplica()
	r.Apply(events.Event{Type: events.TypeStatusUpdated})
	r.Apply(events.Event{Type: events.TypeNewRequest, Record: &store.Record{}})
	if r.Len(store.KindRequest) != 0 {
		t.Error("malformed events must be dropped")
	}
}
