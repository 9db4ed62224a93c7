package webserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/civicworks/wastewatch/internal/events"
	"github.com/civicworks/wastewatch/internal/hub"
	"github.com/civicworks/wastewatch/internal/store"
	"github.com/civicworks/wastewatch/internal/webserver"
)

// Full-path check: HTTP mutation in, websocket event out, with the failure
// paths emitting nothing.
func TestRealtimeChannelEndToEnd(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	st.Migrate()

	h := hub.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer h.Close()
	srv := webserver.New(st, h, nil, webserver.Config{AllowedOrigin: "*"}, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("viewer session never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Successful create reaches the viewer with the response's record.
	post, err := http.Post(ts.URL+"/api/requests", "application/json",
		bytes.NewReader([]byte(`{"location":"Elm St"}`)))
	if err != nil {
		t.Fatal(err)
	}
	var created map[string]any
	json.NewDecoder(post.Body).Decode(&created)
	post.Body.Close()
	if post.StatusCode != 201 {
		t.Fatalf("create: got %d", post.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e events.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if e.Type != events.TypeNewRequest {
		t.Errorf("type: got %q", e.Type)
	}
	if e.Record.ID != created["id"] {
		t.Errorf("event record %q, response record %v", e.Record.ID, created["id"])
	}
	if e.Record.Payload["location"] != "Elm St" {
		t.Errorf("event payload: %v", e.Record.Payload)
	}

	// A failed patch emits nothing: the next event the viewer sees is the
	// one from the following successful patch.
	patch := func(id, body string) *http.Response {
		req, _ := http.NewRequest("PATCH", ts.URL+"/api/requests/"+id+"/status",
			strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		r.Body.Close()
		return r
	}
	if r := patch("doesnotexist", `{"status":"resolved"}`); r.StatusCode != 404 {
		t.Fatalf("missing id: got %d", r.StatusCode)
	}
	if r := patch(created["id"].(string), `{"status":"in-progress"}`); r.StatusCode != 200 {
		t.Fatalf("patch: got %d", r.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if e.Type != events.TypeStatusUpdated || e.Record.Status != store.StatusInProgress {
		t.Errorf("expected the successful patch's event, got %q %q", e.Type, e.Record.Status)
	}
}
