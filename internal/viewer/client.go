package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/civicworks/wastewatch/internal/events"
	"github.com/civicworks/wastewatch/internal/store"
)

// Client maintains a Replica against a running server. On every connect it
// seeds the replica from the list endpoints, then applies events as they
// arrive; a dropped connection is redialed and re-seeded, which is how events
// missed while offline are recovered.
type Client struct {
	baseURL string
	replica *Replica
	http    *http.Client
	logger  *slog.Logger

	// OnEvent, when set, is called after each event is applied.
	OnEvent func(e events.Event)

	// redialWait is shortened in tests.
	redialWait time.Duration
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		replica:    NewReplica(),
		http:       &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		redialWait: 2 * time.Second,
	}
}

func (c *Client) Replica() *Replica {
	return c.replica
}

// Seed fetches both collections and resets the replica to them.
func (c *Client) Seed(ctx context.Context) error {
	for _, kind := range []store.Kind{store.KindRequest, store.KindReport} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/api/%s", c.baseURL, kind), nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", kind, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("fetch %s: unexpected status %d", kind, resp.StatusCode)
		}
		var recs []*store.Record
		err = json.NewDecoder(resp.Body).Decode(&recs)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode %s: %w", kind, err)
		}
		c.replica.Seed(kind, recs)
	}
	return nil
}

// Run connects to the realtime channel and applies events until ctx is
// canceled, redialing after every disconnect.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("viewer connection lost", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.redialWait):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Seed after the socket is open so nothing can slip between the fetch and
	// the start of the stream.
	if err := c.Seed(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var e events.Event
		if err := conn.ReadJSON(&e); err != nil {
			return err
		}
		c.replica.Apply(e)
		if c.OnEvent != nil {
			c.OnEvent(e)
		}
	}
}
