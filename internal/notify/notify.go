package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/civicworks/wastewatch/internal/store"
)

// Config holds notification settings. With neither URL set the notifier is a
// no-op.
type Config struct {
	Webhook string
	NtfyURL string
}

// Notifier fires webhook and ntfy POSTs for record milestones: a new
// submission and a resolution. Delivery failures are logged and dropped; a
// notification never affects the mutation it describes.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// RecordCreated announces a freshly submitted record.
func (n *Notifier) RecordCreated(rec *store.Record) {
	n.send(fmt.Sprintf("new %s submission", kindLabel(rec.Kind)), rec)
}

// StatusChanged announces a status change. Only transitions to resolved are
// pushed; intermediate churn stays out of the notification channels.
func (n *Notifier) StatusChanged(rec *store.Record) {
	if rec.Status != store.StatusResolved {
		return
	}
	n.send(fmt.Sprintf("%s resolved", kindLabel(rec.Kind)), rec)
}

func kindLabel(k store.Kind) string {
	if k == store.KindReport {
		return "illegal-dump report"
	}
	return "garbage request"
}

type webhookPayload struct {
	Event     string `json:"event"`
	RecordID  string `json:"recordId"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) send(event string, rec *store.Record) {
	if n.cfg.Webhook != "" {
		n.sendWebhook(event, rec)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(event, rec)
	}
}

func (n *Notifier) sendWebhook(event string, rec *store.Record) {
	payload := webhookPayload{
		Event:     event,
		RecordID:  rec.ID,
		Kind:      string(rec.Kind),
		Status:    string(rec.Status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.cfg.Webhook, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("webhook notification failed", "error", err)
		return
	}
	resp.Body.Close()
}

func (n *Notifier) sendNtfy(event string, rec *store.Record) {
	payload := ntfyPayload{
		Title:    event,
		Message:  fmt.Sprintf("%s · %s · %s", rec.ID, rec.Kind, rec.Status),
		Priority: 3,
		Tags:     []string{"wastebasket"},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.cfg.NtfyURL, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("ntfy notification failed", "error", err)
		return
	}
	resp.Body.Close()
}
