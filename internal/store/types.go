package store

import (
	"encoding/json"
	"errors"
	"time"
)

// Kind names a record collection.
type Kind string

const (
	KindRequest Kind = "requests"
	KindReport  Kind = "reports"
)

// Status is the lifecycle state of a record. Only the values below are
// accepted by UpdateStatus; there is no transition graph, any allowed value
// may follow any other.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// ValidStatus reports whether s is one of the allowed status values.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when no record with the given id exists in the
	// target collection.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidStatus is returned for a status value outside the allowed set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrVersionConflict is returned when an expected version no longer
	// matches the stored record.
	ErrVersionConflict = errors.New("version conflict")
)

// Record is a garbage-collection request or illegal-dump report. Payload holds
// the submitter-supplied fields and is never inspected beyond being a valid
// JSON object.
type Record struct {
	ID        string
	Kind      Kind
	Status    Status
	Version   int64
	Payload   map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// reserved keys always come from the record itself, never from the payload.
var reservedKeys = []string{"id", "kind", "status", "version", "createdAt", "updatedAt"}

// MarshalJSON flattens the payload fields and the record's own fields into a
// single JSON object, the way a document mapper would return the stored
// document.
func (r *Record) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Payload)+len(reservedKeys))
	for k, v := range r.Payload {
		doc[k] = v
	}
	doc["id"] = r.ID
	doc["kind"] = string(r.Kind)
	doc["status"] = string(r.Status)
	doc["version"] = r.Version
	doc["createdAt"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	doc["updatedAt"] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(doc)
}

// UnmarshalJSON is the inverse of MarshalJSON: known fields are lifted out of
// the document and everything else becomes the payload.
func (r *Record) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if v, ok := doc["id"].(string); ok {
		r.ID = v
	}
	if v, ok := doc["kind"].(string); ok {
		r.Kind = Kind(v)
	}
	if v, ok := doc["status"].(string); ok {
		r.Status = Status(v)
	}
	if v, ok := doc["version"].(float64); ok {
		r.Version = int64(v)
	}
	if v, ok := doc["createdAt"].(string); ok {
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v, ok := doc["updatedAt"].(string); ok {
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	for _, k := range reservedKeys {
		delete(doc, k)
	}
	r.Payload = doc
	return nil
}
