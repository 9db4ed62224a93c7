package webserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civicworks/wastewatch/internal/events"
	"github.com/civicworks/wastewatch/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError emits the {message} failure body every non-2xx response uses.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleCreate(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "request body must be a JSON object")
			return
		}
		rec, err := s.store.Create(kind, payload)
		if err != nil {
			s.logger.Error("create failed", "kind", kind, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.emit(events.Created(rec))
		if s.notifier != nil {
			go s.notifier.RecordCreated(rec)
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

type statusBody struct {
	Status          store.Status `json:"status"`
	ExpectedVersion int64        `json:"expectedVersion"`
}

func (s *Server) handleUpdateStatus(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var body statusBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "request body must be a JSON object with a status field")
			return
		}

		rec, err := s.store.UpdateStatus(kind, id, body.Status, body.ExpectedVersion)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "no such record: "+id)
			return
		case errors.Is(err, store.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, store.ErrVersionConflict):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			s.logger.Error("status update failed", "kind", kind, "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.emit(events.StatusUpdated(rec))
		if s.notifier != nil {
			go s.notifier.StatusChanged(rec)
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleList(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.store.List(kind)
		if err != nil {
			s.logger.Error("list failed", "kind", kind, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if records == nil {
			records = []*store.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (s *Server) handleGet(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, err := s.store.Get(kind, id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such record: "+id)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
