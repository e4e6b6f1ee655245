package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags := s.engine.Tags()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := tags[:0]
		for _, t := range tags {
			if string(t.Kind) == kind {
				filtered = append(filtered, t)
			}
		}
		tags = filtered
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	address := domain.NormalizeMAC(mux.Vars(r)["address"])
	for _, t := range s.engine.Tags() {
		if t.Address == address {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "tag not found")
}

// handleNetworks supports ?open=true and ?band=2.4GHz filters. Ordering is
// the ledger's.
func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	openOnly := q.Get("open") == "true"
	band := q.Get("band")

	networks := s.engine.Networks()
	filtered := networks[:0]
	for _, n := range networks {
		if openOnly && !n.IsOpen() {
			continue
		}
		if band != "" && string(n.Band) != band {
			continue
		}
		filtered = append(filtered, n)
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	bssid := domain.NormalizeMAC(mux.Vars(r)["bssid"])
	for _, n := range s.engine.Networks() {
		if n.BSSID == bssid {
			writeJSON(w, http.StatusOK, n)
			return
		}
	}
	writeError(w, http.StatusNotFound, "network not found")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Statistics())
}

type autoConnectResponse struct {
	State     domain.ControllerState     `json:"state"`
	Connected string                     `json:"connected,omitempty"`
	Attempts  []domain.ConnectionAttempt `json:"attempts"`
	Backoffs  []domain.BackoffEntry      `json:"backoffs"`
}

func (s *Server) handleAutoConnect(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		writeError(w, http.StatusNotFound, "auto-connect disabled")
		return
	}
	writeJSON(w, http.StatusOK, autoConnectResponse{
		State:     s.controller.State(),
		Connected: s.controller.Connected(),
		Attempts:  s.controller.Attempts(),
		Backoffs:  s.controller.Backoffs(),
	})
}

// handleExport streams a snapshot as an attachment. Nothing is written to
// the configured sinks.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := domain.SnapshotKind(q.Get("kind"))
	if kind == "" {
		kind = domain.SnapshotNetworks
	}
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", kind))
		return
	}

	name := strings.ToLower(q.Get("format"))
	if name == "" {
		name = "json"
	}
	format, ok := s.formats[name]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", name))
		return
	}

	rec, err := s.records.Record(kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := fmt.Sprintf("%s-%s.%s", rec.Kind, rec.CapturedAt.UTC().Format("20060102-150405"), name)
	w.Header().Set("Content-Type", format.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := format.Encode(w, rec); err != nil {
		s.logger.Error("Export encoding failed", "kind", kind, "format", name, "error", err)
	}
}
