package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/tally/internal/events"
	"github.com/alfredjeanlab/tally/internal/model"
)

// handleListAudit handles GET /v1/audit.
func (s *TallyServer) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.AuditFilter{Subject: q.Get("subject")}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from: expected RFC 3339 timestamp")
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to: expected RFC 3339 timestamp")
			return
		}
		filter.To = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	entries, err := s.store.ListAudit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []*model.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// handleListPartitions handles GET /v1/partitions.
func (s *TallyServer) handleListPartitions(w http.ResponseWriter, r *http.Request) {
	partitions, err := s.store.ListPartitions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list partitions")
		return
	}
	if partitions == nil {
		partitions = []*model.Partition{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"partitions": partitions,
		"total":      len(partitions),
	})
}

// handleEnsurePartitions handles POST /v1/partitions/ensure.
func (s *TallyServer) handleEnsurePartitions(w http.ResponseWriter, r *http.Request) {
	created, err := s.manager.EnsureAhead(r.Context(), time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for _, p := range created {
		s.publish(r.Context(), events.TopicPartitionCreated, events.PartitionCreated{Partition: p})
	}
	if created == nil {
		created = []*model.Partition{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"created": created,
		"total":   len(created),
	})
}
