package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/rollup"
)

// handleDailyRollup handles GET /v1/rollups/daily/{date}.
func (s *TallyServer) handleDailyRollup(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date: expected YYYY-MM-DD")
		return
	}

	row, err := s.store.GetRollup(r.Context(), rollup.Daily.RollupFamily, model.RollupKey(date))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleDailyRange handles GET /v1/rollups/daily?from=&to=.
func (s *TallyServer) handleDailyRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			writeError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD")
			return
		}
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	rows, err := s.store.ListRollups(r.Context(), rollup.Daily.RollupFamily, model.RollupKey(from), model.RollupKey(to), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rollups")
		return
	}
	if rows == nil {
		rows = []*model.RollupRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rollups": rows,
		"total":   len(rows),
	})
}

// handleItemRollup handles GET /v1/rollups/items/{id}.
func (s *TallyServer) handleItemRollup(w http.ResponseWriter, r *http.Request) {
	s.keyedRollup(w, r, rollup.Item)
}

// handleCustomerRollup handles GET /v1/rollups/customers/{id}.
func (s *TallyServer) handleCustomerRollup(w http.ResponseWriter, r *http.Request) {
	s.keyedRollup(w, r, rollup.Customer)
}

// handleResetRollup handles DELETE /v1/rollups/{family}/{key}. Reset is the
// only deletion path for rollup rows; the next matching fact rebuilds the row
// from zero.
func (s *TallyServer) handleResetRollup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("family")
	family, ok := rollup.ByName(name)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown rollup family "+name)
		return
	}
	key := model.RollupKey(r.PathValue("key"))

	if err := s.store.ResetRollup(r.Context(), family.RollupFamily, key); err != nil {
		writeDomainError(w, err)
		return
	}
	s.logger.Info("rollup reset", "family", family.Name, "key", string(key))
	w.WriteHeader(http.StatusNoContent)
}

func (s *TallyServer) keyedRollup(w http.ResponseWriter, r *http.Request, family rollup.Family) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	row, err := s.store.GetRollup(r.Context(), family.RollupFamily, model.RollupKey(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
