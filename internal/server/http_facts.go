package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/tally/internal/events"
	"github.com/alfredjeanlab/tally/internal/model"
)

type appendFactInput struct {
	OccurredAt  time.Time `json:"occurred_at"`
	CustomerID  string    `json:"customer_id"`
	ItemID      string    `json:"item_id"`
	Quantity    int64     `json:"quantity"`
	AmountCents int64     `json:"amount_cents"`
	Actor       string    `json:"actor"`
}

// handleAppendFact handles POST /v1/facts.
func (s *TallyServer) handleAppendFact(w http.ResponseWriter, r *http.Request) {
	var in appendFactInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	event := &model.FactEvent{
		OccurredAt:  in.OccurredAt,
		CustomerID:  in.CustomerID,
		ItemID:      in.ItemID,
		Quantity:    in.Quantity,
		AmountCents: in.AmountCents,
		Actor:       in.Actor,
	}
	committed, err := s.ledger.Append(r.Context(), event)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.publish(r.Context(), events.TopicFactAppended, events.FactAppended{Fact: committed})

	writeJSON(w, http.StatusCreated, committed)
}

// handleListFacts handles GET /v1/facts.
func (s *TallyServer) handleListFacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter model.FactFilter

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

	facts, err := s.ledger.Facts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list facts")
		return
	}
	if facts == nil {
		facts = []*model.FactEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"facts": facts,
		"total": len(facts),
	})
}
