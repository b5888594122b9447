package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/tally/internal/audit"
	"github.com/alfredjeanlab/tally/internal/events"
	"github.com/alfredjeanlab/tally/internal/idgen"
	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/pii"
	"github.com/alfredjeanlab/tally/internal/store"
)

type createItemInput struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// handleCreateItem handles POST /v1/items.
func (s *TallyServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var in createItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := idgen.Item()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	item := &model.Item{ID: id, Name: in.Name, PriceCents: in.PriceCents}
	if err := model.ValidateItem(item); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.store.CreateItem(r.Context(), item); err != nil {
		writeDomainError(w, err)
		return
	}

	s.publish(r.Context(), events.TopicItemCreated, events.ItemCreated{Item: item})

	writeJSON(w, http.StatusCreated, item)
}

// handleGetItem handles GET /v1/items/{id}.
func (s *TallyServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type createCustomerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// handleCreateCustomer handles POST /v1/customers. The customer row, its
// lookup digests, and the audit entry commit together.
func (s *TallyServer) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in createCustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := idgen.Customer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	customer := &model.Customer{ID: id, Name: in.Name, Email: in.Email, Phone: in.Phone}
	if err := model.ValidateCustomer(customer); err != nil {
		writeDomainError(w, err)
		return
	}

	ctx := r.Context()
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateCustomer(ctx, customer); err != nil {
			return err
		}
		if err := s.lookup.Record(ctx, tx, customer); err != nil {
			return err
		}
		entry, err := audit.CustomerChange(model.ActionCustomerCreated, nil, customer)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, entry)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.publish(ctx, events.TopicCustomerCreated, events.CustomerCreated{CustomerID: customer.ID})

	writeJSON(w, http.StatusCreated, customer)
}

// handleGetCustomer handles GET /v1/customers/{id}.
func (s *TallyServer) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.store.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

type updateCustomerInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// handleUpdateCustomer handles PATCH /v1/customers/{id}. Contact changes
// refresh the lookup digests in the same transaction.
func (s *TallyServer) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in updateCustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	var updated *model.Customer
	changes := map[string]any{}
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		current, err := tx.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		before := *current

		if in.Name != nil && *in.Name != current.Name {
			current.Name = *in.Name
			changes["name"] = *in.Name
		}
		if in.Email != nil && *in.Email != current.Email {
			current.Email = *in.Email
			changes["email"] = *in.Email
		}
		if in.Phone != nil && *in.Phone != current.Phone {
			current.Phone = *in.Phone
			changes["phone"] = *in.Phone
		}
		if err := model.ValidateCustomer(current); err != nil {
			return err
		}
		if len(changes) == 0 {
			updated = current
			return nil
		}

		if err := tx.UpdateCustomer(ctx, current); err != nil {
			return err
		}
		if err := s.lookup.Record(ctx, tx, current); err != nil {
			return err
		}
		entry, err := audit.CustomerChange(model.ActionCustomerUpdated, &before, current)
		if err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, entry); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if len(changes) > 0 {
		s.publish(ctx, events.TopicCustomerUpdated, events.CustomerUpdated{CustomerID: id, Changes: changes})
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleLookupCustomer handles GET /v1/customers/lookup?email=|phone=.
// force=fast requires the digest path and skips the scan fallback.
func (s *TallyServer) handleLookupCustomer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, phone := q.Get("email"), q.Get("phone")
	if (email == "") == (phone == "") {
		writeError(w, http.StatusBadRequest, "exactly one of email or phone is required")
		return
	}
	forceFast := q.Get("force") == "fast"

	var (
		customer *model.Customer
		path     pii.Path
		err      error
	)
	if email != "" {
		customer, path, err = s.lookup.LookupEmail(r.Context(), email, forceFast)
	} else {
		customer, path, err = s.lookup.LookupPhone(r.Context(), phone, forceFast)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customer": customer,
		"path":     path,
	})
}
