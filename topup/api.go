package topup

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/alovak/topup-playground/internal/failure"
	"github.com/alovak/topup-playground/topup/models"
	"github.com/go-chi/chi/v5"
)

// API is a HTTP API in front of the Service, standing in for the UI that
// collects transactions.
type API struct {
	service  *Service
	defaults RequestDefaults
	now      func() time.Time
}

func NewAPI(service *Service, defaults RequestDefaults) *API {
	return &API{
		service:  service,
		defaults: defaults,
		now:      time.Now,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/transactions", a.createTransaction)
}

func (a *API) createTransaction(w http.ResponseWriter, r *http.Request) {
	req := models.TransactionRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.defaults.Fill(&req, a.now()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	outcome, err := a.service.Process(r.Context(), req)
	if err != nil {
		if failure.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(outcome)
}
