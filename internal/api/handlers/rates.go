package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/api/middleware"
	"github.com/dvloznov/ledger-ai/internal/ledger"
)

// RatesHandler serves the stateless endpoints: the exchange rate and the
// reclassification helper.
type RatesHandler struct {
	rates RateSource
	log   zerolog.Logger
}

// NewRatesHandler creates a new rates handler.
func NewRatesHandler(rates RateSource, log zerolog.Logger) *RatesHandler {
	return &RatesHandler{
		rates: rates,
		log:   log,
	}
}

// Register mounts the rate and reclassify routes.
func (h *RatesHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/exchange-rate", h.ExchangeRate).Methods(http.MethodGet)
	r.HandleFunc("/api/reclassify-transactions", h.Reclassify).Methods(http.MethodPost)
}

// ExchangeRate handles GET /api/exchange-rate. It always answers 200; upstream
// failures surface as a cached or fallback rate.
func (h *RatesHandler) ExchangeRate(w http.ResponseWriter, r *http.Request) {
	q := h.rates.Current(r.Context())
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rate":   q.Rate,
		"cached": q.Cached,
	})
}

type reclassifyRequest struct {
	Transactions       json.RawMessage `json:"transactions"`
	OldPurpose         string          `json:"oldPurpose"`
	NewPurpose         string          `json:"newPurpose"`
	DeleteTransactions bool            `json:"deleteTransactions"`
}

// Reclassify handles POST /api/reclassify-transactions
func (h *RatesHandler) Reclassify(w http.ResponseWriter, r *http.Request) {
	var req reclassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode reclassify request")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to reclassify transactions")
		return
	}

	if !isJSONArray(req.Transactions) {
		middleware.WriteError(w, http.StatusBadRequest, "transactions must be an array")
		return
	}

	var txs []ledger.TransactionRecord
	if err := json.Unmarshal(req.Transactions, &txs); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to reclassify transactions")
		return
	}

	updated, err := ledger.ReclassifyRecords(txs, req.OldPurpose, req.NewPurpose, req.DeleteTransactions)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reclassify transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to reclassify transactions")
		return
	}

	h.log.Debug().
		Str("old_purpose", req.OldPurpose).
		Bool("delete", req.DeleteTransactions).
		Int("in", len(txs)).
		Int("out", len(updated)).
		Msg("Reclassified transactions")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"updatedTransactions": updated,
	})
}

func isJSONArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		}
		return false
	}
	return false
}
