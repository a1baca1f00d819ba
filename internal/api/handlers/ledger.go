package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/api/middleware"
	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/ledger"
	"github.com/dvloznov/ledger-ai/internal/views"
)

// LedgerHandler serves the ledger collections.
type LedgerHandler struct {
	ledger *ledger.Ledger
	rates  RateSource
	log    zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler. rates prices transfers
// whose request does not carry a rate.
func NewLedgerHandler(l *ledger.Ledger, rates RateSource, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: l,
		rates:  rates,
		log:    log,
	}
}

// Register mounts the ledger routes.
func (h *LedgerHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/accounts", h.ListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts", h.CreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/api/accounts/{id}", h.UpdateAccount).Methods(http.MethodPut)
	r.HandleFunc("/api/accounts/{id}", h.DeleteAccount).Methods(http.MethodDelete)

	r.HandleFunc("/api/transactions", h.ListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/api/transactions", h.SaveTransactions).Methods(http.MethodPost)
	r.HandleFunc("/api/transactions/{id}", h.UpdateTransaction).Methods(http.MethodPut)
	r.HandleFunc("/api/transactions/{id}", h.DeleteTransaction).Methods(http.MethodDelete)

	r.HandleFunc("/api/purposes", h.ListPurposes).Methods(http.MethodGet)
	r.HandleFunc("/api/purposes", h.CreatePurpose).Methods(http.MethodPost)
	r.HandleFunc("/api/purposes/{name}", h.RenamePurpose).Methods(http.MethodPut)
	r.HandleFunc("/api/purposes/{name}", h.DeletePurpose).Methods(http.MethodDelete)

	r.HandleFunc("/api/templates", h.ListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/api/templates", h.CreateTemplate).Methods(http.MethodPost)
	r.HandleFunc("/api/templates/{id}", h.UpdateTemplate).Methods(http.MethodPut)
	r.HandleFunc("/api/templates/{id}", h.DeleteTemplate).Methods(http.MethodDelete)
	r.HandleFunc("/api/templates/{id}/instantiate", h.InstantiateTemplate).Methods(http.MethodPost)

	r.HandleFunc("/api/incomes", h.ListIncomes).Methods(http.MethodGet)
	r.HandleFunc("/api/incomes", h.CreateIncome).Methods(http.MethodPost)
	r.HandleFunc("/api/incomes/{id}", h.DeleteIncome).Methods(http.MethodDelete)

	r.HandleFunc("/api/notes", h.GetNotes).Methods(http.MethodGet)
	r.HandleFunc("/api/notes", h.PutNotes).Methods(http.MethodPut)

	r.HandleFunc("/api/ledger/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/ledger/flush", h.Flush).Methods(http.MethodPost)
	r.HandleFunc("/api/ledger/reload", h.Reload).Methods(http.MethodPost)
}

// ListAccounts handles GET /api/accounts
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.ledger.Accounts())
}

// CreateAccount handles POST /api/accounts
func (h *LedgerHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var in domain.AccountInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	acc, err := h.ledger.AddAccount(r.Context(), in)
	if err != nil {
		writeErr(w, h.log, err, "Failed to create account")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, acc)
}

// UpdateAccount handles PUT /api/accounts/{id}
func (h *LedgerHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var in domain.AccountInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	acc, err := h.ledger.EditAccount(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeErr(w, h.log, err, "Failed to update account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, acc)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *LedgerHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteAccount(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, h.log, err, "Failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTransactions handles GET /api/transactions?month=&accountId=&purpose=&type=
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ledger.TransactionFilter{
		Month:     query.Get("month"),
		AccountID: query.Get("accountId"),
		Purpose:   query.Get("purpose"),
		Type:      domain.TxType(query.Get("type")),
	}

	if filter.Month != "" {
		if _, err := time.Parse(domain.MonthLayout, filter.Month); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid month format, want YYYY-MM")
			return
		}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid type")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.ledger.Transactions(filter))
}

// saveRequest is the body of POST /api/transactions. Kind selects which of
// the other fields is read.
type saveRequest struct {
	Kind         string                    `json:"kind"`
	Transaction  *domain.TransactionInput  `json:"transaction,omitempty"`
	Transfer     *domain.TransferInput     `json:"transfer,omitempty"`
	Rate         float64                   `json:"rate,omitempty"`
	Transactions []domain.TransactionInput `json:"transactions,omitempty"`
}

func (h *LedgerHandler) command(r *http.Request, req saveRequest) (ledger.SaveCommand, error) {
	switch req.Kind {
	case "create", "":
		if req.Transaction == nil {
			return nil, domain.Validationf("transaction is required")
		}
		return ledger.CreateCommand{Input: *req.Transaction}, nil
	case "transfer":
		if req.Transfer == nil {
			return nil, domain.Validationf("transfer is required")
		}
		rate := req.Rate
		if rate <= 0 && h.rates != nil {
			rate = h.rates.Current(r.Context()).Rate
		}
		return ledger.CreateTransferCommand{Transfer: *req.Transfer, Rate: rate}, nil
	case "batch":
		return ledger.CreateBatchCommand{Inputs: req.Transactions}, nil
	}
	return nil, domain.Validationf("unknown kind %q", req.Kind)
}

// SaveTransactions handles POST /api/transactions
func (h *LedgerHandler) SaveTransactions(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	cmd, err := h.command(r, req)
	if err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	created, err := h.ledger.Save(r.Context(), cmd)
	if err != nil {
		writeErr(w, h.log, err, "Failed to save transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"transactions": created,
		"count":        len(created),
	})
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *LedgerHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	tx, err := h.ledger.EditTransaction(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeErr(w, h.log, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *LedgerHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteTransaction(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, h.log, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPurposes handles GET /api/purposes
func (h *LedgerHandler) ListPurposes(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"purposes": h.ledger.Purposes(),
		"usage":    h.ledger.PurposeUsage(),
	})
}

// CreatePurpose handles POST /api/purposes
func (h *LedgerHandler) CreatePurpose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	if err := h.ledger.AddPurpose(r.Context(), req.Name); err != nil {
		writeErr(w, h.log, err, "Failed to add purpose")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{"purposes": h.ledger.Purposes()})
}

// RenamePurpose handles PUT /api/purposes/{name}
func (h *LedgerHandler) RenamePurpose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewName string `json:"newName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	if err := h.ledger.RenamePurpose(r.Context(), mux.Vars(r)["name"], req.NewName); err != nil {
		writeErr(w, h.log, err, "Failed to rename purpose")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"purposes": h.ledger.Purposes()})
}

// DeletePurpose handles DELETE /api/purposes/{name}?policy=reclassify|deleteAll
func (h *LedgerHandler) DeletePurpose(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	policy := domain.DeletePolicy(r.URL.Query().Get("policy"))

	if err := h.ledger.DeletePurpose(r.Context(), name, policy); err != nil {
		writeErr(w, h.log, err, "Failed to delete purpose")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTemplates handles GET /api/templates
func (h *LedgerHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.ledger.Templates())
}

// CreateTemplate handles POST /api/templates
func (h *LedgerHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.Template
	if err := decodeJSON(r, &t); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	created, err := h.ledger.AddTemplate(r.Context(), t)
	if err != nil {
		writeErr(w, h.log, err, "Failed to create template")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// UpdateTemplate handles PUT /api/templates/{id}
func (h *LedgerHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.Template
	if err := decodeJSON(r, &t); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	updated, err := h.ledger.EditTemplate(r.Context(), mux.Vars(r)["id"], t)
	if err != nil {
		writeErr(w, h.log, err, "Failed to update template")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteTemplate handles DELETE /api/templates/{id}
func (h *LedgerHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteTemplate(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, h.log, err, "Failed to delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InstantiateTemplate handles POST /api/templates/{id}/instantiate
func (h *LedgerHandler) InstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64   `json:"amount"`
		Date   time.Time `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	tx, err := h.ledger.InstantiateTemplate(r.Context(), mux.Vars(r)["id"], req.Amount, req.Date)
	if err != nil {
		writeErr(w, h.log, err, "Failed to instantiate template")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// ListIncomes handles GET /api/incomes
func (h *LedgerHandler) ListIncomes(w http.ResponseWriter, r *http.Request) {
	incomes := h.ledger.Incomes()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"incomes": incomes,
		"byMonth": views.IncomeTotalsByMonth(incomes),
	})
}

// CreateIncome handles POST /api/incomes
func (h *LedgerHandler) CreateIncome(w http.ResponseWriter, r *http.Request) {
	var in domain.IncomeInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	inc, err := h.ledger.AddIncome(r.Context(), in)
	if err != nil {
		writeErr(w, h.log, err, "Failed to add income")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, inc)
}

// DeleteIncome handles DELETE /api/incomes/{id}
func (h *LedgerHandler) DeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteIncome(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, h.log, err, "Failed to delete income")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNotes handles GET /api/notes
func (h *LedgerHandler) GetNotes(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"notes": h.ledger.Notes()})
}

// PutNotes handles PUT /api/notes
func (h *LedgerHandler) PutNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	if err := h.ledger.SetNotes(r.Context(), req.Notes); err != nil {
		writeErr(w, h.log, err, "Failed to save notes")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"notes": req.Notes})
}

// Status handles GET /api/ledger/status
func (h *LedgerHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.ledger.Status()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"saved": st.Saved(),
		"dirty": st.Dirty,
	})
}

// Flush handles POST /api/ledger/flush, the "save failed, retry?" action.
func (h *LedgerHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Flush(r.Context()); err != nil {
		writeErr(w, h.log, err, "Failed to flush ledger")
		return
	}
	h.Status(w, r)
}

// Reload handles POST /api/ledger/reload. Unsaved local changes are dropped.
func (h *LedgerHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Reload(r.Context()); err != nil {
		writeErr(w, h.log, err, "Failed to reload ledger")
		return
	}
	h.Status(w, r)
}
