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

// chartMonths is the length of the monthly bar chart.
const chartMonths = 6

// ViewsHandler serves the derived views: summaries, balances and charts.
type ViewsHandler struct {
	ledger *ledger.Ledger
	rates  RateSource
	now    func() time.Time
	log    zerolog.Logger
}

// NewViewsHandler creates a new views handler.
func NewViewsHandler(l *ledger.Ledger, rates RateSource, log zerolog.Logger) *ViewsHandler {
	return &ViewsHandler{
		ledger: l,
		rates:  rates,
		now:    time.Now,
		log:    log,
	}
}

// Register mounts the view routes.
func (h *ViewsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/summary", h.Summary).Methods(http.MethodGet)
	r.HandleFunc("/api/balances", h.Balances).Methods(http.MethodGet)
	r.HandleFunc("/api/charts", h.Charts).Methods(http.MethodGet)
}

// Summary handles GET /api/summary?month=YYYY-MM
func (h *ViewsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if !validMonth(month) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid month format, want YYYY-MM")
		return
	}

	txs := h.ledger.Transactions(ledger.TransactionFilter{})
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"month":  month,
		"totals": views.TotalsByTypeForPeriod(txs, month),
		"months": views.Months(txs),
	})
}

// Balances handles GET /api/balances?tag=
//
// totalTHB is null while no rate is available so clients can show a
// loading state instead of a zero.
func (h *ViewsHandler) Balances(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	accounts := h.ledger.Accounts()
	txs := h.ledger.Transactions(ledger.TransactionFilter{})

	var (
		balances []views.AccountBalance
		err      error
	)
	if tag == "" {
		balances, err = views.BalancesByAccount(accounts, txs)
	} else {
		balances, err = views.BalancesByCategoryTag(accounts, txs, tag)
	}
	if err != nil {
		writeErr(w, h.log, err, "Failed to compute balances")
		return
	}

	var (
		rate     float64
		cached   bool
		totalTHB interface{}
	)
	if h.rates != nil {
		q := h.rates.Current(r.Context())
		rate, cached = q.Rate, q.Cached
	}
	if total, ok := views.TotalTHB(balances, rate); ok {
		totalTHB = total
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"balances":     balances,
		"tags":         views.CategoryTags(accounts),
		"totalTHB":     totalTHB,
		"rate":         rate,
		"rateIsCached": cached,
	})
}

// Charts handles GET /api/charts?month=&type=
func (h *ViewsHandler) Charts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	month := query.Get("month")
	if !validMonth(month) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid month format, want YYYY-MM")
		return
	}

	typ := domain.Expense
	if s := query.Get("type"); s != "" {
		typ = domain.TxType(s)
		if !typ.Valid() {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid type")
			return
		}
	}

	txs := h.ledger.Transactions(ledger.TransactionFilter{})
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"type":      typ,
		"breakdown": views.PurposeBreakdown(txs, typ, month),
		"monthly":   views.MonthlyTotals(txs, chartMonths, h.now()),
		"months":    views.Months(txs),
	})
}

// validMonth accepts the empty month (all time) or YYYY-MM.
func validMonth(month string) bool {
	if month == "" {
		return true
	}
	_, err := time.Parse(domain.MonthLayout, month)
	return err == nil
}
