package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/export"
	"github.com/dvloznov/ledger-ai/internal/ledger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler streams the ledger as a CSV or XLSX attachment.
type ExportHandler struct {
	ledger *ledger.Ledger
	now    func() time.Time
	log    zerolog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(l *ledger.Ledger, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		ledger: l,
		now:    time.Now,
		log:    log,
	}
}

// Register mounts the export routes.
func (h *ExportHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/export/csv", h.CSV).Methods(http.MethodGet)
	r.HandleFunc("/api/export/xlsx", h.XLSX).Methods(http.MethodGet)
}

// CSV handles GET /api/export/csv
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	h.serve(w, "csv", "text/csv; charset=utf-8", export.WriteCSV)
}

// XLSX handles GET /api/export/xlsx
func (h *ExportHandler) XLSX(w http.ResponseWriter, r *http.Request) {
	h.serve(w, "xlsx", xlsxContentType, export.WriteXLSX)
}

type writeFunc func(w io.Writer, txs []domain.Transaction, accounts []domain.Account) error

// serve renders into a buffer first so a failed export never sends a
// half-written attachment.
func (h *ExportHandler) serve(w http.ResponseWriter, ext, contentType string, write writeFunc) {
	var buf bytes.Buffer
	txs := h.ledger.Transactions(ledger.TransactionFilter{})
	if err := write(&buf, txs, h.ledger.Accounts()); err != nil {
		writeErr(w, h.log, err, "Failed to export transactions")
		return
	}

	filename := export.Filename(h.now(), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Warn().Err(err).Str("filename", filename).Msg("Failed to write export")
		return
	}

	h.log.Info().Str("filename", filename).Int("transactions", len(txs)).Msg("Exported transactions")
}
