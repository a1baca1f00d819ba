// Package handlers implements the HTTP API on top of the ledger, the derived
// views, the rate provider and the slip flow.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/api/middleware"
	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/rates"
)

// RateSource supplies the current USD to THB rate.
type RateSource interface {
	Current(ctx context.Context) rates.Quote
}

// statusFor maps the domain error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPersist):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrPolicyRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrAccountInUse):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeErr logs err and writes the mapped status. Client errors carry the
// error message; server errors carry a generic one.
func writeErr(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)

	if errors.Is(err, domain.ErrPersist) {
		log.Error().Err(err).Msg("Failed to save ledger")
		middleware.WriteRetryableError(w, status, domain.ErrPersist.Error())
		return
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}

	log.Debug().Err(err).Int("status", status).Msg(msg)
	middleware.WriteError(w, status, err.Error())
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Registrar is implemented by every handler group. Groups register full
// /api/... paths on the root router.
type Registrar interface {
	Register(r *mux.Router)
}

// NewRouter mounts /health and every group on a fresh router. Routes stay on
// the root router so a known path with the wrong method gets a 405.
func NewRouter(groups ...Registrar) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", Health).Methods(http.MethodGet)

	for _, g := range groups {
		g.Register(r)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	return r
}
