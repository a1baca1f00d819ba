package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/api/middleware"
	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/jobs"
	"github.com/dvloznov/ledger-ai/internal/slip"
)

// SlipsHandler runs the slip extraction flow, either inline or as a job.
type SlipsHandler struct {
	processor jobs.SlipProcessor
	taxonomy  jobs.Taxonomy
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSlipsHandler creates a new slips handler. publisher may be nil, in which
// case only the synchronous endpoint is served.
func NewSlipsHandler(p jobs.SlipProcessor, tax jobs.Taxonomy, publisher jobs.Publisher, log zerolog.Logger) *SlipsHandler {
	return &SlipsHandler{
		processor: p,
		taxonomy:  tax,
		publisher: publisher,
		log:       log,
	}
}

// Register mounts the slip routes.
func (h *SlipsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/slips/extract", h.Extract).Methods(http.MethodPost)
	if h.publisher != nil {
		r.HandleFunc("/api/slips/jobs", h.Enqueue).Methods(http.MethodPost)
	}
}

type slipRequest struct {
	Image string `json:"image"`
}

func (h *SlipsHandler) decode(r *http.Request) (string, error) {
	var req slipRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Image) == "" {
		return "", domain.Validationf("image is required")
	}
	return req.Image, nil
}

// Extract handles POST /api/slips/extract. The response carries the extracted
// details, the advisory validation and a prefilled transaction draft.
func (h *SlipsHandler) Extract(w http.ResponseWriter, r *http.Request) {
	image, err := h.decode(r)
	if err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}

	res, err := h.processor.Process(r.Context(), image)
	if err != nil {
		writeErr(w, h.log, err, "Failed to extract slip")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"details":    res.Details,
		"validation": res.Validation,
		"draft":      slip.Draft(res.Details, h.taxonomy.Accounts(), h.taxonomy.Purposes()),
	})
}

// Enqueue handles POST /api/slips/jobs
func (h *SlipsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	image, err := h.decode(r)
	if err != nil {
		writeErr(w, h.log, err, "Invalid request body")
		return
	}
	if _, _, err := slip.ParseDataURI(image); err != nil {
		writeErr(w, h.log, err, "Invalid image")
		return
	}

	job := &jobs.SlipJob{DataURI: image}
	if err := h.publisher.PublishSlip(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue slip job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue slip job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Slip job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// Register mounts the job routes.
func (h *JobsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/jobs", h.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", h.GetJob).Methods(http.MethodGet)
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeErr(w, h.log.With().Str("job_id", jobID).Logger(), err, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs?status=&limit=&offset=
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
