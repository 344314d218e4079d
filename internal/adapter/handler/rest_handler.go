// Package handler exposes the extraction, job and learning boundaries
// over REST.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hive-corporation/harrier/internal/core/domain"
	"github.com/hive-corporation/harrier/internal/extract"
	"github.com/hive-corporation/harrier/internal/job"
	"github.com/hive-corporation/harrier/internal/learning"
)

// maxUploadBytes caps a single upload body.
const maxUploadBytes = 64 << 20

type RestHandler struct {
	engine    *job.Engine
	extractor *extract.Extractor
	learner   *learning.Service
	logger    *zap.SugaredLogger
}

func NewRestHandler(engine *job.Engine, extractor *extract.Extractor, learner *learning.Service, logger *zap.SugaredLogger) *RestHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RestHandler{
		engine:    engine,
		extractor: extractor,
		learner:   learner,
		logger:    logger,
	}
}

// Register mounts every route on the router.
func (h *RestHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/health", h.Health).Methods("GET")

	r.HandleFunc("/api/v1/extract", h.Extract).Methods("POST")

	r.HandleFunc("/api/v1/jobs", h.CreateJob).Methods("POST")
	r.HandleFunc("/api/v1/jobs", h.ListJobs).Methods("GET")
	r.HandleFunc("/api/v1/jobs/{id}", h.GetJob).Methods("GET")
	r.HandleFunc("/api/v1/jobs/{id}", h.DeleteJob).Methods("DELETE")
	r.HandleFunc("/api/v1/jobs/{id}/progress", h.JobProgress).Methods("GET")
	r.HandleFunc("/api/v1/jobs/{id}/cancel", h.CancelJob).Methods("POST")
	r.HandleFunc("/api/v1/jobs/{id}/retry", h.RetryJob).Methods("POST")

	r.HandleFunc("/api/v1/feedback", h.SubmitFeedback).Methods("POST")
	r.HandleFunc("/api/v1/learning/model", h.GetModel).Methods("GET")
	r.HandleFunc("/api/v1/learning/predict", h.Predict).Methods("POST")
	r.HandleFunc("/api/v1/learning/retrain", h.Retrain).Methods("POST")
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "harrier-api",
	}
	writeJSON(w, http.StatusOK, response)
}

type extractRequest struct {
	Text           string `json:"text"`
	SourceLocation string `json:"source_location"`
	Channel        string `json:"channel"`
}

// Extract runs the pattern engine over a block of text and returns the
// indicators found.
func (h *RestHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "missing 'text' field")
		return
	}

	channel := domain.SourceChannel(req.Channel)
	switch channel {
	case "":
		channel = domain.SourceText
	case domain.SourceText, domain.SourceImage, domain.SourceMetadata:
	default:
		writeError(w, http.StatusBadRequest, "unknown channel (use 'text', 'image' or 'metadata')")
		return
	}

	iocs := h.extractor.ExtractFrom(req.Text, req.SourceLocation, channel)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(iocs),
		"iocs":  iocs,
	})
}

// CreateJob accepts a bulk upload, multipart or raw JSON, and hands it to
// the engine. Parse failures come back synchronously; processing is
// asynchronous and tracked via the job resource.
func (h *RestHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCreateJob(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.engine.CreateJob(r.Context(), *req)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrTooManyJobs):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, job.ErrEmptyPayload):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

type createJobJSON struct {
	Name     string              `json:"name"`
	OwnerID  string              `json:"owner_id"`
	Filename string              `json:"filename"`
	Content  string              `json:"content"`
	Settings *domain.JobSettings `json:"settings,omitempty"`
}

func (h *RestHandler) decodeCreateJob(r *http.Request) (*job.CreateJobRequest, error) {
	ct := r.Header.Get("Content-Type")
	if len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, errors.New("invalid multipart form")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("missing 'file' part")
		}
		defer file.Close()
		payload, err := readLimited(file, maxUploadBytes)
		if err != nil {
			return nil, err
		}

		req := &job.CreateJobRequest{
			Name:     r.FormValue("name"),
			OwnerID:  r.FormValue("owner_id"),
			Filename: header.Filename,
			Payload:  payload,
		}
		if raw := r.FormValue("settings"); raw != "" {
			var settings domain.JobSettings
			if err := json.Unmarshal([]byte(raw), &settings); err != nil {
				return nil, errors.New("invalid 'settings' part")
			}
			req.Settings = &settings
		}
		return req, nil
	}

	raw, err := readLimited(r.Body, maxUploadBytes)
	if err != nil {
		return nil, err
	}
	var body createJobJSON
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.New("invalid JSON payload")
	}
	return &job.CreateJobRequest{
		Name:     body.Name,
		OwnerID:  body.OwnerID,
		Filename: body.Filename,
		Payload:  []byte(body.Content),
		Settings: body.Settings,
	}, nil
}

func (h *RestHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.engine.GetJob(mux.Vars(r)["id"])
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *RestHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.engine.ListJobs(r.URL.Query().Get("owner_id"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

func (h *RestHandler) JobProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Progress(mux.Vars(r)["id"])
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *RestHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.engine.Cancel(id); err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"status": "cancellation_requested",
	})
}

func (h *RestHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.engine.Retry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, j)
}

func (h *RestHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeJobError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type feedbackRequest struct {
	IOCID     string `json:"ioc_id"`
	IOCType   string `json:"ioc_type"`
	IOCValue  string `json:"ioc_value"`
	Type      string `json:"type"`
	Reasoning string `json:"reasoning,omitempty"`
	Evidence  string `json:"evidence,omitempty"`
	UserID    string `json:"user_id"`
	UserRole  string `json:"user_role,omitempty"`
}

// SubmitFeedback records one analyst assertion and reports its consensus
// validation outcome.
func (h *RestHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	fb := &domain.UserFeedback{
		IOCID:     req.IOCID,
		IOCType:   domain.IOCType(req.IOCType),
		IOCValue:  req.IOCValue,
		Type:      domain.FeedbackType(req.Type),
		Reasoning: req.Reasoning,
		Evidence:  req.Evidence,
		UserID:    req.UserID,
		UserRole:  req.UserRole,
	}
	id, err := h.learner.SubmitFeedback(r.Context(), fb)
	if err != nil {
		if errors.Is(err, learning.ErrInvalidFeedback) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Errorw("feedback submission failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store feedback")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":               id,
		"validated":        fb.Validated,
		"validation_score": fb.ValidationScore,
	})
}

func (h *RestHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.learner.Model())
}

type predictRequest struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Context string `json:"context,omitempty"`
}

// Predict scores a single indicator against the active model without
// running it through a job.
func (h *RestHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Value == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "missing 'type' or 'value' field")
		return
	}

	pred := h.learner.PredictFalsePositive(domain.IOC{
		Type:    domain.IOCType(req.Type),
		Value:   req.Value,
		Context: req.Context,
	})
	writeJSON(w, http.StatusOK, pred)
}

// Retrain runs the training decision inline. A no-op when thresholds are
// not met; the response says which.
func (h *RestHandler) Retrain(w http.ResponseWriter, r *http.Request) {
	ran, err := h.learner.MaybeRetrain(r.Context())
	if err != nil {
		h.logger.Errorw("retraining failed", "error", err)
		writeError(w, http.StatusInternalServerError, "retraining failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"retrained":     ran,
		"model_version": h.learner.Model().Version,
	})
}

// Helper functions

// readLimited reads at most limit bytes and fails on anything longer.
// Oversized uploads must be rejected outright, never truncated into a
// partial job.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("upload exceeds the maximum size of %d bytes", limit)
	}
	return data, nil
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrJobTerminal),
		errors.Is(err, job.ErrJobNotTerminal),
		errors.Is(err, job.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, job.ErrTooManyJobs):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
