package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pratik-mahalle/skuprice/internal/api/dto"
	"github.com/pratik-mahalle/skuprice/internal/domain/run"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/utils"
	"github.com/pratik-mahalle/skuprice/internal/pkg/validator"
)

// RunTrigger starts pipeline runs
type RunTrigger interface {
	Run(ctx context.Context, trigger run.Trigger) (*run.Report, error)
	RunAsync(ctx context.Context, trigger run.Trigger) (*run.Report, error)
}

// RunHandler handles pipeline run requests
type RunHandler struct {
	pipeline  RunTrigger
	runs      run.Repository
	validator *validator.Validator
	logger    *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(pipeline RunTrigger, runs run.Repository, val *validator.Validator, log *logger.Logger) *RunHandler {
	return &RunHandler{
		pipeline:  pipeline,
		runs:      runs,
		validator: val,
		logger:    log,
	}
}

// Trigger starts a manual run. The run proceeds in the background and the
// response is 202 unless the body asks to wait for completion.
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req dto.TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, apperrors.BadRequest("Invalid request body"))
		return
	}

	if req.Wait {
		report, err := h.pipeline.Run(r.Context(), run.TriggerManual)
		if err != nil && report == nil {
			utils.WriteError(w, err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, report)
		return
	}

	report, err := h.pipeline.RunAsync(r.Context(), run.TriggerManual)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.logger.With("run_id", report.ID.String()).Info("Manual run triggered")
	utils.WriteSuccessWithMessage(w, http.StatusAccepted, "Run started", report)
}

// List lists runs, newest first
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	req := dto.RunListRequest{Status: r.URL.Query().Get("status")}
	if !validate(w, h.validator, req) {
		return
	}
	page := utils.ParsePaginationParams(r)

	reports, total, err := h.runs.List(r.Context(), req.RunFilter(page.PageSize, page.Offset))
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list runs")
		utils.WriteError(w, err)
		return
	}
	if reports == nil {
		reports = []*run.Report{}
	}
	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(reports, page, total))
}

// Get returns one run
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, apperrors.BadRequest("Invalid run ID"))
		return
	}

	report, err := h.runs.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, report)
}
