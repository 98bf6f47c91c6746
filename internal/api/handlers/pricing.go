package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/skuprice/internal/api/dto"
	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/utils"
	"github.com/pratik-mahalle/skuprice/internal/pkg/validator"
)

// PricingHandler serves vm_pricing and its history
type PricingHandler struct {
	pricing   pricing.Repository
	history   pricing.HistoryRepository
	validator *validator.Validator
	logger    *logger.Logger
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(repo pricing.Repository, history pricing.HistoryRepository, val *validator.Validator, log *logger.Logger) *PricingHandler {
	return &PricingHandler{
		pricing:   repo,
		history:   history,
		validator: val,
		logger:    log,
	}
}

// List lists current pricing rows ordered by location, name
func (h *PricingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := dto.PricingListRequest{Name: q.Get("name"), Location: q.Get("location")}
	if !validate(w, h.validator, req) {
		return
	}
	page := utils.ParsePaginationParams(r)

	rows, total, err := h.pricing.List(r.Context(), pricing.Filter{
		Name:     req.Name,
		Location: req.Location,
		Limit:    page.PageSize,
		Offset:   page.Offset,
	})
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list pricing")
		utils.WriteError(w, err)
		return
	}
	if rows == nil {
		rows = []pricing.Row{}
	}
	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(rows, page, total))
}

// History lists recorded pricing snapshots, newest run first
func (h *PricingHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := dto.HistoryListRequest{
		Name:     q.Get("name"),
		Location: q.Get("location"),
		Since:    q.Get("since"),
		Until:    q.Get("until"),
	}
	if !validate(w, h.validator, req) {
		return
	}
	page := utils.ParsePaginationParams(r)

	entries, total, err := h.history.List(r.Context(), req.HistoryFilter(page.PageSize, page.Offset))
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list pricing history")
		utils.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []pricing.HistoryEntry{}
	}
	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(entries, page, total))
}
