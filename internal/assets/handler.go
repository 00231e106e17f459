package assets

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/schedule", h.schedule)
	r.Get("/{id}/schedule/preview", h.preview)
	r.Post("/{id}/schedule/regenerate", h.regenerate)
}

// MountRunRoutes exposes the monthly depreciation batch.
func (h *Handler) MountRunRoutes(r chi.Router) {
	r.Post("/", h.run)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !shared.IsValidation(err) && !shared.IsState(err) {
		h.logger.Error("assets request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, httpx.ErrValidation
	}
	return id, nil
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListCategories(r.Context(), companyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in CreateCategoryInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.CreateCategory(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

type createAssetRequest struct {
	CreateAssetInput
	InServiceDate string `json:"in_service_date"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := req.CreateAssetInput
	if req.InServiceDate != "" {
		d, err := time.Parse(time.DateOnly, req.InServiceDate)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		in.InServiceDate = &d
	}
	out, err := h.service.CreateAsset(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Schedule(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.QueryDate(r, "start_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.CalculateDepreciationSchedule(r.Context(), id, start, MethodKind(r.URL.Query().Get("method")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

type regenerateRequest struct {
	StartDate string     `json:"start_date"`
	Method    MethodKind `json:"method"`
}

func (h *Handler) regenerate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req regenerateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var start *time.Time
	if req.StartDate != "" {
		d, err := time.Parse(time.DateOnly, req.StartDate)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		start = &d
	}
	out, err := h.service.RegenerateForecast(r.Context(), id, start, req.Method)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

type runRequest struct {
	CompanyID       int64  `json:"company_id"`
	CalculationDate string `json:"calculation_date"`
	Filter
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.CalculationDate)
	if err != nil {
		httpx.RespondError(w, &shared.FieldError{Field: "calculation_date"})
		return
	}
	result, err := h.service.GenerateMonthlyDepreciationEntries(r.Context(), BatchInput{
		CompanyID: req.CompanyID,
		Date:      date,
		Filter:    req.Filter,
		UserID:    httpx.UserID(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
