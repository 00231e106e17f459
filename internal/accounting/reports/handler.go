package reports

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ohada-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance-sheet", h.BalanceSheet)
	r.Get("/income-statement", h.IncomeStatement)
	r.Get("/class-summary", h.ClassSummary)
}

func parseQuery(r *http.Request) (Query, error) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		return Query{}, err
	}
	fyID, err := httpx.QueryInt64(r, "fiscal_year_id")
	if err != nil {
		return Query{}, err
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		return Query{}, err
	}
	return Query{CompanyID: companyID, FiscalYearID: fyID, AsOf: asOf}, nil
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.BalanceSheet(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.IncomeStatement(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) ClassSummary(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.ClassSummary(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}
