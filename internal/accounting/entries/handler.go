package entries

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ohada-ledger/internal/platform/httpx"
)

// Handler exposes the entry engine as JSON endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/validate", h.Validate)
	r.Post("/{id}/duplicate", h.Duplicate)
	r.Post("/{id}/reverse", h.Reverse)
}

// MountLetteringRoutes registers the lettering endpoints.
func (h *Handler) MountLetteringRoutes(r chi.Router) {
	r.Post("/", h.Letter)
	r.Delete("/", h.Unletter)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fyID, err := httpx.QueryInt64(r, "fiscal_year_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{CompanyID: companyID, FiscalYearID: fyID}
	if raw := r.URL.Query().Get("journal_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.JournalID = &id
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	header, err := req.toHeader()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), CreateInput{
		CompanyID:    req.CompanyID,
		JournalCode:  req.JournalCode,
		FiscalYearID: req.FiscalYearID,
		Header:       header,
		Lines:        req.Lines,
		AutoValidate: req.AutoValidate,
		UserID:       httpx.UserID(r),
	})
	if err != nil {
		h.fail(w, "create entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	header, err := req.toHeader()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.UpdateEntry(r.Context(), UpdateInput{EntryID: id, Header: header, Lines: req.Lines, UserID: httpx.UserID(r)})
	if err != nil {
		h.fail(w, "update entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteEntry(r.Context(), id, httpx.UserID(r)); err != nil {
		h.fail(w, "delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.ValidateEntry(r.Context(), id, httpx.UserID(r))
	if err != nil {
		h.fail(w, "validate entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req duplicateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.DuplicateEntry(r.Context(), DuplicateInput{
		EntryID:      id,
		Date:         date,
		Description:  req.Description,
		FiscalYearID: req.FiscalYearID,
		UserID:       httpx.UserID(r),
	})
	if err != nil {
		h.fail(w, "duplicate entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.ReverseEntry(r.Context(), ReverseInput{EntryID: id, Date: date, Description: req.Description, UserID: httpx.UserID(r)})
	if err != nil {
		h.fail(w, "reverse entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Letter(w http.ResponseWriter, r *http.Request) {
	var req letterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := LetterInput{CompanyID: req.CompanyID, LineIDs: req.LineIDs, UserID: httpx.UserID(r)}
	if date != nil {
		in.Date = *date
	}
	code, err := h.service.LetterLines(r.Context(), in)
	if err != nil {
		h.fail(w, "letter lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *Handler) Unletter(w http.ResponseWriter, r *http.Request) {
	var req unletterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Unletter(r.Context(), req.CompanyID, req.AccountID, req.Code, httpx.UserID(r)); err != nil {
		h.fail(w, "unletter lines", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, false
	}
	return id, true
}
