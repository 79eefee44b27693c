package outward

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
)

// Handler exposes outward operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type outwardItemRequest struct {
	ProductID  int64    `json:"product_id" validate:"required,gt=0"`
	Quantity   float64  `json:"quantity" validate:"required,gt=0"`
	CostAtTime *float64 `json:"cost_at_time" validate:"omitempty,gte=0"`
}

type outwardRequest struct {
	Number       string               `json:"number"`
	DepartmentID int64                `json:"department_id" validate:"required,gt=0"`
	PurchaseID   *int64               `json:"purchase_id" validate:"omitempty,gt=0"`
	OutwardDate  string               `json:"outward_date"`
	Note         string               `json:"note"`
	Items        []outwardItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{}
	filters.DepartmentID, _ = strconv.ParseInt(q.Get("department_id"), 10, 64)
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filters.To = t
	}

	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list outwards", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid outward id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeOutward(w, r)
	if !ok {
		return
	}
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	created, err := h.service.RecordOutward(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid outward id")
		return
	}
	input, ok := h.decodeOutward(w, r)
	if !ok {
		return
	}
	updated, err := h.service.UpdateOutward(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid outward id")
		return
	}
	if err := h.service.DeleteOutward(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeOutward(w http.ResponseWriter, r *http.Request) (OutwardInput, bool) {
	var req outwardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return OutwardInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return OutwardInput{}, false
	}
	input := OutwardInput{
		Number:       req.Number,
		DepartmentID: req.DepartmentID,
		PurchaseID:   req.PurchaseID,
		Note:         req.Note,
	}
	if req.OutwardDate != "" {
		t, err := time.Parse("2006-01-02", req.OutwardDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "outward_date must be YYYY-MM-DD")
			return OutwardInput{}, false
		}
		input.OutwardDate = t
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, OutwardItemInput{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			CostAtTime: item.CostAtTime,
		})
	}
	return input, true
}
