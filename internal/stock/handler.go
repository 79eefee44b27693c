package stock

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
)

// Handler exposes stock queries and adjustments over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}", h.computeStock)
	r.Get("/products/{id}/movements", h.movements)
	r.Get("/adjustments", h.listAdjustments)
	r.Post("/adjustments", h.createAdjustment)
	r.Get("/adjustments/{id}", h.showAdjustment)
	r.Put("/adjustments/{id}", h.updateAdjustment)
	r.Delete("/adjustments/{id}", h.deleteAdjustment)
	r.Post("/resync", h.resync)
}

type adjustmentRequest struct {
	ProductID      int64    `json:"product_id"`
	Delta          *float64 `json:"delta"`
	TargetQuantity *float64 `json:"target_quantity"`
	Reason         string   `json:"reason"`
	AdjustedAt     string   `json:"adjusted_at"`
}

func (h *Handler) computeStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	from, to, ok := parseWindow(w, r)
	if !ok {
		return
	}
	result, err := h.service.ComputeStock(r.Context(), id, from, to)
	if err != nil {
		h.logger.Error("compute stock", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	items, err := h.service.Movements(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) listAdjustments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, _ := strconv.ParseInt(q.Get("product_id"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	items, total, err := h.service.ListAdjustments(r.Context(), productID, page, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) showAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid adjustment id")
		return
	}
	adj, err := h.service.GetAdjustment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, adj)
}

func (h *Handler) createAdjustment(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeAdjustment(w, r)
	if !ok {
		return
	}
	created, err := h.service.CreateAdjustment(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid adjustment id")
		return
	}
	input, ok := decodeAdjustment(w, r)
	if !ok {
		return
	}
	updated, err := h.service.UpdateAdjustment(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid adjustment id")
		return
	}
	if err := h.service.DeleteAdjustment(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductIDs []int64 `json:"product_ids"`
	}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
			return
		}
	}
	healed, err := h.service.Resync(r.Context(), req.ProductIDs)
	if err != nil {
		h.logger.Error("resync", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"healed": healed})
}

func decodeAdjustment(w http.ResponseWriter, r *http.Request) (AdjustmentInput, bool) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return AdjustmentInput{}, false
	}
	input := AdjustmentInput{
		ProductID:      req.ProductID,
		Delta:          req.Delta,
		TargetQuantity: req.TargetQuantity,
		Reason:         req.Reason,
	}
	if req.AdjustedAt != "" {
		at, err := time.Parse("2006-01-02", req.AdjustedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "adjusted_at must be YYYY-MM-DD")
			return AdjustmentInput{}, false
		}
		input.AdjustedAt = at
	}
	return input, true
}

func parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var from, to time.Time
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	return from, to, true
}
