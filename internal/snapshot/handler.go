package snapshot

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
)

// Handler exposes state export and import over HTTP. These are admin
// endpoints for backup and restore.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/export", h.export)
	r.Post("/import", h.importState)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Export(r.Context())
	if err != nil {
		h.logger.Error("snapshot export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="stockpilot-snapshot.json"`)
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) importState(w http.ResponseWriter, r *http.Request) {
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid snapshot document")
		return
	}
	if err := h.service.Import(r.Context(), doc); err != nil {
		h.logger.Error("snapshot import", slog.String("snapshot_id", doc.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"imported":  true,
		"products":  len(doc.State.Products),
		"purchases": len(doc.State.Purchases),
		"outwards":  len(doc.State.Outwards),
	})
}
