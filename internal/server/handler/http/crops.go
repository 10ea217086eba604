package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/agritracker/internal/middleware"
	"github.com/atinyakov/agritracker/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CropService defines the owner-scoped crop operations used by CropHandler.
type CropService interface {
	List(ctx context.Context, owner string) ([]models.Crop, error)
	Create(ctx context.Context, owner string, in models.CropInput) (*models.Crop, error)
	Get(ctx context.Context, owner, id string) (*models.Crop, error)
	Update(ctx context.Context, owner, id string, in models.CropInput) error
	Delete(ctx context.Context, owner, id string) error
	Stats(ctx context.Context, owner string) (models.DashboardStats, error)
}

// CropHandler serves /api/crops. The owner always comes from the
// authenticated identity.
type CropHandler struct {
	CropService CropService
	Logger      *zap.Logger
}

// List handles GET /api/crops.
func (h *CropHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserIDFromContext(r.Context())
	crops, err := h.CropService.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, orNop(h.Logger), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crops": crops, "success": true})
}

// Create handles POST /api/crops.
func (h *CropHandler) Create(w http.ResponseWriter, r *http.Request) {
	logger := orNop(h.Logger)
	owner := middleware.GetUserIDFromContext(r.Context())

	var in models.CropInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, logger, err)
		return
	}

	crop, err := h.CropService.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Crop added successfully",
		"success": true,
		"crop":    crop,
	})
}

// Get handles GET /api/crops/{id}.
func (h *CropHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserIDFromContext(r.Context())
	crop, err := h.CropService.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, orNop(h.Logger), err)
		return
	}
	writeJSON(w, http.StatusOK, crop)
}

// Update handles PUT /api/crops/{id}.
func (h *CropHandler) Update(w http.ResponseWriter, r *http.Request) {
	logger := orNop(h.Logger)
	owner := middleware.GetUserIDFromContext(r.Context())

	var in models.CropInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, logger, err)
		return
	}

	if err := h.CropService.Update(r.Context(), owner, chi.URLParam(r, "id"), in); err != nil {
		writeError(w, r, logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Crop updated successfully")
}

// Delete handles DELETE /api/crops/{id}.
func (h *CropHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserIDFromContext(r.Context())
	if err := h.CropService.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, orNop(h.Logger), err)
		return
	}
	writeMessage(w, http.StatusOK, "Crop deleted successfully")
}

// Stats handles GET /api/dashboard/stats.
func (h *CropHandler) Stats(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserIDFromContext(r.Context())
	stats, err := h.CropService.Stats(r.Context(), owner)
	if err != nil {
		writeError(w, r, orNop(h.Logger), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
