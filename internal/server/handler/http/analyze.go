package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/atinyakov/agritracker/internal/common"
	"github.com/atinyakov/agritracker/internal/middleware"
	"github.com/atinyakov/agritracker/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxUpload bounds leaf image uploads.
const DefaultMaxUpload = 10 << 20

// AnalysisService defines the leaf diagnosis operations used by AnalyzeHandler.
type AnalysisService interface {
	AnalyzeImage(ctx context.Context, owner string, data []byte, mimeType, filename string) (models.Analysis, error)
	AnalyzeURL(ctx context.Context, rawURL string) (models.Analysis, error)
}

// AnalyzeHandler serves the leaf analysis endpoints.
type AnalyzeHandler struct {
	AnalysisService AnalysisService
	// MaxUpload is the largest accepted upload in bytes; zero means DefaultMaxUpload.
	MaxUpload int64
	Logger    *zap.Logger
}

func (h *AnalyzeHandler) maxUpload() int64 {
	if h.MaxUpload > 0 {
		return h.MaxUpload
	}
	return DefaultMaxUpload
}

// AnalyzeLeaf handles POST /api/analyze-leaf with a multipart "file" field.
func (h *AnalyzeHandler) AnalyzeLeaf(w http.ResponseWriter, r *http.Request) {
	logger := orNop(h.Logger)
	owner := middleware.GetUserIDFromContext(r.Context())

	data, mimeType, filename, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, r, logger, err)
		return
	}

	res, err := h.AnalysisService.AnalyzeImage(r.Context(), owner, data, mimeType, filename)
	if err != nil {
		writeError(w, r, logger, err)
		return
	}

	body := map[string]any{"analysis": res.Text, "success": true}
	if res.ImageURL != "" {
		body["image_url"] = res.ImageURL
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *AnalyzeHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, error) {
	limit := h.maxUpload()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", "", fmt.Errorf("%w: file is larger than %d bytes", common.ErrValidation, limit)
		}
		return nil, "", "", fmt.Errorf("%w: expected multipart form with a file field", common.ErrValidation)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: file is required", common.ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: read upload", common.ErrValidation)
	}
	if int64(len(data)) > limit {
		return nil, "", "", fmt.Errorf("%w: file is larger than %d bytes", common.ErrValidation, limit)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		if declared := header.Header.Get("Content-Type"); strings.HasPrefix(declared, "image/") {
			mimeType = declared
		}
	}
	return data, mimeType, header.Filename, nil
}

type analyzeURLRequest struct {
	URL string `json:"url" validate:"required,max=2048,http_url"`
}

// AnalyzeLeafURL handles POST /api/analyze-leaf-url.
func (h *AnalyzeHandler) AnalyzeLeafURL(w http.ResponseWriter, r *http.Request) {
	logger := orNop(h.Logger)

	var req analyzeURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, logger, err)
		return
	}

	res, err := h.AnalysisService.AnalyzeURL(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": res.Text, "success": true})
}
