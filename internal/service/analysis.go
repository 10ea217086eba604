package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/atinyakov/agritracker/internal/common"
	"github.com/atinyakov/agritracker/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LeafPrompt is sent to the model together with every leaf image.
const LeafPrompt = `You are an agricultural plant pathologist. Examine this crop leaf image and answer in plain text:
1. Disease name (or "Healthy" if no disease is visible) and your confidence.
2. Visible symptoms that support the diagnosis.
3. Organic cures and treatments the farmer can apply.
4. Prevention tips for the next season.
If the image does not show a plant leaf, say so and stop.`

// ImageFolder is the storage folder uploaded leaf images are kept under.
const ImageFolder = "crops"

// Diagnoser sends an image and a prompt to a generative model and returns
// its free-text answer.
type Diagnoser interface {
	Diagnose(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// ImageStore keeps uploaded images and returns a URL for them.
type ImageStore interface {
	Upload(ctx context.Context, folder, name string, data []byte, mimeType string) (string, error)
}

// AnalysisCache remembers diagnoses of image URLs.
type AnalysisCache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// AnalysisService runs leaf diagnoses. Store and cache are optional.
type AnalysisService struct {
	model   Diagnoser
	fetcher ImageFetcher
	store   ImageStore
	cache   AnalysisCache
	log     *zap.Logger
}

// NewAnalysisService constructs an AnalysisService. store and cache may be nil.
func NewAnalysisService(model Diagnoser, fetcher ImageFetcher, store ImageStore, cache AnalysisCache, log *zap.Logger) *AnalysisService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalysisService{model: model, fetcher: fetcher, store: store, cache: cache, log: log}
}

// AnalyzeImage diagnoses an uploaded image. When an image store is
// configured the image is kept under crops/<owner>/ and its URL returned.
func (s *AnalysisService) AnalyzeImage(ctx context.Context, owner string, data []byte, mimeType, filename string) (models.Analysis, error) {
	if len(data) == 0 {
		return models.Analysis{}, fmt.Errorf("%w: empty image", common.ErrValidation)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return models.Analysis{}, fmt.Errorf("%w: file is not an image", common.ErrValidation)
	}

	var result models.Analysis
	if s.store != nil {
		name := uuid.NewString() + path.Ext(path.Base(filename))
		imageURL, err := s.store.Upload(ctx, path.Join(ImageFolder, owner), name, data, mimeType)
		if err != nil {
			// The diagnosis does not depend on the stored copy.
			s.log.Warn("failed to store leaf image", zap.String("username", owner), zap.Error(err))
		} else {
			result.ImageURL = imageURL
		}
	}

	text, err := s.model.Diagnose(ctx, LeafPrompt, data, mimeType)
	if err != nil {
		s.log.Error("leaf diagnosis failed", zap.String("username", owner), zap.Error(err))
		return models.Analysis{}, fmt.Errorf("%w: diagnose: %w", common.ErrDependency, err)
	}
	result.Text = text
	return result, nil
}

// AnalyzeURL downloads the image at rawURL and diagnoses it. Results are
// cached per URL.
func (s *AnalysisService) AnalyzeURL(ctx context.Context, rawURL string) (models.Analysis, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.Analysis{}, fmt.Errorf("%w: url must be an absolute http(s) URL", common.ErrValidation)
	}

	if s.cache != nil {
		if text, ok := s.cache.Get(rawURL); ok {
			return models.Analysis{Text: text, Cached: true}, nil
		}
	}

	data, mimeType, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.log.Warn("leaf image download failed", zap.String("host", u.Host), zap.Error(err))
		return models.Analysis{}, err
	}

	text, err := s.model.Diagnose(ctx, LeafPrompt, data, mimeType)
	if err != nil {
		s.log.Error("leaf diagnosis failed", zap.String("host", u.Host), zap.Error(err))
		return models.Analysis{}, fmt.Errorf("%w: diagnose: %w", common.ErrDependency, err)
	}

	if s.cache != nil {
		s.cache.Set(rawURL, text)
	}
	return models.Analysis{Text: text}, nil
}
