package http

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/atinyakov/agritracker/internal/middleware"
	"github.com/atinyakov/agritracker/internal/ratelimit"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Auth    *AuthHandler
	Crops   *CropHandler
	Analyze *AnalyzeHandler
	Health  *HealthHandler
}

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	// Tokens resolves bearer tokens on the protected routes.
	Tokens middleware.IdentityResolver
	// Limiter guards /api/register and /api/login. Nil disables limiting.
	Limiter         ratelimit.Limiter
	RateLimit       int
	RateLimitWindow time.Duration
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string
	// TrustedProxies may set the client address through forwarding headers.
	// Empty means the TCP peer is always the client.
	TrustedProxies []netip.Prefix
}

// NewRouter constructs and returns an HTTP handler that serves the crop
// tracker API.
//
// Routes:
//
//	GET    /                     → h.Health.Root
//	GET    /health               → h.Health.Health
//	POST   /api/register         → h.Auth.Register (rate limited)
//	POST   /api/login            → h.Auth.Login (rate limited)
//	POST   /api/verify-token     → h.Auth.VerifyToken
//	GET    /api/crops            → h.Crops.List
//	POST   /api/crops            → h.Crops.Create
//	GET    /api/crops/{id}       → h.Crops.Get
//	PUT    /api/crops/{id}       → h.Crops.Update
//	DELETE /api/crops/{id}       → h.Crops.Delete
//	GET    /api/dashboard/stats  → h.Crops.Stats
//	POST   /api/analyze-leaf     → h.Analyze.AnalyzeLeaf
//	POST   /api/analyze-leaf-url → h.Analyze.AnalyzeLeafURL
//
// Everything below /api except register, login and verify-token requires a
// bearer token.
func NewRouter(h Handlers, opts RouterOptions, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.TrustedRealIP(opts.TrustedProxies))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Only JSON and multipart bodies are accepted
	r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))

	r.Get("/", h.Health.Root)
	r.Get("/health", h.Health.Health)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(middleware.RateLimit(opts.Limiter, opts.RateLimit, opts.RateLimitWindow, logger))
			}
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
		})
		r.Post("/verify-token", h.Auth.VerifyToken)

		// Protected group: requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(opts.Tokens))

			r.Route("/crops", func(r chi.Router) {
				r.Get("/", h.Crops.List)
				r.Post("/", h.Crops.Create)
				r.Get("/{id}", h.Crops.Get)
				r.Put("/{id}", h.Crops.Update)
				r.Delete("/{id}", h.Crops.Delete)
			})
			r.Get("/dashboard/stats", h.Crops.Stats)
			r.Post("/analyze-leaf", h.Analyze.AnalyzeLeaf)
			r.Post("/analyze-leaf-url", h.Analyze.AnalyzeLeafURL)
		})
	})

	return r
}
