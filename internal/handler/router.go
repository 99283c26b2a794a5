package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/metrics"
)

// RouterConfig contains everything the router needs.
type RouterConfig struct {
	AuthHandler    *AuthHandler
	ItemHandler    *ItemHandler
	AuthMiddleware func(http.Handler) http.Handler
	Metrics        *metrics.Metrics

	// UploadsDir serves stored images at UploadsPath when set. Leave it
	// empty for backends that serve images themselves (S3).
	UploadsDir  string
	UploadsPath string

	AllowedOrigins []string
	Logger         zerolog.Logger

	// Health reports backing store health for the health endpoint.
	Health func(r *http.Request) error
}

// NewRouter assembles the full API router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.AllowedOrigins))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			cfg.AuthHandler.RegisterPublicRoutes(ar)

			ar.Group(func(protected chi.Router) {
				protected.Use(cfg.AuthMiddleware)
				cfg.AuthHandler.RegisterProtectedRoutes(protected)
			})
		})

		api.Route("/items", func(ir chi.Router) {
			cfg.ItemHandler.RegisterPublicRoutes(ir)

			ir.Group(func(protected chi.Router) {
				protected.Use(cfg.AuthMiddleware)
				cfg.ItemHandler.RegisterProtectedRoutes(protected)
			})
		})
	})

	if cfg.UploadsDir != "" && cfg.UploadsPath != "" {
		fileServer(r, cfg.UploadsPath, http.Dir(cfg.UploadsDir))
	}

	return r
}

// fileServer mounts a static file server without directory listings.
func fileServer(r chi.Router, path string, root http.FileSystem) {
	fs := http.StripPrefix(path, http.FileServer(noListingFS{root}))
	r.Get(path+"/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}

// noListingFS wraps a filesystem and refuses to open directories.
type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		_ = f.Close()
		return nil, http.ErrMissingFile
	}
	return f, nil
}
