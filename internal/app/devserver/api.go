package devserver

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

// NewRouter creates a *chi.Mux with all operations registered through
// huma.Register. Auth-protected operations share one middleware chain, the
// auth endpoints stay public.
func NewRouter(store *Store, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(requestLogger(log))

	config := huma.DefaultConfig("StoryKeeper Dev API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	humaAPI := humachi.New(mux, config)

	authMW := NewAuth(store, log)

	userHandler := NewUserHandler(store, log, nil)
	userHandler.SetupRoutes(humaAPI)

	storyHandler := NewStoryHandler(store, log, huma.Middlewares{authMW.Middleware()})
	storyHandler.SetupRoutes(humaAPI)

	// Photo bytes are served outside huma: raw body, content type from the
	// upload.
	mux.Get("/v1/images/{id}", func(w http.ResponseWriter, r *http.Request) {
		photo, err := store.Photo(chi.URLParam(r, "id"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(photo))
		w.Write(photo)
	})

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
			)
		})
	}
}
