package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/auth"
	"tradejournal/src/handler"
	"tradejournal/src/repository"
	"tradejournal/src/service"
)

// Routes holds every endpoint handler plus the middleware that guards the
// authenticated group.
type Routes struct {
	Authenticate func(http.Handler) http.Handler

	Signup http.HandlerFunc
	Token  http.HandlerFunc
	Me     http.HandlerFunc

	UploadOrders http.HandlerFunc
	SearchOrders http.HandlerFunc

	SearchTrades http.HandlerFunc
	GetTrade     http.HandlerFunc
	UpdateTrade  http.HandlerFunc
	DeleteTrade  http.HandlerFunc
}

// DefaultRoutes wires the handlers to the production repositories.
// The databases must be initialized first.
func DefaultRoutes(tokens auth.JWT) Routes {
	return Routes{
		Authenticate: auth.Middleware(tokens, repository.NewUserRepository()),
		Signup:       handler.DefaultSignupHandler(),
		Token:        handler.DefaultTokenHandler(tokens),
		Me:           handler.MeHandler(),
		UploadOrders: handler.DefaultUploadOrdersHandler(service.DefaultImportService()),
		SearchOrders: handler.DefaultSearchOrdersHandler(),
		SearchTrades: handler.DefaultSearchTradesHandler(),
		GetTrade:     handler.DefaultGetTradeHandler(),
		UpdateTrade:  handler.DefaultUpdateTradeHandler(),
		DeleteTrade:  handler.DefaultDeleteTradeHandler(),
	}
}

func NewRouter(cfg *Config, routes Routes) chi.Router {
	r := chi.NewRouter()

	// === Global Middleware ===
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("healthcheck write failed")
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", routes.Signup)
		r.Post("/token", routes.Token)

		r.Group(func(r chi.Router) {
			r.Use(routes.Authenticate)

			r.Get("/users/me", routes.Me)

			r.Post("/orders/upload", routes.UploadOrders)
			r.Get("/orders", routes.SearchOrders)

			r.Get("/trades", routes.SearchTrades)
			r.Get("/trades/{id}", routes.GetTrade)
			r.Patch("/trades/{id}", routes.UpdateTrade)
			r.Delete("/trades/{id}", routes.DeleteTrade)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}
