package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/programhub/apiserver/config"
	"github.com/programhub/apiserver/internal/handlers"
	mw "github.com/programhub/apiserver/internal/middleware"
	"github.com/programhub/apiserver/internal/response"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/internal/token"
)

const requestTimeout = 60 * time.Second

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	DB       handlers.Pinger
	Tokens   *token.Service
	Users    *services.UserService
	Programs *services.ProgramService
	Activity *services.ActivityService
}

// NewRouter builds the chi router with the full middleware chain and every
// API route.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens, deps.Config.IsProduction(), logger)
	userHandler := handlers.NewUserHandler(deps.Users, logger)
	programHandler := handlers.NewProgramHandler(deps.Programs, logger)
	logHandler := handlers.NewLogHandler(deps.Activity, logger)
	loginLimit := mw.RateLimitByIP(deps.Config.LoginRate.PerSecond, deps.Config.LoginRate.Burst)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		mw.RequestLogger(logger),
		mw.Recoverer(logger),
		mw.SecurityHeaders(deps.Config.IsProduction()),
		mw.CORS(deps.Config.ClientURL),
		middleware.Timeout(requestTimeout),
	)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Route not found", nil)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	router.Get("/healthz", handlers.Healthz(deps.DB))
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler, loginLimit)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userHandler, authHandler.RequireAuth)
		})
		r.Route("/programs", func(r chi.Router) {
			handlers.ProgramRouter(r, programHandler, authHandler.RequireAuth)
		})
		r.Route("/public", func(r chi.Router) {
			handlers.PublicRouter(r, programHandler)
		})
		r.Route("/logs", func(r chi.Router) {
			handlers.LogRouter(r, logHandler, authHandler.RequireAuth)
		})
	})

	return router
}
