package adapthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mealtrack/internal/app"
	"mealtrack/internal/domain"
	"mealtrack/internal/logging"
	"mealtrack/internal/metrics"
)

// Services bundles the application services the HTTP adapter drives.
type Services struct {
	Auth      *app.AuthService
	Profile   *app.ProfileService
	Budget    *app.BudgetService
	Scan      *app.ScanService
	Ledger    *app.MealLedger
	Remaining *app.RemainingService
	History   *app.HistoryService
	Catalog   *app.CatalogService
}

// Options configures transport concerns of the Server.
type Options struct {
	WebDir         string
	UploadDir      string
	MaxUploadBytes int64
	CORSOrigins    []string
	// TrustForwardAuth authenticates requests by the Remote-User header.
	TrustForwardAuth bool
	OIDC             *OIDCConfig
	Logger           *zap.Logger
	Metrics          *metrics.Metrics
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	svc  Services
	opts Options
	log  *zap.Logger

	oidcConfig  *OIDCConfig
	disableAuth bool
	devUser     *domain.User
}

// New creates a Server wired to the given application services.
func New(svc Services, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	oidcCfg := opts.OIDC
	if oidcCfg == nil {
		oidcCfg = &OIDCConfig{}
	}
	return &Server{
		svc:        svc,
		opts:       opts,
		log:        logging.OrNop(opts.Logger),
		oidcConfig: oidcCfg,
	}
}

// WithoutAuth serves every request as user. Used by tests and local
// development.
func (s *Server) WithoutAuth(user *domain.User) *Server {
	s.disableAuth = true
	s.devUser = user
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(chimiddleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(withNoCache)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		r.Get("/config", s.handleConfig)

		r.Post("/users/register", s.handleRegister)
		r.Post("/users/login", s.handleLogin)
		r.Post("/users/logout", s.handleLogout)
		r.Get("/auth/sso/login", s.handleSSOLogin)
		r.Get("/auth/sso/callback", s.handleSSOCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/users/info", s.handleUserInfo)
			r.Put("/users/profile", s.handleUpdateProfile)
			r.Get("/users/calories", s.handleTargetCalories)
			r.Post("/upload/image", s.handleUploadImage)
			r.Post("/users/meals", s.handleCommitMeal)
			r.Get("/users/calendar", s.handleCalendar)
			r.Get("/users/remaining-calories", s.handleRemaining)
			r.Get("/users/recommend", s.handleRecommend)
			r.Get("/charts/daily", s.handleChartsDaily)
			r.Get("/foods/{name}", s.handleFood)
		})
	})

	if s.opts.WebDir != "" {
		r.Handle("/*", spaFromDisk(s.opts.WebDir))
	}
	return r
}
