package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/config"
	"github.com/geocoder89/fintechindex/internal/http/handlers"
	"github.com/geocoder89/fintechindex/internal/http/middlewares"
	"github.com/geocoder89/fintechindex/internal/ingest"
	"github.com/geocoder89/fintechindex/internal/observability"
	"github.com/geocoder89/fintechindex/internal/verification"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// 10k country records is roughly 3 MiB of JSON.
const maxBodyBytes = 4 << 20

type CountryStore interface {
	handlers.CountryStore
	ingest.Store
}

type StartupStore interface {
	handlers.StartupStore
	verification.Store
}

// Deps are the process-wide collaborators built once in cmd/api.
type Deps struct {
	Log       *slog.Logger
	Cfg       config.Config
	Prom      *observability.Prom
	Gatherer  prometheus.Gatherer
	Tokens    *auth.Manager
	Users     handlers.UserStore
	Countries CountryStore
	Startups  StartupStore
	Notify    handlers.Notifier
	// Limiter defaults to an in-process limiter when nil.
	Limiter middlewares.Limiter
	Ping    func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health and metrics
	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	limiter := d.Limiter
	if limiter == nil {
		limiter = middlewares.NewRateLimiter(d.Cfg.RateLimitPerMinute, time.Minute)
	}

	authMw := middlewares.NewAuthMiddleware(d.Tokens)
	requireAuth := authMw.RequireAuth()
	optionalAuth := authMw.OptionalAuth()
	adminOnly := authMw.RequireRole(auth.RoleAdmin)
	staff := authMw.RequireAnyRole(auth.RoleAdmin, auth.RoleEditor)

	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens, d.Notify)
	countryHandler := handlers.NewCountryDataHandler(d.Countries, ingest.NewGuard(d.Countries), d.Notify, d.Prom)
	startupsHandler := handlers.NewStartupsHandler(d.Startups, verification.NewWorkflow(d.Startups, d.Notify), d.Notify)

	api := r.Group("/api")

	// auth and user administration
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", middlewares.RateLimit(limiter, "auth_register", middlewares.KeyByIP, d.Prom), authHandler.Register)
		authGroup.POST("/login", middlewares.RateLimit(limiter, "auth_login", middlewares.KeyByIP, d.Prom), authHandler.Login)
		authGroup.GET("/me", requireAuth, authHandler.Me)

		users := authGroup.Group("/users", requireAuth, adminOnly)
		users.GET("", authHandler.ListUsers)
		users.PATCH("/:id/verify", authHandler.VerifyUser)
		users.PUT("/:id", authHandler.UpdateUser)
		users.DELETE("/:id", authHandler.DeleteUser)
	}

	// country metrics
	cd := api.Group("/country-data")
	{
		cd.GET("", countryHandler.List)
		cd.GET("/stats", countryHandler.Stats)
		cd.GET("/years", countryHandler.Years)
		cd.GET("/countries", countryHandler.Countries)
		cd.GET("/:id/:year", countryHandler.Get)

		cd.POST("", requireAuth, staff, countryHandler.Create)
		cd.POST("/bulk", requireAuth, staff, countryHandler.Bulk)
		cd.PUT("/:id/:year", requireAuth, adminOnly, countryHandler.Update)

		cd.DELETE("", requireAuth, staff, countryHandler.DeleteAll)
		cd.DELETE("/delete-by-year/:year", requireAuth, staff, countryHandler.DeleteByYear)
		cd.DELETE("/delete-by-country/:name", requireAuth, staff, countryHandler.DeleteByCountry)
		cd.DELETE("/delete-selective", requireAuth, staff, countryHandler.DeleteSelective)
		cd.DELETE("/:id/:year", requireAuth, staff, countryHandler.Delete)
	}

	// startup directory
	st := api.Group("/startups")
	{
		st.GET("", startupsHandler.List)
		st.GET("/pending", requireAuth, adminOnly, startupsHandler.Pending)
		st.GET("/:id", optionalAuth, startupsHandler.Get)

		submitLimit := middlewares.RateLimit(limiter, "startups_submit", middlewares.KeyByUserOrIP, d.Prom)
		st.POST("", optionalAuth, submitLimit, startupsHandler.Create)
		st.POST("/bulk", optionalAuth, submitLimit, startupsHandler.Bulk)

		st.PUT("/:id", requireAuth, staff, startupsHandler.Update)
		st.PATCH("/bulk-verify", requireAuth, adminOnly, startupsHandler.BulkVerify)
		st.PATCH("/:id/verify", requireAuth, adminOnly, startupsHandler.Verify)
		st.DELETE("/bulk-delete", requireAuth, adminOnly, startupsHandler.BulkDelete)
		st.DELETE("/:id", requireAuth, staff, startupsHandler.Delete)
	}

	return r
}
