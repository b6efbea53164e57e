package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vitatrack/auth-lifecycle/internal/api/handler"
	"github.com/vitatrack/auth-lifecycle/internal/api/middleware"
	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
	"github.com/vitatrack/auth-lifecycle/internal/core/service"
)

// entryPoint is the public page unauthenticated visitors are sent to.
const entryPoint = "/"

// Dependencies carries everything the router wires together. Mongo and
// Redis handles may be nil when running on in-memory tiers.
type Dependencies struct {
	Sessions *service.Sessions
	Gateway  ports.IdentityGateway
	Cookies  handler.CookieConfig
	Mongo    *mongo.Database
	Redis    *redis.Client
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("authlifecycle"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Sessions, deps.Cookies)
	sessionHandler := handler.NewSessionHandler(deps.Sessions, deps.Gateway, deps.Cookies)
	guard := middleware.Guard(deps.Sessions, deps.Gateway, entryPoint, deps.Log)

	// --- OTP flow routes ---
	e.POST("/auth/:purpose/request-otp", authHandler.RequestOTP)
	e.POST("/auth/:purpose/verify-otp", authHandler.VerifyOTP)
	e.POST("/auth/:purpose/resend-otp", authHandler.ResendOTP)
	e.GET("/auth/flow/:purpose", authHandler.FlowState)

	// --- Session lifecycle routes ---
	e.GET("/session", sessionHandler.Current)
	e.POST("/session/heartbeat", sessionHandler.Heartbeat)
	e.POST("/session/acknowledge", sessionHandler.Acknowledge)
	e.POST("/session/visibility", sessionHandler.Visibility)
	e.POST("/session/profile-prompt", sessionHandler.DismissProfilePrompt)
	e.POST("/session/logout", sessionHandler.Logout)

	// --- Protected views ---
	e.GET("/dashboard", dashboard, guard)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}

// dashboard is the guarded landing view. The guard has already validated
// the token and injected the identity before this runs.
func dashboard(c echo.Context) error {
	identity, _ := c.Get("identity").(domain.Identity)
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Welcome back, " + identity.DisplayName() + "!",
		"user":    identity,
	})
}
