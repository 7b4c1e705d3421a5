package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"energy-server/confs"
	"energy-server/handlers"
	httpHandler "energy-server/handlers/http"
	"energy-server/metrics"
	"energy-server/services"
	"energy-server/usecases"
	"energy-server/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Dependencies are the wired components the HTTP layer serves.
type Dependencies struct {
	Config     *confs.Config
	Log        zerolog.Logger
	Auth       *usecases.AuthUseCase
	Devices    *usecases.DeviceUseCase
	Budgets    *usecases.BudgetUseCase
	Alerts     *usecases.AlertUseCase
	Aggregator *services.BudgetAggregator
	WS         *ws.Manager
}

type Server struct {
	app     *gin.Engine
	http    *http.Server
	deps    Dependencies
	limiter *httpHandler.RateLimiter
	bg      context.Context
	stop    context.CancelFunc
}

func NewServer(deps Dependencies) *Server {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	bg, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:     gin.New(),
		deps:    deps,
		limiter: httpHandler.NewRateLimiter(deps.Config.LoginRatePerSec, deps.Config.LoginRateBurst),
		bg:      bg,
		stop:    cancel,
	}
	s.routes()
	s.http = &http.Server{
		Addr:              deps.Config.Addr(),
		Handler:           s.app,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.app }

func (s *Server) routes() {
	cfg := s.deps.Config

	s.app.Use(gin.Recovery())
	s.app.Use(httpHandler.RequestLogger(s.deps.Log))
	s.app.Use(metrics.GinMiddleware())

	// Setup CORS middleware
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = []string{cfg.CORSOrigin}
	corsCfg.AllowCredentials = true
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	s.app.Use(cors.New(corsCfg))

	s.app.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})
	s.app.GET("/metrics", gin.WrapH(metrics.Handler()))

	cookies := httpHandler.CookieConfig{Secure: cfg.IsProduction(), MaxAge: s.deps.Auth.TokenTTL()}

	userHandler := httpHandler.NewUserHandler(s.deps.Auth, cookies)
	deviceHandler := httpHandler.NewDeviceHandler(s.deps.Devices)
	usageHandler := httpHandler.NewEnergyUsageHandler(s.deps.Devices)
	budgetHandler := httpHandler.NewBudgetHandler(s.deps.Budgets)
	alertHandler := httpHandler.NewAlertHandler(s.deps.Alerts)
	aggregationHandler := handlers.NewAggregationHandler(s.deps.Aggregator)
	wsHandler := handlers.NewWSHandler(s.deps.WS, s.deps.Alerts, cfg.CORSOrigin, s.deps.Log.With().Str("component", "ws").Logger())

	authRequired := httpHandler.AuthMiddleware(s.deps.Auth)
	sameUser := httpHandler.RequireSameUser()

	s.app.GET("/trigger-cron-job", aggregationHandler.TriggerAggregation)
	s.app.GET("/ws", authRequired, wsHandler.HandleUserWS)

	api := s.app.Group("/api")
	{
		users := api.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", s.limiter.Middleware(), userHandler.Login)
			users.POST("/logout", userHandler.Logout)
			users.DELETE("/logout", userHandler.Logout)
			users.GET("/profile/:userId", authRequired, sameUser, userHandler.Profile)
		}

		devices := api.Group("/devices", authRequired)
		{
			devices.POST("/create", deviceHandler.CreateDevice)
			devices.GET("/:userId", sameUser, deviceHandler.GetDevices)
			devices.GET("/:userId/:deviceId", sameUser, deviceHandler.GetDevice)
			devices.PUT("/:userId/:deviceId", sameUser, deviceHandler.UpdateDevice)
			devices.DELETE("/:userId/:deviceId", sameUser, deviceHandler.DeleteDevice)
			devices.PUT("/:userId/:deviceId/energy-usage", sameUser, deviceHandler.UpdateEnergyUsage)
		}

		budgets := api.Group("/budgets", authRequired)
		{
			budgets.POST("/create", budgetHandler.CreateBudget)
			budgets.GET("/:userId", sameUser, budgetHandler.GetBudgets)
			budgets.GET("/:userId/:budgetId", sameUser, budgetHandler.GetBudget)
			budgets.PUT("/:userId/:budgetId", sameUser, budgetHandler.UpdateBudget)
			budgets.DELETE("/:userId/:budgetId", sameUser, budgetHandler.DeleteBudget)
			budgets.GET("/:userId/:budgetId/energy-usage", sameUser, budgetHandler.GetEnergyUsage)
			budgets.PUT("/:userId/:budgetId/energy-usage", sameUser, budgetHandler.UpdateEnergyUsage)
			budgets.PUT("/:userId/:budgetId/aggregate-usage", sameUser, budgetHandler.AggregateUsage)
		}

		api.GET("/energy-usage/:userId", authRequired, sameUser, usageHandler.GetEnergyUsage)

		alerts := api.Group("/alerts", authRequired)
		{
			alerts.POST("/create", alertHandler.CreateAlert)
			alerts.GET("", alertHandler.GetAlerts)
			alerts.GET("/", alertHandler.GetAlerts)
			alerts.PUT("/:alertId", alertHandler.MarkAsRead)
		}

		api.GET("/aggregation/status", authRequired, aggregationHandler.GetStatus)
		api.GET("/ws/connections", authRequired, wsHandler.GetConnectedUsers)
	}
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.limiter.StartCleanup(s.bg, time.Minute, 10*time.Minute)

	s.deps.Log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes live websocket connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	s.deps.WS.CloseAll()
	return s.http.Shutdown(ctx)
}
