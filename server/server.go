package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"task-server/auth"
	"task-server/confs"
	"task-server/db"
	"task-server/handlers"
	graphHandler "task-server/handlers/graphql"
	httpHandler "task-server/handlers/http"
	"task-server/metrics"
	"task-server/repositories"
	"task-server/usecases"
	"task-server/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	app         *gin.Engine
	cfg         *confs.Config
	db          db.Database
	log         zerolog.Logger
	tasks       repositories.TaskRepository
	broadcaster *ws.Broadcaster
}

// NewServer wires every surface over one task store and one authenticator.
func NewServer(cfg *confs.Config, database db.Database, log zerolog.Logger) (*Server, error) {
	if len(cfg.CORSOrigins) == 0 {
		if cfg.IsProduction() {
			return nil, errors.New("CORS_ORIGINS must be set in production")
		}
		log.Warn().Msg("CORS_ORIGINS is empty; any origin may make credentialed requests")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		app:         gin.New(),
		cfg:         cfg,
		db:          database,
		log:         log,
		tasks:       repositories.NewMemTaskRepository(),
		broadcaster: ws.NewBroadcaster(),
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.app.Use(recovery(s.log), requestLogger(s.log), metrics.Middleware())
	s.app.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))
	s.app.Use(secureHeaders(!s.cfg.IsProduction()))

	s.app.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "OK",
			"sessions": len(s.broadcaster.Connected()),
		})
	})
	s.app.GET("/metrics", metrics.Handler())

	// Shared auth collaborators
	authn := auth.NewAuthenticator(auth.NewJWTCodec(s.cfg.JWTSecret), s.cfg.TokenTTL)
	cookie := auth.CookieOptions{Name: s.cfg.CookieName, Secure: s.cfg.IsProduction(), TTL: s.cfg.TokenTTL}
	users := repositories.NewUserSqliteRepository(s.db)
	authUseCase := usecases.NewAuthUseCase(users, auth.NewBcryptHasher(s.cfg.BcryptCost), authn)

	// Initialize handlers
	authHandler := httpHandler.NewAuthHandler(authUseCase, authn, cookie, s.log)
	taskHandler := httpHandler.NewTaskHandler(s.tasks, s.cfg.UploadsDir, s.log)
	wsHandler := handlers.NewWSHandler(s.broadcaster, s.tasks, authn, s.cfg.CookieName, s.checkOrigin, s.log)
	graph, err := graphHandler.NewHandler(s.tasks, authUseCase, authn, cookie, s.log)
	if err != nil {
		return fmt.Errorf("build graph schema: %w", err)
	}

	limit, err := rateLimit(s.cfg.AuthRateLimit)
	if err != nil {
		return fmt.Errorf("parse AUTH_RATE_LIMIT: %w", err)
	}

	api := s.app.Group("/api")
	{
		authRoutes := api.Group("/auth", limit)
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.GET("/me", authHandler.Me)
		}

		tasks := api.Group("/tasks", httpHandler.RequireSession(authn, s.cfg.CookieName, s.log))
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.PUT("/:id/toggle", taskHandler.ToggleTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}
	}

	s.app.GET("/graphql", graph.Serve)
	s.app.POST("/graphql", graph.Serve)
	s.app.GET("/ws", wsHandler.HandleSession)
	s.app.Static("/uploads", s.cfg.UploadsDir)
	return nil
}

// checkOrigin applies the CORS allow-list to session handshakes.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.CORSOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func (s *Server) Handler() http.Handler { return s.app }

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.app,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("port", s.cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info().Msg("server stopped")
	return nil
}
