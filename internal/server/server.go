package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/vladimiradmaev/food-diary/internal/auth"
	"github.com/vladimiradmaev/food-diary/internal/config"
	"github.com/vladimiradmaev/food-diary/internal/interfaces"
	"github.com/vladimiradmaev/food-diary/internal/logger"
	"gorm.io/gorm"
)

// Dependencies holds all service dependencies for HTTP handlers
type Dependencies struct {
	Users    interfaces.UserServiceInterface
	Analysis interfaces.AnalysisServiceInterface
	Diary    interfaces.DiaryServiceInterface
	FAQ      interfaces.FAQServiceInterface
	Tokens   *auth.TokenService
	DB       *gorm.DB
	Redis    *redis.Client // optional, enables rate limiting
}

type Server struct {
	cfg    *config.Config
	deps   Dependencies
	router *gin.Engine
}

func New(cfg *config.Config, deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestID())
	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Authorization"},
		AllowCredentials: true,
	}))

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
	}

	router.Static("/static/images", cfg.HTTP.StaticDir)

	api := router.Group("/api")
	if deps.Redis != nil {
		api.Use(RateLimiter(deps.Redis))
	}
	api.GET("/faq", s.handleFAQ)
	api.POST("/auth", s.handleAuth)

	authorized := api.Group("/")
	authorized.Use(s.authRequired())
	authorized.POST("/diaries", s.handleDiaries)
	authorized.POST("/analysis", s.handleSubmitPhoto)
	authorized.GET("/analysis/result", s.handlePollResult)
	authorized.POST("/diaries/confirm", s.handleConfirmEntry)

	s.registerAdminRoutes(router)

	return s
}

// Router exposes the underlying engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.HTTP.Port,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on :%s", s.cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
