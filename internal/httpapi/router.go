package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/suPer8Hu/providentia/internal/auth"
	"github.com/suPer8Hu/providentia/internal/chat"
	"github.com/suPer8Hu/providentia/internal/common"
	"github.com/suPer8Hu/providentia/internal/config"
	"github.com/suPer8Hu/providentia/internal/httpapi/handlers"
	"github.com/suPer8Hu/providentia/internal/httpapi/middleware"
)

func NewRouter(db *gorm.DB, cfg config.Config, rdb *redis.Client, verifier auth.Verifier, orch *chat.Orchestrator) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, rdb, orch)

	r.GET("/health", h.Health)
	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	// the pipeline verifies the credential itself (its first stage), so
	// /chat gets the concurrency cap but no auth middleware
	r.POST("/chat", middleware.ConcurrencyLimit(cfg.MaxInFlight), h.Chat)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(verifier))
	authGroup.GET("/chat/history", h.History)
	authGroup.GET("/stats", h.Stats)

	return r
}
