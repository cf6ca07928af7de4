package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "dragonfly-id/internal/app"
	"dragonfly-id/internal/bootstrap"
	"dragonfly-id/internal/repository"
	"dragonfly-id/internal/transport/http/handler"
	"dragonfly-id/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	observerRepo := repository.NewObserverRepository(app.MySQL)
	authService := appsvc.NewAuthService(
		observerRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	authHandler := handler.NewAuthHandler(authService)
	visionHandler := handler.NewVisionHandler(app.IdentifyService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	RegisterVisionRoutes(v1, visionHandler, app.Config.Auth.JWTSecret)
	return router
}

// RegisterVisionRoutes mounts the identification and sighting endpoints behind JWT auth.
func RegisterVisionRoutes(group *gin.RouterGroup, h *handler.VisionHandler, jwtSecret string) {
	protected := group.Group("")
	protected.Use(middleware.AuthJWT(jwtSecret))
	protected.POST("/identify", h.Identify)
	protected.POST("/identify/reference", h.IdentifyReference)
	protected.GET("/references", h.ListReferences)
	protected.GET("/sightings", h.ListSightings)
	protected.GET("/sightings/stats", h.Stats)
}
