package main

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"expoboard-backend/dashboard-service/handlers"
	"expoboard-backend/dashboard-service/middleware"
	"expoboard-backend/dashboard-service/services"
	"expoboard-backend/shared/config"
	"expoboard-backend/shared/database"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()

	// Seed initial data
	if err := database.SeedDatabase(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	// Realtime hub (also connects Redis)
	realtime := services.GetRealtimeManager()

	// Archive storage is optional; the service runs without it
	archive, err := services.NewArchiveService()
	if err != nil {
		log.Printf("Warning: archive storage unavailable: %v", err)
		archive = nil
	}

	// Initialize handlers
	securityHandler := handlers.NewSecurityHandler(database.GetDB())
	sessionHandler := handlers.NewSessionHandler(database.GetDB())
	adminHandler := handlers.NewAdminHandler(database.GetDB(), realtime, archive)

	router := gin.Default()
	router.Use(cors.Default())

	// Edge gate runs before every route
	router.Use(middleware.EdgeGate(securityHandler.Store(), securityHandler.Evaluator()))

	// Locked surface
	router.GET("/locked", securityHandler.CheckIPLockout)

	// Security server actions
	securityRoutes := router.Group("/api/security")
	{
		securityRoutes.POST("/verify-key", securityHandler.VerifyKey)
		securityRoutes.POST("/unlock", securityHandler.Unlock)
		securityRoutes.POST("/events", securityHandler.LogEvent)
		securityRoutes.GET("/logs", middleware.AuthMiddleware(), middleware.AdminOnly(), securityHandler.ListLogs)
	}

	// Session endpoints
	router.POST("/api/auth/login", sessionHandler.Login)
	router.POST("/api/auth/signout", middleware.AuthMiddleware(), sessionHandler.Signout)
	router.GET("/api/session/status", middleware.AuthMiddleware(), sessionHandler.Status)

	// Admin endpoints (elevated capability)
	adminRoutes := router.Group("/api/admin")
	adminRoutes.Use(middleware.AuthMiddleware(), middleware.AdminOnly())
	{
		adminRoutes.POST("/users", adminHandler.CreateUser)
		adminRoutes.POST("/users/:id/reset-password", adminHandler.ResetUserPassword)
		adminRoutes.POST("/users/:id/force-logout", adminHandler.ForceLogout)
		adminRoutes.PUT("/maintenance", adminHandler.SetMaintenance)
		adminRoutes.POST("/system/reset", adminHandler.SystemReset)
		adminRoutes.POST("/security-logs/export", adminHandler.ExportSecurityLogs)
	}

	// Realtime push for session guards
	router.GET("/ws/guard/:user_id", handlers.HandleGuardWebSocket)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"service": "dashboard-service",
		})
	})

	log.Println("🚀 Dashboard Service starting on port 8001...")
	if err := router.Run(":8001"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
