// Package http exposes the ERDDAP client over a small JSON API.
package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(service *SearchService) *gin.Engine {

	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable.
	// Default to allow all origins if not specified.
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}

	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(service)

	// API v1 routes.
	v1 := router.Group("/v1")
	// Dataset discovery.
	v1.GET("/search", handler.Search)
	v1.GET("/servers", handler.ListServers)
	v1.GET("/categorize/:by", handler.Categorize)

	// Per-dataset metadata and access URLs.
	datasets := v1.Group("/datasets")
	datasets.GET("/:id/info", handler.DatasetInfo)
	datasets.GET("/:id/url", handler.DownloadURL)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}
