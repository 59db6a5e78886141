// Package main provides the ERDDAP facade HTTP server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"go.ngs.io/erddap"
	httpHandler "go.ngs.io/erddap/internal/http"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("erddap-api version %s\n", version)
		return
	}

	// Load configuration from environment.
	port := getEnv("PORT", "8080")
	server := getEnv("ERDDAP_SERVER", "https://gliders.ioos.us/erddap")
	timeout := getEnv("ERDDAP_TIMEOUT", "60s")

	log := logrus.StandardLogger()

	fetchTimeout, err := time.ParseDuration(timeout)
	if err != nil {
		log.Fatalf("Invalid ERDDAP_TIMEOUT %q: %v", timeout, err)
	}

	log.Info("Starting ERDDAP API server...")
	log.Infof("Port: %s", port)
	log.Infof("Default ERDDAP server: %s", server)
	log.Infof("Fetch timeout: %s", fetchTimeout)

	// Initialize the shared fetcher and service.
	fetcher := &erddap.HTTPFetcher{Timeout: fetchTimeout}
	service := httpHandler.NewSearchService(server, fetcher, log)

	// Setup router.
	router := httpHandler.SetupRouter(service)

	// Start server.
	addr := fmt.Sprintf(":%s", port)
	log.Infof("Server listening on %s", addr)
	log.Infof("Health check: http://localhost:%s/health", port)
	log.Info("API endpoints:")
	log.Info("  - GET /v1/search")
	log.Info("  - GET /v1/servers")
	log.Info("  - GET /v1/categorize/:by")
	log.Info("  - GET /v1/datasets/:id/info")
	log.Info("  - GET /v1/datasets/:id/url")

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("ERDDAP API Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help     Show usage information")
	fmt.Println("  -version  Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  PORT                  Listen port (default 8080)")
	fmt.Println("  ERDDAP_SERVER         Default ERDDAP endpoint for dataset requests")
	fmt.Println("  ERDDAP_TIMEOUT        Per-request fetch timeout (default 60s)")
	fmt.Println("  CORS_ALLOWED_ORIGINS  Comma-separated allowed origins (default all)")
}
