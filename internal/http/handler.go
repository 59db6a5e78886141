package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/erddap"
)

// Handler handles HTTP requests for dataset discovery and access URLs.
type Handler struct {
	service *SearchService
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *SearchService) *Handler {
	return &Handler{
		service: service,
	}
}

// Search handles GET /v1/search.
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}
	protocol := c.DefaultQuery("protocol", "tabledap")
	server := c.Query("server")

	results, err := h.service.Search(c.Request.Context(), query, protocol, server)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(results),
		"results": results,
	})
}

// ListServers handles GET /v1/servers.
func (h *Handler) ListServers(c *gin.Context) {
	type ServerInfo struct {
		ShortName   string `json:"short_name"`
		Description string `json:"description"`
		URL         string `json:"url"`
	}

	registry := h.service.Servers()
	servers := make([]ServerInfo, 0, len(registry))
	for shortName, entry := range registry {
		servers = append(servers, ServerInfo{
			ShortName:   shortName,
			Description: entry.Description,
			URL:         entry.URL,
		})
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers})
}

// Categorize handles GET /v1/categorize/:by.
func (h *Handler) Categorize(c *gin.Context) {
	url, err := h.service.CategorizeURL(
		c.Param("by"),
		c.Query("value"),
		c.DefaultQuery("response", "json"),
	)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// DatasetInfo handles GET /v1/datasets/:id/info.
func (h *Handler) DatasetInfo(c *gin.Context) {
	variables, err := h.service.DatasetInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"variables": variables})
}

// DownloadURL handles GET /v1/datasets/:id/url.
func (h *Handler) DownloadURL(c *gin.Context) {
	var variables []string
	if raw := c.Query("variables"); raw != "" {
		variables = strings.Split(raw, ",")
	}
	url, err := h.service.DownloadURL(
		c.Param("id"),
		c.DefaultQuery("protocol", "tabledap"),
		c.DefaultQuery("response", "csv"),
		variables,
	)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps client errors to HTTP statuses: caller mistakes are 400s,
// upstream ERDDAP failures are 502s.
func statusFor(err error) int {
	switch {
	case errors.Is(err, erddap.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, erddap.ErrParse):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
