package erddap

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Server is a registry entry for a known public ERDDAP deployment.
type Server struct {
	Description string
	URL         string
}

// serverCatalogURL is the community-maintained list of public ERDDAP
// servers.
const serverCatalogURL = "https://raw.githubusercontent.com/IrishMarineInstitute/awesome-erddap/master/erddaps.json"

//go:embed erddaps.json
var fallbackCatalog []byte

var (
	serversMu    sync.Mutex
	serversCache map[string]Server
)

// Servers returns the registry of known ERDDAP servers keyed by lower-cased
// short name. The first call tries to download the latest catalog, falling
// back to the bundled copy; the result is cached for the process lifetime.
func Servers() map[string]Server {
	serversMu.Lock()
	defer serversMu.Unlock()
	if serversCache != nil {
		return serversCache
	}

	fetcher := &HTTPFetcher{Timeout: 10 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, err := fetcher.Fetch(ctx, serverCatalogURL)
	if err != nil {
		payload = fallbackCatalog
	}
	registry, err := parseServerCatalog(payload)
	if err != nil {
		registry, _ = parseServerCatalog(fallbackCatalog)
	}
	serversCache = registry
	return serversCache
}

// SetServers replaces the registry, mainly so tests can inject a substitute.
// Passing nil resets the cache and the next Servers call reloads it.
func SetServers(registry map[string]Server) {
	serversMu.Lock()
	defer serversMu.Unlock()
	serversCache = registry
}

// parseServerCatalog decodes an awesome-erddap catalog, dropping non-public
// servers and entries without a short name.
func parseServerCatalog(payload []byte) (map[string]Server, error) {
	var entries []struct {
		Name      string `json:"name"`
		ShortName string `json:"short_name"`
		URL       string `json:"url"`
		Public    bool   `json:"public"`
	}
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, err
	}
	registry := make(map[string]Server, len(entries))
	for _, entry := range entries {
		if !entry.Public || entry.ShortName == "" {
			continue
		}
		registry[strings.ToLower(entry.ShortName)] = Server{
			Description: entry.Name,
			URL:         entry.URL,
		}
	}
	return registry, nil
}

// resolveServer maps a registry short name (case-insensitive) to its URL;
// anything not in the registry is assumed to already be a URL.
func resolveServer(server string) string {
	if entry, ok := Servers()[strings.ToLower(server)]; ok {
		return entry.URL
	}
	return server
}
