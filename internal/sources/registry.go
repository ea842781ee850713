package sources

import (
	"embed"
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all data sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`  // Requests per second, default: 1.0
	AcceptLanguage string  `yaml:"accept_language,omitempty"`
}

// SourceConfig defines a single data source for discovery.
type SourceConfig struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"` // "rss", "search", "crawl"
	URL      string   `yaml:"url,omitempty"`
	APIKey   string   `yaml:"api_key,omitempty"`
	Query    string   `yaml:"query,omitempty"` // search sources
	Seeds    []string `yaml:"seed_urls,omitempty"`
	MaxItems int      `yaml:"max_items,omitempty"`

	Fetch     FetchConfig    `yaml:"fetch,omitempty"`
	Selectors SelectorConfig `yaml:"selectors,omitempty"` // crawl sources
}

// SelectorConfig drives the generic crawl adapter.
type SelectorConfig struct {
	Container string `yaml:"container,omitempty"` // CSS selector for the list item wrapper
	Link      string `yaml:"link,omitempty"`
	Title     string `yaml:"title,omitempty"`
	Content   string `yaml:"content,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml and returns a Registry.
// The path parameter is a filesystem fallback for local development.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${API_KEY})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// BuildAdapters instantiates an adapter per configured source.
func BuildAdapters(reg *Registry, httpClient *http.Client) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(reg.Sources))
	for _, cfg := range reg.Sources {
		switch cfg.Type {
		case "rss":
			adapters = append(adapters, NewRSSAdapter(cfg, httpClient))
		case "search":
			adapters = append(adapters, NewSearchAdapter(cfg, httpClient))
		case "crawl":
			adapters = append(adapters, NewCrawlAdapter(cfg))
		default:
			return nil, fmt.Errorf("unknown source type %q for source %q", cfg.Type, cfg.ID)
		}
	}
	return adapters, nil
}
