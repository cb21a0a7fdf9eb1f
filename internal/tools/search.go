package tools

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
)

// SearchConfig configures the Tavily adapter.
type SearchConfig struct {
	APIKey         string `yaml:"api_key" envconfig:"TAVILY_API_KEY"`
	BaseURL        string `yaml:"base_url" envconfig:"TAVILY_BASE_URL"`
	MaxResults     int    `yaml:"max_results" envconfig:"TAVILY_MAX_RESULTS"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"TAVILY_TIMEOUT_SECONDS"`
}

// Normalize fills defaults in place.
func (c *SearchConfig) Normalize() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.tavily.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
}

// SearchClient calls the Tavily search API. Queries run at advanced depth
// first and drop to basic depth before giving up.
type SearchClient struct {
	cfg  SearchConfig
	http *http.Client
}

// NewSearchClient builds the adapter.
func NewSearchClient(cfg SearchConfig) *SearchClient {
	cfg.Normalize()
	return &SearchClient{cfg: cfg, http: newHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second)}
}

const maxSnippetLen = 700

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	Topic             string `json:"topic"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	IncludeImages     bool   `json:"include_images"`
	TimeRange         string `json:"time_range,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns bounded web context for the query. timeRange may be empty
// or a Tavily range keyword such as "week" or "month".
func (c *SearchClient) Search(ctx context.Context, query, timeRange string) (*domain.WebContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, toolErr("search", errEmptyQuery)
	}

	var lastErr error
	for _, depth := range []string{"advanced", "basic"} {
		out, err := c.searchAtDepth(ctx, query, timeRange, depth)
		if err == nil {
			return out, nil
		}
		lastErr = err
		logger.SEARCH.Warn("search depth failed",
			"event", "search.query",
			"status", "fallback",
			"provider", "tavily/"+depth,
			"query", logger.SanitizeLimit(query, 120),
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
	}
	logger.SEARCH.Error("search chain exhausted",
		"event", "search.query",
		"status", "fail",
		"query", logger.SanitizeLimit(query, 120),
	)
	return nil, toolErr("search", lastErr)
}

func (c *SearchClient) searchAtDepth(ctx context.Context, query, timeRange, depth string) (*domain.WebContext, error) {
	limit := c.cfg.MaxResults
	if limit < 1 {
		limit = 1
	}
	if limit > 10 {
		limit = 10
	}

	payload := tavilyRequest{
		Query:       query,
		MaxResults:  limit,
		SearchDepth: depth,
		Topic:       "general",
		TimeRange:   timeRange,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var resp tavilyResponse
	if err := postJSON(ctx, c.http, "tavily", c.cfg.BaseURL+"/search", headers, payload, &resp); err != nil {
		return nil, err
	}

	out := &domain.WebContext{
		Source:    "tavily/" + depth,
		FetchedAt: time.Now().UTC(),
		Query:     query,
	}
	for _, r := range resp.Results {
		if len(out.Snippets) == domain.MaxAdvisorySnippets && len(out.URLs) == domain.MaxAdvisorySnippets {
			break
		}
		if u := strings.TrimSpace(r.URL); u != "" && len(out.URLs) < domain.MaxAdvisorySnippets {
			out.URLs = append(out.URLs, u)
			out.Results = append(out.Results, domain.WebResult{
				Title: strings.TrimSpace(r.Title),
				URL:   u,
			})
		}
		line := joinNonEmpty(" — ", r.Title, r.Content)
		if line != "" && len(out.Snippets) < domain.MaxAdvisorySnippets {
			if runes := []rune(line); len(runes) > maxSnippetLen {
				line = string(runes[:maxSnippetLen])
			}
			out.Snippets = append(out.Snippets, line)
		}
	}
	logger.SEARCH.Info("search ok",
		"event", "search.query",
		"status", "ok",
		"provider", "tavily/"+depth,
		"results", len(resp.Results),
		"snippets", len(out.Snippets),
	)
	return out, nil
}

var errEmptyQuery = errors.New("empty query")
