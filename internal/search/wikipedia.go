package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "github.com/convoflow-poc/server/pkg/logger"
)

// WikiResult is one encyclopedic search hit.
type WikiResult struct {
	Content string `json:"content"`
	Title   string `json:"title"`
	Source  string `json:"source"`
}

// WikipediaClient searches titles via the MediaWiki API and then fetches
// plain-text extracts for the matches.
type WikipediaClient struct {
	baseURL string
	http    *http.Client
}

func NewWikipediaClient(baseURL string) *WikipediaClient {
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org/w/api.php"
	}
	return &WikipediaClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns up to maxDocs article extracts for the query. The error is
// informational; research degrades to an empty result set on any failure.
func (c *WikipediaClient) Search(ctx context.Context, query string, maxDocs int) ([]WikiResult, error) {
	if maxDocs <= 0 {
		maxDocs = 2
	}

	titles, err := c.searchTitles(ctx, query, maxDocs)
	if err != nil {
		logx.Error().Err(err).Str("query", query).Msg("wikipedia title search failed")
		return nil, err
	}
	if len(titles) == 0 {
		return nil, nil
	}

	var extracts wikiExtractResponse
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"explaintext": {"1"},
		"exintro":     {"0"},
		"format":      {"json"},
		"titles":      {strings.Join(titles, "|")},
	}
	if err := c.get(ctx, params, &extracts); err != nil {
		logx.Error().Err(err).Str("query", query).Msg("wikipedia extract fetch failed")
		return nil, err
	}

	out := make([]WikiResult, 0, len(extracts.Query.Pages))
	for _, page := range extracts.Query.Pages {
		if strings.TrimSpace(page.Extract) == "" {
			continue
		}
		out = append(out, WikiResult{
			Content: page.Extract,
			Title:   page.Title,
			Source:  "wikipedia.org",
		})
	}
	return out, nil
}

func (c *WikipediaClient) searchTitles(ctx context.Context, query string, limit int) ([]string, error) {
	var parsed wikiSearchResponse
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"format":   {"json"},
	}
	if err := c.get(ctx, params, &parsed); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(parsed.Query.Search))
	for _, hit := range parsed.Query.Search {
		titles = append(titles, hit.Title)
	}
	return titles, nil
}

func (c *WikipediaClient) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build wikipedia request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia request: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode wikipedia response: %w", err)
	}
	return nil
}
