// Package paper implements the client for the external paper registry,
// with golang.org/x/time/rate for request pacing and
// github.com/sony/gobreaker/v2 for failure isolation.
package paper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	agentmodels "arxivian/internal/domain/models/agent"
)

// RetryAfterError is raised when the registry responds 429 with a
// Retry-After hint. The client clamps the wait to [10s, 120s].
type RetryAfterError struct {
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("arxiv: rate limited, retry after %s", e.RetryAfter)
}

const (
	minRetryAfter = 10 * time.Second
	maxRetryAfter = 120 * time.Second
)

// SearchResult is one paper entry returned by the registry's search
// endpoint.
type SearchResult struct {
	ArxivID       string     `json:"arxiv_id"`
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	Abstract      string     `json:"abstract"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	PDFURL        string     `json:"pdf_url"`
}

// Client calls the external paper registry, fronted by a per-process
// token-bucket limiter and a circuit breaker that trips on repeated
// upstream failures.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

func New(baseURL string) *Client {
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "arxiv-registry",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(3), 3),
		breaker:    breaker,
	}
}

// Search queries the registry for papers matching query, returning up to
// maxResults entries.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("arxiv: rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s?search_query=%s&max_results=%d", c.baseURL, query, maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: build request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, &RetryAfterError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("arxiv: upstream status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		var rae *RetryAfterError
		if errors.As(err, &rae) {
			select {
			case <-time.After(rae.RetryAfter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return c.Search(ctx, query, maxResults)
		}
		return nil, err
	}
	defer resp.Body.Close()

	var results []SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("arxiv: decode response: %w", err)
	}
	return results, nil
}

// GetByID fetches one paper's metadata by its arXiv ID.
func (c *Client) GetByID(ctx context.Context, arxivID string) (*SearchResult, error) {
	results, err := c.Search(ctx, "id:"+arxivID, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("arxiv: paper %s not found", arxivID)
	}
	return &results[0], nil
}

func parseRetryAfter(header string) time.Duration {
	d := 30 * time.Second
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil {
			d = time.Duration(secs) * time.Second
		}
	}
	if d < minRetryAfter {
		d = minRetryAfter
	}
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

// ToProposedPaper projects a SearchResult into the ProposedPaper shape
// surfaced by propose_ingest's HITL confirmation payload.
func (r SearchResult) ToProposedPaper() agentmodels.ProposedPaper {
	return agentmodels.ProposedPaper{
		ArxivID:       r.ArxivID,
		Title:         r.Title,
		Authors:       r.Authors,
		Abstract:      r.Abstract,
		PublishedDate: r.PublishedDate,
		PDFURL:        r.PDFURL,
	}
}
