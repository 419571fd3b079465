// Package brave provides a client for the Brave Web Search API.
package brave

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1"

// Client performs Brave web search operations.
type Client interface {
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the parsed Brave response.
type SearchResponse struct {
	Web WebResults `json:"web"`
}

// WebResults holds the web result list.
type WebResults struct {
	Results []Result `json:"results"`
}

// Result is one web search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// SearchOption configures one search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	count    int
	language string
	country  string
}

// WithCount limits the number of results.
func WithCount(n int) SearchOption {
	return func(o *searchOpts) {
		o.count = n
	}
}

// WithLanguage sets the search language hint.
func WithLanguage(lang string) SearchOption {
	return func(o *searchOpts) {
		o.language = lang
	}
}

// WithCountry sets the country hint.
func WithCountry(cc string) SearchOption {
	return func(o *searchOpts) {
		o.country = cc
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Brave Search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	var so searchOpts
	for _, o := range opts {
		o(&so)
	}

	params := url.Values{}
	params.Set("q", query)
	if so.count > 0 {
		params.Set("count", strconv.Itoa(so.count))
	}
	if so.language != "" {
		params.Set("search_lang", so.language)
	}
	if so.country != "" {
		params.Set("country", so.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/web/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "brave: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "brave: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "brave: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("brave: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "brave: unmarshal response")
	}

	return &result, nil
}
