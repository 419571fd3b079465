// Package youtube provides a client for the YouTube Data API v3 search and
// playlist endpoints.
package youtube

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Client performs YouTube Data API operations.
type Client interface {
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
	PlaylistDetails(ctx context.Context, playlistIDs []string) (map[string]PlaylistDetail, error)
}

// SearchResponse is the parsed search.list response.
type SearchResponse struct {
	Items []SearchItem `json:"items"`
}

// SearchItem is one search.list item.
type SearchItem struct {
	ID      ItemID  `json:"id"`
	Snippet Snippet `json:"snippet"`
}

// ItemID distinguishes videos from playlists.
type ItemID struct {
	Kind       string `json:"kind"` // "youtube#video" or "youtube#playlist"
	VideoID    string `json:"videoId"`
	PlaylistID string `json:"playlistId"`
}

// Snippet holds the displayable fields of an item.
type Snippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
}

// PlaylistDetail carries the playlist item count from playlists.list.
type PlaylistDetail struct {
	ItemCount int `json:"itemCount"`
}

// WatchURL builds the public URL for a search item.
func (it SearchItem) WatchURL() string {
	switch {
	case it.ID.PlaylistID != "":
		return "https://www.youtube.com/playlist?list=" + it.ID.PlaylistID
	case it.ID.VideoID != "":
		return "https://www.youtube.com/watch?v=" + it.ID.VideoID
	default:
		return ""
	}
}

// IsPlaylist reports whether the item is a playlist.
func (it SearchItem) IsPlaylist() bool {
	return it.ID.Kind == "youtube#playlist" || it.ID.PlaylistID != ""
}

// SearchOption configures one search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	maxResults int
	language   string
	region     string
}

// WithMaxResults caps the number of returned items.
func WithMaxResults(n int) SearchOption {
	return func(o *searchOpts) {
		o.maxResults = n
	}
}

// WithRelevanceLanguage biases results toward a language.
func WithRelevanceLanguage(lang string) SearchOption {
	return func(o *searchOpts) {
		o.language = lang
	}
}

// WithRegionCode biases results toward a region.
func WithRegionCode(cc string) SearchOption {
	return func(o *searchOpts) {
		o.region = cc
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

// NewClient creates a YouTube Data API client.
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
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video,playlist")
	params.Set("key", c.apiKey)
	if so.maxResults > 0 {
		params.Set("maxResults", strconv.Itoa(so.maxResults))
	}
	if so.language != "" {
		params.Set("relevanceLanguage", so.language)
	}
	if so.region != "" {
		params.Set("regionCode", so.region)
	}

	var result SearchResponse
	if err := c.get(ctx, "/search", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) PlaylistDetails(ctx context.Context, playlistIDs []string) (map[string]PlaylistDetail, error) {
	if len(playlistIDs) == 0 {
		return map[string]PlaylistDetail{}, nil
	}

	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", strings.Join(playlistIDs, ","))
	params.Set("key", c.apiKey)

	var result struct {
		Items []struct {
			ID             string `json:"id"`
			ContentDetails struct {
				ItemCount int `json:"itemCount"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/playlists", params, &result); err != nil {
		return nil, err
	}

	details := make(map[string]PlaylistDetail, len(result.Items))
	for _, it := range result.Items {
		details[it.ID] = PlaylistDetail{ItemCount: it.ContentDetails.ItemCount}
	}
	return details, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrapf(err, "youtube: create request %s", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "youtube: send request %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "youtube: read response %s", path)
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("youtube: unexpected status %d on %s: %s", resp.StatusCode, path, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "youtube: unmarshal response %s", path)
	}
	return nil
}
