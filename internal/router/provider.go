package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/pkg/brave"
	"github.com/eduseek/curator/pkg/serper"
	"github.com/eduseek/curator/pkg/youtube"
)

// Provider is one search backend behind the router. Adapters own their
// authentication and translate their wire schema into model.SearchHit.
type Provider interface {
	Name() string
	// Specializes reports whether the provider is a specialist for the
	// query's language. General-purpose providers return false for all.
	Specializes(language string) bool
	Search(ctx context.Context, q model.Query) ([]model.SearchHit, error)
}

// classifyHit infers the resource type from a result URL.
func classifyHit(rawURL string) model.ResultKind {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "playlist"):
		return model.KindPlaylist
	case strings.Contains(lower, "youtube.com/watch"),
		strings.Contains(lower, "youtu.be/"),
		strings.Contains(lower, "vimeo.com/"),
		strings.Contains(lower, "dailymotion.com/video"):
		return model.KindVideo
	default:
		return model.KindOther
	}
}

// SerperProvider adapts the Serper.dev Google-search client.
type SerperProvider struct {
	client serper.Client
}

// NewSerperProvider wraps a serper client.
func NewSerperProvider(client serper.Client) *SerperProvider {
	return &SerperProvider{client: client}
}

func (p *SerperProvider) Name() string { return "serper" }

func (p *SerperProvider) Specializes(string) bool { return false }

func (p *SerperProvider) Search(ctx context.Context, q model.Query) ([]model.SearchHit, error) {
	resp, err := p.client.Search(ctx, serper.SearchRequest{
		Query:    q.Text,
		Num:      q.MaxHits,
		Language: q.Language,
		Country:  strings.ToLower(q.Region),
	})
	if err != nil {
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		hits = append(hits, model.SearchHit{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
			Kind:    classifyHit(r.Link),
		})
	}
	return hits, nil
}

// BraveProvider adapts the Brave web-search client.
type BraveProvider struct {
	client brave.Client
}

// NewBraveProvider wraps a brave client.
func NewBraveProvider(client brave.Client) *BraveProvider {
	return &BraveProvider{client: client}
}

func (p *BraveProvider) Name() string { return "brave" }

func (p *BraveProvider) Specializes(string) bool { return false }

func (p *BraveProvider) Search(ctx context.Context, q model.Query) ([]model.SearchHit, error) {
	resp, err := p.client.Search(ctx, q.Text,
		brave.WithCount(q.MaxHits),
		brave.WithLanguage(q.Language),
		brave.WithCountry(strings.ToUpper(q.Region)),
	)
	if err != nil {
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		hits = append(hits, model.SearchHit{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
			Kind:    classifyHit(r.URL),
		})
	}
	return hits, nil
}

// YouTubeProvider adapts the YouTube Data API client. It is the video
// specialist: titles in the region's own language surface far better here
// than through general web search.
type YouTubeProvider struct {
	client    youtube.Client
	languages map[string]bool
}

// NewYouTubeProvider wraps a youtube client with the languages it is
// treated as a specialist for.
func NewYouTubeProvider(client youtube.Client, languages []string) *YouTubeProvider {
	langs := make(map[string]bool, len(languages))
	for _, l := range languages {
		langs[strings.ToLower(l)] = true
	}
	return &YouTubeProvider{client: client, languages: langs}
}

func (p *YouTubeProvider) Name() string { return "youtube" }

func (p *YouTubeProvider) Specializes(language string) bool {
	return p.languages[strings.ToLower(language)]
}

func (p *YouTubeProvider) Search(ctx context.Context, q model.Query) ([]model.SearchHit, error) {
	resp, err := p.client.Search(ctx, q.Text,
		youtube.WithMaxResults(q.MaxHits),
		youtube.WithRelevanceLanguage(q.Language),
		youtube.WithRegionCode(strings.ToUpper(q.Region)),
	)
	if err != nil {
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(resp.Items))
	var playlistIDs []string
	playlistIdx := make(map[string]int)

	for _, it := range resp.Items {
		url := it.WatchURL()
		if url == "" {
			continue
		}
		hit := model.SearchHit{
			Title:   it.Snippet.Title,
			URL:     url,
			Snippet: it.Snippet.Description,
			Kind:    model.KindVideo,
		}
		if it.IsPlaylist() {
			hit.Kind = model.KindPlaylist
			playlistIdx[it.ID.PlaylistID] = len(hits)
			playlistIDs = append(playlistIDs, it.ID.PlaylistID)
		}
		hits = append(hits, hit)
	}

	// Playlist richness enrichment is best-effort: a detail failure must
	// not sink the whole dispatch.
	if len(playlistIDs) > 0 {
		details, err := p.client.PlaylistDetails(ctx, playlistIDs)
		if err != nil {
			zap.L().Warn("router: playlist details failed",
				zap.Int("playlists", len(playlistIDs)),
				zap.Error(err),
			)
		} else {
			for id, d := range details {
				if idx, ok := playlistIdx[id]; ok {
					hits[idx].Items = d.ItemCount
					// Rough running-time estimate for ranking richness;
					// the API does not expose playlist duration directly.
					hits[idx].Duration = time.Duration(d.ItemCount) * 10 * time.Minute
				}
			}
		}
	}

	return hits, nil
}
