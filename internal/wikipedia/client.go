// Package wikipedia adapts the Wikipedia REST and action APIs: page
// summaries, full-text search and on-this-day feeds.
package wikipedia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pastportals/backend/internal/upstream"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound means the page does not exist.
	ErrNotFound = errors.New("wikipedia: page not found")
	// ErrDisambiguation means the title resolved to a disambiguation page.
	// Summary still returns the page so callers can surface its extract.
	ErrDisambiguation = errors.New("wikipedia: disambiguation page")
	// ErrUnavailable covers timeouts, transport errors, unexpected statuses,
	// undecodable payloads and an open circuit breaker.
	ErrUnavailable = errors.New("wikipedia: unavailable")
)

const (
	DefaultRestURL   = "https://en.wikipedia.org/api/rest_v1"
	DefaultActionURL = "https://en.wikipedia.org/w/api.php"
	DefaultPageURL   = "https://en.wikipedia.org/wiki/"
	DefaultUserAgent = "PastPortals/1.0 (contact@pastportals.app)"
)

// PageSummary is the subset of a page summary the service uses.
type PageSummary struct {
	Title     string
	Extract   string
	Type      string
	Thumbnail string
	PageURL   string
}

// SearchHit is one full-text search result. Snippet carries HTML markup.
type SearchHit struct {
	Title   string
	Snippet string
}

// DayEvent is one on-this-day entry.
type DayEvent struct {
	Text  string
	Year  int
	Pages []string
}

// Source is what the rest of the service needs from the encyclopedia.
type Source interface {
	Summary(ctx context.Context, title string) (PageSummary, error)
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
	OnThisDay(ctx context.Context, month, day int) ([]DayEvent, error)
}

type Config struct {
	RestURL   string
	ActionURL string
	PageURL   string
	UserAgent string
	Timeout   time.Duration
	Breaker   upstream.BreakerSettings
	Transport http.RoundTripper
}

// Client implements Source over HTTP.
type Client struct {
	http      *upstream.HTTPClient
	restURL   string
	actionURL string
	pageURL   string
	logger    zerolog.Logger
}

var _ Source = (*Client)(nil)

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.RestURL == "" {
		cfg.RestURL = DefaultRestURL
	}
	if cfg.ActionURL == "" {
		cfg.ActionURL = DefaultActionURL
	}
	if cfg.PageURL == "" {
		cfg.PageURL = DefaultPageURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		http: upstream.NewHTTPClient(upstream.Options{
			Name:      "wikipedia",
			Timeout:   cfg.Timeout,
			Headers:   map[string]string{"User-Agent": cfg.UserAgent},
			Breaker:   cfg.Breaker,
			Transport: cfg.Transport,
		}),
		restURL:   strings.TrimRight(cfg.RestURL, "/"),
		actionURL: cfg.ActionURL,
		pageURL:   cfg.PageURL,
		logger:    logger,
	}
}

type summaryPayload struct {
	Title     string `json:"title"`
	Extract   string `json:"extract"`
	Type      string `json:"type"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ContentURLs *struct {
		Desktop *struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Summary fetches the page summary for title.
func (c *Client) Summary(ctx context.Context, title string) (PageSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return PageSummary{}, fmt.Errorf("summary: empty title: %w", ErrNotFound)
	}
	endpoint := c.restURL + "/page/summary/" + url.PathEscape(title)

	var p summaryPayload
	if err := c.http.DoJSON(ctx, "summary", http.MethodGet, endpoint, nil, nil, &p); err != nil {
		return PageSummary{}, c.classify("summary "+title, err)
	}
	s := PageSummary{Title: p.Title, Extract: p.Extract, Type: p.Type}
	if s.Title == "" {
		s.Title = title
	}
	if p.Thumbnail != nil {
		s.Thumbnail = p.Thumbnail.Source
	}
	if p.ContentURLs != nil && p.ContentURLs.Desktop != nil {
		s.PageURL = p.ContentURLs.Desktop.Page
	}
	if s.PageURL == "" {
		s.PageURL = c.PageURL(s.Title)
	}
	if p.Type == "disambiguation" {
		return s, fmt.Errorf("summary %s: %w", title, ErrDisambiguation)
	}
	return s, nil
}

type searchPayload struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// Search runs a full-text search and returns at most limit hits.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("list", "search")
	q.Set("srsearch", query)
	q.Set("srlimit", strconv.Itoa(limit))
	q.Set("srprop", "snippet|titlesnippet")

	var p searchPayload
	if err := c.http.DoJSON(ctx, "search", http.MethodGet, c.actionURL+"?"+q.Encode(), nil, nil, &p); err != nil {
		return nil, c.classify("search", err)
	}
	hits := make([]SearchHit, 0, len(p.Query.Search))
	for _, h := range p.Query.Search {
		hits = append(hits, SearchHit{Title: h.Title, Snippet: h.Snippet})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

type onThisDayPayload struct {
	Events []struct {
		Text  string `json:"text"`
		Year  int    `json:"year"`
		Pages []struct {
			Title string `json:"title"`
		} `json:"pages"`
	} `json:"events"`
}

// OnThisDay returns the historical events feed for a calendar day.
func (c *Client) OnThisDay(ctx context.Context, month, day int) ([]DayEvent, error) {
	endpoint := fmt.Sprintf("%s/feed/onthisday/all/%02d/%02d", c.restURL, month, day)

	var p onThisDayPayload
	if err := c.http.DoJSON(ctx, "onthisday", http.MethodGet, endpoint, nil, nil, &p); err != nil {
		return nil, c.classify(fmt.Sprintf("onthisday %02d/%02d", month, day), err)
	}
	events := make([]DayEvent, 0, len(p.Events))
	for _, e := range p.Events {
		pages := make([]string, 0, len(e.Pages))
		for _, pg := range e.Pages {
			pages = append(pages, pg.Title)
		}
		events = append(events, DayEvent{Text: e.Text, Year: e.Year, Pages: pages})
	}
	return events, nil
}

// PageURL builds the article URL for title under the configured wiki.
func (c *Client) PageURL(title string) string {
	return c.pageURL + url.PathEscape(title)
}

// ArticleURL builds the English Wikipedia article URL for title.
func ArticleURL(title string) string {
	return DefaultPageURL + url.PathEscape(title)
}

func (c *Client) classify(op string, err error) error {
	if upstream.StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	c.logger.Debug().Err(err).Str("op", op).Msg("wikipedia call failed")
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
