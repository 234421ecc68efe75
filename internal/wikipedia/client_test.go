package wikipedia

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		RestURL:   srv.URL + "/api/rest_v1",
		ActionURL: srv.URL + "/w/api.php",
		Timeout:   time.Second,
	}, zerolog.Nop())
}

func TestSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rest_v1/page/summary/1947_in_India", r.URL.EscapedPath())
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{
			"title": "1947 in India",
			"extract": "Events in the year 1947 in India.",
			"type": "standard",
			"thumbnail": {"source": "https://upload.example/thumb.jpg"},
			"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/1947_in_India"}}
		}`))
	})

	s, err := c.Summary(context.Background(), "1947_in_India")
	require.NoError(t, err)
	assert.Equal(t, "1947 in India", s.Title)
	assert.Equal(t, "Events in the year 1947 in India.", s.Extract)
	assert.Equal(t, "https://upload.example/thumb.jpg", s.Thumbnail)
	assert.Equal(t, "https://en.wikipedia.org/wiki/1947_in_India", s.PageURL)
}

func TestSummaryNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"not_found"}`, http.StatusNotFound)
	})
	_, err := c.Summary(context.Background(), "Nope")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestSummaryDisambiguationStillReturnsPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Mercury","extract":"Mercury may refer to:","type":"disambiguation"}`))
	})
	s, err := c.Summary(context.Background(), "Mercury")
	assert.True(t, errors.Is(err, ErrDisambiguation), "got %v", err)
	assert.Equal(t, "Mercury may refer to:", s.Extract)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Mercury", s.PageURL)
}

func TestSummaryUnavailableOnServerErrorAndBadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.Summary(context.Background(), "1947")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err = c.Summary(context.Background(), "1947")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestSummaryTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Summary(ctx, "1947")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.Equal(t, "query", q.Get("action"))
		assert.Equal(t, "search", q.Get("list"))
		assert.Equal(t, "India 1947", q.Get("srsearch"))
		assert.Equal(t, "2", q.Get("srlimit"))
		assert.Equal(t, "snippet|titlesnippet", q.Get("srprop"))
		_, _ = w.Write([]byte(`{"query":{"search":[
			{"title":"Partition of India","snippet":"The <span class=\"searchmatch\">partition</span>"},
			{"title":"Indian Independence Act 1947","snippet":"An act"},
			{"title":"Extra","snippet":"ignored"}
		]}}`))
	})

	hits, err := c.Search(context.Background(), "India 1947", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Partition of India", hits[0].Title)
	assert.Contains(t, hits[0].Snippet, "searchmatch")
}

func TestSearchEmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"batchcomplete":""}`))
	})
	hits, err := c.Search(context.Background(), "zzzz", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOnThisDay(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rest_v1/feed/onthisday/all/08/15", r.URL.Path)
		_, _ = w.Write([]byte(`{"events":[
			{"text":"India gains independence from British rule.","year":1947,"pages":[{"title":"Indian_independence_movement"}]},
			{"text":"Woodstock opens.","year":1969}
		]}`))
	})
	events, err := c.OnThisDay(context.Background(), 8, 15)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1947, events[0].Year)
	assert.Equal(t, []string{"Indian_independence_movement"}, events[0].Pages)
	assert.Empty(t, events[1].Pages)
}

func TestArticleURL(t *testing.T) {
	assert.Equal(t, "https://en.wikipedia.org/wiki/Bhagat%20Singh", ArticleURL("Bhagat Singh"))
}
