// Package search implements the free-text event and people lookups, the
// on-this-day listing and single page details.
package search

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pastportals/backend/internal/helpers"
	"github.com/pastportals/backend/internal/wikipedia"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidQuery = errors.New("invalid search query")
	ErrInvalidDate  = errors.New("invalid date")
)

const (
	noDescription = "No description available."

	eventLimit  = 10
	eventEnrich = 5
	eraLimit    = 15
	eraEnrich   = 8
	dayEvents   = 5
	promptChars = 200
)

var (
	yearPattern = regexp.MustCompile(`\b(1[0-9]{3}|2[0-9]{3})\b`)

	excludedTitleMarkers = []string{"list", "category:", "template:", "disambiguation"}
	biographyMarkers     = []string{"biography", "born", "died", "was a", "historian", "politician", "writer", "artist"}
)

// Result is an enriched search hit.
type Result struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Snippet     string  `json:"snippet,omitempty"`
	PageURL     string  `json:"pageUrl"`
	Thumbnail   *string `json:"thumbnail"`
	Type        string  `json:"type"`
}

// Person adds life years extracted from the page extract.
type Person struct {
	Result
	BirthYear *string `json:"birthYear"`
	DeathYear *string `json:"deathYear"`
}

// EraPerson is a person found by era.
type EraPerson struct {
	Result
	Era string `json:"era"`
}

// DayEvent is one entry of the on-this-day listing.
type DayEvent struct {
	Title string   `json:"title"`
	Year  int      `json:"year"`
	Pages []string `json:"pages"`
}

// Details describe a single page with a ready-made image prompt.
type Details struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	PageURL     *string `json:"pageUrl"`
	Thumbnail   *string `json:"thumbnail"`
	ImagePrompt string  `json:"image_prompt"`
}

// DisambiguationError is returned by Details when the query is ambiguous.
type DisambiguationError struct {
	Suggestions string
}

func (e *DisambiguationError) Error() string { return "query returned a disambiguation page" }

func (e *DisambiguationError) Unwrap() error { return wikipedia.ErrDisambiguation }

// Service runs searches against a wikipedia.Source.
type Service struct {
	src           wikipedia.Source
	searchTimeout time.Duration
	enrichTimeout time.Duration
	logger        zerolog.Logger
}

func NewService(src wikipedia.Source, logger zerolog.Logger) *Service {
	return &Service{
		src:           src,
		searchTimeout: 10 * time.Second,
		enrichTimeout: 5 * time.Second,
		logger:        logger,
	}
}

// Events searches for historical events matching query, optionally narrowed
// by year. It returns the enriched top hits and the raw hit count.
func (s *Service) Events(ctx context.Context, query, year string) ([]Result, int, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, 0, fmt.Errorf("%w: search query is required and cannot be empty", ErrInvalidQuery)
	}
	if y := strings.TrimSpace(year); y != "" {
		if _, err := strconv.Atoi(y); err == nil {
			q += " " + y
		}
	}
	q += " battle war event historical"

	hits, err := s.search(ctx, q, eventLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("search events: %w", err)
	}
	out := make([]Result, len(topN(hits, eventEnrich)))
	s.enrich(ctx, topN(hits, eventEnrich), func(i int, hit wikipedia.SearchHit, page *wikipedia.PageSummary) {
		out[i] = result(hit, page, "event")
	})
	return out, len(hits), nil
}

// People searches for historical figures, optionally narrowed by era and
// occupation.
func (s *Service) People(ctx context.Context, query, era, occupation string) ([]Person, int, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, 0, fmt.Errorf("%w: search query is required and cannot be empty", ErrInvalidQuery)
	}
	for _, extra := range []string{era, occupation} {
		if extra = strings.TrimSpace(extra); extra != "" {
			q += " " + extra
		}
	}
	q += " biography historical figure person"

	hits, err := s.search(ctx, q, eventLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("search people: %w", err)
	}
	top := topN(hits, eventEnrich)
	out := make([]Person, len(top))
	s.enrich(ctx, top, func(i int, hit wikipedia.SearchHit, page *wikipedia.PageSummary) {
		p := Person{Result: result(hit, page, "person")}
		if page != nil {
			p.BirthYear, p.DeathYear = lifeYears(page.Extract)
		}
		out[i] = p
	})
	return out, len(hits), nil
}

// PeopleByEra lists biographies associated with an era label.
func (s *Service) PeopleByEra(ctx context.Context, era string) ([]EraPerson, error) {
	era = strings.TrimSpace(era)
	if era == "" {
		return nil, fmt.Errorf("%w: era parameter is required and cannot be empty", ErrInvalidQuery)
	}
	hits, err := s.search(ctx, `"`+era+`" people historical figures biography`, eraLimit)
	if err != nil {
		return nil, fmt.Errorf("search era %s: %w", era, err)
	}

	var kept []wikipedia.SearchHit
	for _, h := range hits {
		if helpers.ContainsAnyFold(h.Title, excludedTitleMarkers) {
			continue
		}
		if !helpers.ContainsAnyFold(helpers.StripMarkup(h.Snippet), biographyMarkers) {
			continue
		}
		kept = append(kept, h)
	}
	top := topN(kept, eraEnrich)
	out := make([]EraPerson, len(top))
	s.enrich(ctx, top, func(i int, hit wikipedia.SearchHit, page *wikipedia.PageSummary) {
		out[i] = EraPerson{Result: result(hit, page, "person"), Era: era}
	})
	return out, nil
}

// ParseDate validates a month (1-12) and day (1-31).
func ParseDate(month, day string) (int, int, error) {
	m, errM := strconv.Atoi(strings.TrimSpace(month))
	d, errD := strconv.Atoi(strings.TrimSpace(day))
	if errM != nil || errD != nil || m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, 0, fmt.Errorf("%w: please provide a valid month (1-12) and day (1-31)", ErrInvalidDate)
	}
	return m, d, nil
}

// DayEvents returns the first on-this-day events for a calendar day.
func (s *Service) DayEvents(ctx context.Context, month, day int) ([]DayEvent, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: please provide a valid month (1-12) and day (1-31)", ErrInvalidDate)
	}
	cctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()
	events, err := s.src.OnThisDay(cctx, month, day)
	if err != nil {
		return nil, fmt.Errorf("fetch daily events: %w", err)
	}
	out := make([]DayEvent, 0, dayEvents)
	for _, e := range events {
		if len(out) == dayEvents {
			break
		}
		pages := e.Pages
		if pages == nil {
			pages = []string{}
		}
		out = append(out, DayEvent{Title: e.Text, Year: e.Year, Pages: pages})
	}
	return out, nil
}

// Details fetches one page and derives an image prompt from it.
func (s *Service) Details(ctx context.Context, query string) (Details, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Details{}, fmt.Errorf("%w: query parameter is required and cannot be empty", ErrInvalidQuery)
	}
	cctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()
	page, err := s.src.Summary(cctx, query)
	if errors.Is(err, wikipedia.ErrDisambiguation) {
		return Details{}, &DisambiguationError{Suggestions: page.Extract}
	}
	if err != nil {
		return Details{}, fmt.Errorf("details %s: %w", query, err)
	}

	d := Details{
		Title:       page.Title,
		Description: page.Extract,
		PageURL:     optional(page.PageURL),
		Thumbnail:   optional(page.Thumbnail),
		ImagePrompt: `Create an artistic representation of "` + page.Title + `"`,
	}
	if d.Description == "" {
		d.Description = noDescription
	} else {
		d.ImagePrompt += ": " + helpers.Truncate(page.Extract, promptChars) + "..."
	}
	return d, nil
}

func (s *Service) search(ctx context.Context, query string, limit int) ([]wikipedia.SearchHit, error) {
	cctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()
	return s.src.Search(cctx, query, limit)
}

// enrich fetches a summary for every hit concurrently. fill is called
// exactly once per index; page is nil when the lookup failed.
func (s *Service) enrich(ctx context.Context, hits []wikipedia.SearchHit, fill func(i int, hit wikipedia.SearchHit, page *wikipedia.PageSummary)) {
	var g errgroup.Group
	for i, hit := range hits {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
			defer cancel()
			page, err := s.src.Summary(cctx, hit.Title)
			if err != nil && !errors.Is(err, wikipedia.ErrDisambiguation) {
				s.logger.Warn().Err(err).Str("title", hit.Title).Msg("failed to get details")
				fill(i, hit, nil)
				return nil
			}
			fill(i, hit, &page)
			return nil
		})
	}
	_ = g.Wait()
}

func result(hit wikipedia.SearchHit, page *wikipedia.PageSummary, kind string) Result {
	snippet := helpers.StripMarkup(hit.Snippet)
	r := Result{
		Title:       hit.Title,
		Description: snippet,
		Snippet:     snippet,
		PageURL:     wikipedia.ArticleURL(hit.Title),
		Type:        kind,
	}
	if page != nil {
		if page.Title != "" {
			r.Title = page.Title
		}
		if page.Extract != "" {
			r.Description = page.Extract
		}
		if page.PageURL != "" {
			r.PageURL = page.PageURL
		}
		r.Thumbnail = optional(page.Thumbnail)
	}
	if r.Description == "" {
		r.Description = noDescription
	}
	return r
}

// lifeYears returns the first two four-digit years found in text. No
// ordering check is made.
func lifeYears(text string) (birth, death *string) {
	m := yearPattern.FindAllString(text, 2)
	if len(m) > 0 {
		birth = &m[0]
	}
	if len(m) > 1 {
		death = &m[1]
	}
	return birth, death
}

func topN(hits []wikipedia.SearchHit, n int) []wikipedia.SearchHit {
	if len(hits) > n {
		return hits[:n]
	}
	return hits
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
