// Package yearsummary builds an India-focused narrative summary for a single
// year out of several best-effort Wikipedia lookups, falling back to a
// generic, period-based summary when no events are found.
package yearsummary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pastportals/backend/internal/helpers"
	"github.com/pastportals/backend/internal/metrics"
	"github.com/pastportals/backend/internal/store"
	"github.com/pastportals/backend/internal/wikipedia"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("pastportals/yearsummary")

var (
	// ErrInvalidYear rejects input before any external call is made.
	ErrInvalidYear = errors.New("invalid year")
	// ErrSynthesis means no summary could be produced at all.
	ErrSynthesis = errors.New("year summary synthesis failed")
)

// TimelineEntry is one event of the summary timeline.
type TimelineEntry struct {
	Title  string `json:"title"`
	Date   string `json:"date"`
	Impact string `json:"impact"`
}

// NotablePerson is a person surfaced by the people search.
type NotablePerson struct {
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

// Summary is the response body of a year lookup.
type Summary struct {
	Year                string          `json:"year"`
	Paragraph           string          `json:"paragraph"`
	StorytellingSummary string          `json:"storytelling_summary"`
	Timeline            []TimelineEntry `json:"timeline"`
	NotablePeople       []NotablePerson `json:"notablePeople"`
	ImagePrompts        []string        `json:"image_prompts"`
	UsedFallback        bool            `json:"usedFallback"`
}

// Cache stores finished summaries by year.
type Cache interface {
	Get(ctx context.Context, year int) (Summary, bool, error)
	Set(ctx context.Context, year int, s Summary) error
}

// Recorder persists lookups for the history endpoint.
type Recorder interface {
	RecordYearLookup(ctx context.Context, rec store.HistoryRecord) error
}

// Builder runs the summary pipeline. It is safe for concurrent use.
type Builder struct {
	src         wikipedia.Source
	callTimeout time.Duration
	cache       Cache
	recorder    Recorder
	logger      zerolog.Logger
	now         func() time.Time
}

type Option func(*Builder)

// WithCallTimeout bounds every individual upstream call.
func WithCallTimeout(d time.Duration) Option { return func(b *Builder) { b.callTimeout = d } }

func WithCache(c Cache) Option { return func(b *Builder) { b.cache = c } }

func WithRecorder(r Recorder) Option { return func(b *Builder) { b.recorder = r } }

func WithLogger(l zerolog.Logger) Option { return func(b *Builder) { b.logger = l } }

// WithClock overrides the clock used to validate years.
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

func NewBuilder(src wikipedia.Source, opts ...Option) *Builder {
	b := &Builder{
		src:         src,
		callTimeout: 5 * time.Second,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ParseYear validates raw as a year between 1 and the current year.
func (b *Builder) ParseYear(raw string) (int, error) {
	return ParseYear(raw, b.now())
}

// ParseYear validates raw as a year between 1 and now's year.
func ParseYear(raw string, now time.Time) (int, error) {
	latest := now.Year()
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || year < 1 || year > latest {
		return 0, fmt.Errorf("%w: please provide a valid year between 1 and %d", ErrInvalidYear, latest)
	}
	return year, nil
}

// candidate is an event gathered by one of the strategies.
type candidate struct {
	title string
	text  string
}

// Build produces the summary for year. Individual upstream failures are
// logged and tolerated.
func (b *Builder) Build(ctx context.Context, year int) (Summary, error) {
	if year < 1 || year > b.now().Year() {
		return Summary{}, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	ctx, span := tracer.Start(ctx, "yearsummary.Build", trace.WithAttributes(attribute.Int("year", year)))
	defer span.End()

	if b.cache != nil {
		s, ok, err := b.cache.Get(ctx, year)
		if err != nil {
			b.logger.Warn().Err(err).Int("year", year).Msg("summary cache read failed")
		} else if ok {
			metrics.YearSummaries.WithLabelValues("cache").Inc()
			return s, nil
		}
	}

	var (
		anchor  string
		topical []candidate
		dated   [][]candidate
		people  []NotablePerson
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { anchor = b.anchorExtract(gctx, year); return nil })
	g.Go(func() error { topical = b.topicalEvents(gctx, year); return nil })
	g.Go(func() error { dated = b.datedEvents(gctx, year); return nil })
	g.Go(func() error { people = b.notablePeople(gctx, year); return nil })
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	var merged []candidate
	for _, evs := range dated {
		merged = append(merged, evs...)
	}
	merged = append(merged, topical...)
	if len(merged) > maxTimeline {
		merged = merged[:maxTimeline]
	}

	var s Summary
	if len(merged) == 0 {
		s = fallback(year, anchor)
		metrics.YearSummaries.WithLabelValues("fallback").Inc()
	} else {
		s = compose(year, anchor, merged)
		metrics.YearSummaries.WithLabelValues("events").Inc()
	}
	s.NotablePeople = people
	if s.NotablePeople == nil {
		s.NotablePeople = []NotablePerson{}
	}
	span.SetAttributes(attribute.Int("timeline.size", len(s.Timeline)), attribute.Bool("fallback", s.UsedFallback))

	if len(s.Timeline) == 0 || s.Paragraph == "" {
		return Summary{}, ErrSynthesis
	}

	if b.cache != nil {
		if err := b.cache.Set(ctx, year, s); err != nil {
			b.logger.Warn().Err(err).Int("year", year).Msg("summary cache write failed")
		}
	}
	b.record(ctx, year, s)
	return s, nil
}

func (b *Builder) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.callTimeout)
}

// anchorExtract tries "{year}_in_India" then "{year}".
func (b *Builder) anchorExtract(ctx context.Context, year int) string {
	for _, title := range []string{fmt.Sprintf("%d_in_India", year), strconv.Itoa(year)} {
		cctx, cancel := b.call(ctx)
		page, err := b.src.Summary(cctx, title)
		cancel()
		if err != nil {
			b.logger.Debug().Err(err).Str("title", title).Msg("year page lookup failed")
			continue
		}
		if extract := strings.TrimSpace(page.Extract); extract != "" {
			return extract
		}
	}
	return ""
}

func (b *Builder) topicalEvents(ctx context.Context, year int) []candidate {
	cctx, cancel := b.call(ctx)
	defer cancel()
	hits, err := b.src.Search(cctx, fmt.Sprintf(topicalQuery, year), 10)
	if err != nil {
		b.logger.Info().Err(err).Int("year", year).Msg("topical search failed")
		return nil
	}
	out := make([]candidate, 0, maxTopical)
	for _, h := range hits {
		if len(out) == maxTopical {
			break
		}
		out = append(out, candidate{title: h.Title, text: helpers.StripMarkup(h.Snippet)})
	}
	return out
}

// datedEvents scans the significant dates concurrently. The result is
// indexed like SignificantDates; a failed date yields an empty slot.
func (b *Builder) datedEvents(ctx context.Context, year int) [][]candidate {
	out := make([][]candidate, len(SignificantDates))
	var g errgroup.Group
	for i, d := range SignificantDates {
		g.Go(func() error {
			cctx, cancel := b.call(ctx)
			defer cancel()
			events, err := b.src.OnThisDay(cctx, d.Month, d.Day)
			if err != nil {
				b.logger.Warn().Err(err).Int("month", d.Month).Int("day", d.Day).Msg("date scan failed")
				return nil
			}
			for _, ev := range events {
				if ev.Year == year && helpers.ContainsAnyFold(ev.Text, Keywords) {
					out[i] = append(out[i], candidate{text: ev.Text})
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (b *Builder) notablePeople(ctx context.Context, year int) []NotablePerson {
	cctx, cancel := b.call(ctx)
	defer cancel()
	hits, err := b.src.Search(cctx, fmt.Sprintf(peopleQuery, year, year), maxPeople)
	if err != nil {
		b.logger.Info().Err(err).Int("year", year).Msg("people search failed")
		return nil
	}
	out := make([]NotablePerson, 0, len(hits))
	for _, h := range hits {
		if len(out) == maxPeople {
			break
		}
		out = append(out, NotablePerson{Name: h.Title, Snippet: helpers.StripMarkup(h.Snippet)})
	}
	return out
}

func compose(year int, anchor string, events []candidate) Summary {
	date := strconv.Itoa(year)
	s := Summary{Year: date}

	s.Timeline = make([]TimelineEntry, 0, len(events))
	for _, ev := range events {
		s.Timeline = append(s.Timeline, timelineEntry(ev, date))
	}

	s.ImagePrompts = make([]string, 0, maxPrompts)
	for _, ev := range events {
		if len(s.ImagePrompts) == maxPrompts {
			break
		}
		s.ImagePrompts = append(s.ImagePrompts, fmt.Sprintf(eventPrompt, year, ev.label()))
	}

	narrative := anchor
	if narrative == "" {
		parts := []string{fmt.Sprintf(narrativeOpening, year)}
		for i, ev := range events {
			if i == maxNarrated {
				break
			}
			parts = append(parts, ev.label())
		}
		parts = append(parts, narrativeClosing)
		narrative = strings.Join(parts, " ")
	}
	s.Paragraph = narrative
	s.StorytellingSummary = narrative
	return s
}

func (c candidate) label() string {
	if c.text != "" {
		return c.text
	}
	return c.title
}

func timelineEntry(ev candidate, date string) TimelineEntry {
	e := TimelineEntry{Date: date}
	switch {
	case ev.text != "":
		e.Title = helpers.FirstSentence(ev.text)
		e.Impact = ev.text
	case ev.title != "":
		e.Title = ev.title
		e.Impact = ev.title
	default:
		e.Title = defaultEventTitle
		e.Impact = defaultEventImpact
	}
	if e.Title == "" {
		e.Title = defaultEventTitle
	}
	return e
}

func fallback(year int, anchor string) Summary {
	label := PeriodLabel(year)
	generic := fmt.Sprintf(fallbackSummary, year, label)
	date := strconv.Itoa(year)

	s := Summary{
		Year:         date,
		Timeline:     []TimelineEntry{{Title: fmt.Sprintf(fallbackTitle, year), Date: date, Impact: generic}},
		UsedFallback: true,
	}
	s.ImagePrompts = make([]string, 0, len(fallbackPrompts))
	for _, p := range fallbackPrompts {
		s.ImagePrompts = append(s.ImagePrompts, fmt.Sprintf(p, year, label))
	}
	s.Paragraph = generic
	if anchor != "" {
		s.Paragraph = anchor
	}
	s.StorytellingSummary = s.Paragraph
	return s
}

func (b *Builder) record(ctx context.Context, year int, s Summary) {
	if b.recorder == nil {
		return
	}
	body, err := json.Marshal(s)
	if err != nil {
		b.logger.Warn().Err(err).Int("year", year).Msg("encode history record")
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err = b.recorder.RecordYearLookup(rctx, store.HistoryRecord{
		Year:         year,
		TimelineSize: len(s.Timeline),
		UsedFallback: s.UsedFallback,
		Summary:      body,
	})
	if err != nil {
		b.logger.Warn().Err(err).Int("year", year).Msg("history record failed")
	}
}
