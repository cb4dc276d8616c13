package geocoding

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// SearcherConfig holds configuration for a Searcher.
type SearcherConfig struct {
	Provider Provider
	Clock    clockwork.Clock
	Logger   zerolog.Logger
}

// Searcher runs place lookups for typed input.
type Searcher struct {
	provider Provider
	clock    clockwork.Clock
	logger   zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	timer   clockwork.Timer
	cancel  context.CancelFunc
	pending string
}

// NewSearcher creates a searcher.
func NewSearcher(cfg SearcherConfig) *Searcher {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Searcher{provider: cfg.Provider, clock: cfg.Clock, logger: cfg.Logger}
}

// Normalize trims the query and reports whether it is long enough to look up.
func Normalize(query string) (string, bool) {
	q := strings.TrimSpace(query)
	return q, utf8.RuneCountInString(q) >= MinQueryRunes
}

// Search looks query up immediately. Short queries and provider failures
// yield an empty list.
func (s *Searcher) Search(ctx context.Context, query string) []Candidate {
	q, ok := Normalize(query)
	if !ok {
		return []Candidate{}
	}

	results, err := s.provider.Search(ctx, q, MaxResults)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Str("query", q).Msg("place search failed")
		}
		return []Candidate{}
	}
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}

// Session returns a new Searcher sharing this one's provider, clock and
// logger but with its own debounce state.
func (s *Searcher) Session() *Searcher {
	return &Searcher{provider: s.provider, clock: s.clock, logger: s.logger}
}

// Query schedules a debounced lookup. A later call within DebounceDelay
// replaces it, and results of a replaced lookup are never delivered. Short
// queries deliver an empty list at once.
func (s *Searcher) Query(ctx context.Context, query string, deliver func([]Candidate)) {
	s.schedule(ctx, query, deliver)
}

// Await schedules a debounced lookup and blocks until its results arrive.
// ok is false when a later call replaced the lookup or ctx ended first.
func (s *Searcher) Await(ctx context.Context, query string) (results []Candidate, ok bool) {
	out := make(chan []Candidate, 1)
	done := s.schedule(ctx, query, func(c []Candidate) { out <- c })
	if done == nil {
		return <-out, true
	}

	select {
	case results = <-out:
		return results, true
	case <-done:
		select {
		case results = <-out:
			return results, true
		default:
			return nil, false
		}
	}
}

// schedule returns a channel closed once the lookup is delivered or dropped,
// or nil when deliver already ran.
func (s *Searcher) schedule(ctx context.Context, query string, deliver func([]Candidate)) <-chan struct{} {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.stopLocked()

	q, ok := Normalize(query)
	if !ok {
		s.mu.Unlock()
		deliver([]Candidate{})
		return nil
	}

	lookupCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.pending = q
	s.timer = s.clock.AfterFunc(DebounceDelay, func() {
		results := s.Search(lookupCtx, q)

		s.mu.Lock()
		current := s.gen == gen
		if current {
			s.timer = nil
			s.cancel = nil
			s.pending = ""
		}
		s.mu.Unlock()

		if current {
			deliver(results)
		}
		cancel()
	})
	s.mu.Unlock()
	return lookupCtx.Done()
}

// Cancel drops any pending or in-flight lookup.
func (s *Searcher) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.stopLocked()
}

// Pending returns the query waiting to be looked up, if any.
func (s *Searcher) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Searcher) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pending = ""
}
