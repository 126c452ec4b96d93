// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

// Package rank answers "what was the server-wide total of these metrics at
// instant t" and the matching leaderboard, caching every answer by
// (instant, metric set, source set).
//
// Each dashboard controller owns one Service, so clearing it on a metric or
// source change never affects another viewer. Concurrent misses on the same
// key share one upstream call. A Session debounces hover and click lookups
// so only the most recent instant is fetched.
package rank

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/craftstats/internal/cache"
	"github.com/tomtom215/craftstats/internal/debounce"
	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/metrics"
	"github.com/tomtom215/craftstats/internal/models"
)

// DefaultDebounce is the quiet period before a scheduled lookup fires.
const DefaultDebounce = 400 * time.Millisecond

// DefaultLimit is the number of leaderboard rows requested per lookup.
const DefaultLimit = 10

// Fetcher is the upstream leaderboard call.
type Fetcher interface {
	FetchLeaderboardTotal(ctx context.Context, params models.FetchParams) (*models.LeaderboardResponse, error)
}

// Entry is one cached answer. Total is the raw server-wide value, before
// any unit conversion.
type Entry struct {
	At      int64
	Total   float64
	Entries []models.RankEntry
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Capacity int
	// TTL expires cached answers; 0 keeps them until evicted or cleared.
	TTL      time.Duration
	Limit    int
	Debounce time.Duration
	Clock    debounce.Clock
}

// Service is a bounded rank cache in front of a Fetcher.
type Service struct {
	fetcher Fetcher
	entries *cache.LRU[string, Entry]
	group   singleflight.Group
	limit   int
	delay   time.Duration
	clock   debounce.Clock
	log     zerolog.Logger

	// epoch advances on Clear so fetches started before it do not
	// repopulate the cache.
	mu    sync.Mutex
	epoch uint64
}

// NewService creates a Service over f.
func NewService(f Fetcher, opts Options) *Service {
	if opts.Capacity <= 0 {
		opts.Capacity = cache.DefaultLRUCapacity
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.Clock == nil {
		opts.Clock = debounce.RealClock{}
	}
	entries := cache.NewLRU[string, Entry](opts.Capacity, opts.TTL)
	entries.SetNow(opts.Clock.Now)
	return &Service{
		fetcher: f,
		entries: entries,
		limit:   opts.Limit,
		delay:   opts.Debounce,
		clock:   opts.Clock,
		log:     logging.WithComponent("rank"),
	}
}

// RankAt returns the server-wide total at ts, or 0 when the lookup fails.
func (s *Service) RankAt(ctx context.Context, ts int64, metricIDs, sourceIDs []string) float64 {
	entry, err := s.Lookup(ctx, ts, metricIDs, sourceIDs)
	if err != nil {
		return 0
	}
	return entry.Total
}

// Leaderboard returns up to limit rows of the leaderboard at ts; limit <= 0
// returns every cached row. A failed lookup yields an empty slice.
func (s *Service) Leaderboard(ctx context.Context, ts int64, metricIDs, sourceIDs []string, limit int) []models.RankEntry {
	entry, err := s.Lookup(ctx, ts, metricIDs, sourceIDs)
	if err != nil {
		return []models.RankEntry{}
	}
	return truncate(entry.Entries, limit)
}

// Lookup returns the cached entry for the key or fetches it. Errors are
// logged and returned; nothing is cached on error.
func (s *Service) Lookup(ctx context.Context, ts int64, metricIDs, sourceIDs []string) (Entry, error) {
	key := Key(ts, metricIDs, sourceIDs)
	if entry, ok := s.entries.Get(key); ok {
		metrics.RecordRankLookup(true)
		return entry, nil
	}
	metrics.RecordRankLookup(false)

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		if entry, ok := s.entries.Peek(key); ok {
			return entry, nil
		}
		return s.fetch(ctx, key, epoch, ts, metricIDs, sourceIDs)
	})
	if shared {
		metrics.RankFetchCoalesced.Inc()
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Rank lookup failed")
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (s *Service) fetch(ctx context.Context, key string, epoch uint64, ts int64, metricIDs, sourceIDs []string) (Entry, error) {
	at := ts
	resp, err := s.fetcher.FetchLeaderboardTotal(ctx, models.FetchParams{
		MetricIDs: NormalizeIDs(metricIDs),
		SourceIDs: NormalizeIDs(sourceIDs),
		At:        &at,
		Limit:     s.limit,
	})
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{At: ts, Total: resp.Total, Entries: resp.Entries}
	if entry.Entries == nil {
		entry.Entries = []models.RankEntry{}
	}

	s.mu.Lock()
	current := s.epoch == epoch
	s.mu.Unlock()
	if current && s.entries.Add(key, entry) {
		metrics.RankCacheEvictions.Inc()
	}

	s.log.Debug().Str("key", key).Float64("total", entry.Total).Msg("Rank cached")
	return entry, nil
}

// Peek returns the cached total without fetching and without touching
// recency.
func (s *Service) Peek(ts int64, metricIDs, sourceIDs []string) (float64, bool) {
	entry, ok := s.entries.Peek(Key(ts, metricIDs, sourceIDs))
	if !ok {
		return 0, false
	}
	return entry.Total, true
}

// PeekEntry is Peek returning the whole cached entry. The Entries slice is
// a copy.
func (s *Service) PeekEntry(ts int64, metricIDs, sourceIDs []string) (Entry, bool) {
	entry, ok := s.entries.Peek(Key(ts, metricIDs, sourceIDs))
	if !ok {
		return Entry{}, false
	}
	entry.Entries = truncate(entry.Entries, 0)
	return entry, true
}

// Clear empties the cache.
func (s *Service) Clear() {
	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()
	s.entries.Clear()
	metrics.RankCacheClears.Inc()
}

// Len returns the number of cached entries.
func (s *Service) Len() int {
	return s.entries.Len()
}

// Stats exposes the underlying LRU counters.
func (s *Service) Stats() cache.LRUStats {
	return s.entries.Stats()
}

// Request names one scheduled lookup.
type Request struct {
	At        int64
	MetricIDs []string
	SourceIDs []string
}

// Result is delivered to a Session callback. Err is set when the lookup
// failed; Entry is then zero.
type Result struct {
	Request Request
	Entry   Entry
	Err     error
}

// Session debounces lookups for one dashboard. Only the most recent
// scheduled request is fetched, and a result is delivered only if no newer
// request was scheduled and the session was not cancelled meanwhile.
type Session struct {
	svc *Service
	deb *debounce.Debouncer
	ctx context.Context

	seq    atomic.Uint64
	closed atomic.Bool
}

// NewSession creates a Session whose lookups run under ctx.
func (s *Service) NewSession(ctx context.Context) *Session {
	return &Session{
		svc: s,
		deb: debounce.New(s.delay, s.clock),
		ctx: ctx,
	}
}

// Schedule replaces any pending request with req and calls fn with its
// result once the quiet period has passed. fn runs on the timer goroutine.
func (ss *Session) Schedule(req Request, fn func(Result)) {
	if ss.closed.Load() {
		return
	}
	mine := ss.seq.Add(1)
	replaced := ss.deb.Trigger(func() {
		entry, err := ss.svc.Lookup(ss.ctx, req.At, req.MetricIDs, req.SourceIDs)
		if ss.closed.Load() || ss.seq.Load() != mine {
			return
		}
		fn(Result{Request: req, Entry: entry, Err: err})
	})
	if replaced {
		metrics.RankDebounceReplaced.Inc()
	}
}

// Cancel drops the pending request and any result still in flight.
func (ss *Session) Cancel() {
	ss.seq.Add(1)
	ss.deb.Cancel()
}

// Close cancels and makes every later Schedule a no-op.
func (ss *Session) Close() {
	ss.closed.Store(true)
	ss.Cancel()
}

// Pending reports whether a request is waiting for its quiet period.
func (ss *Session) Pending() bool {
	return ss.deb.Pending()
}

func truncate(entries []models.RankEntry, limit int) []models.RankEntry {
	if limit <= 0 || limit >= len(entries) {
		out := make([]models.RankEntry, len(entries))
		copy(out, entries)
		return out
	}
	out := make([]models.RankEntry, limit)
	copy(out, entries[:limit])
	return out
}
