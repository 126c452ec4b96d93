// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

// Package dashboard drives one statistics dashboard.
//
// A Controller owns the raw series of the current query and re-renders
// them locally for every viewport, conversion or percentage change. Only a
// new query goes to the network. Queries are generation-numbered: a result
// arriving after a newer query started is discarded. The server-wide total
// and leaderboard are looked up through a debounced per-controller rank
// session and folded into the chart when they arrive.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/craftstats/internal/config"
	"github.com/tomtom215/craftstats/internal/debounce"
	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/metrics"
	"github.com/tomtom215/craftstats/internal/rank"
	"github.com/tomtom215/craftstats/internal/timeseries"
	"github.com/tomtom215/craftstats/internal/validation"
)

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	MaxBuckets        int
	MaxAxisPoints     int
	LeaderboardLimit  int
	RankDebounce      time.Duration
	RankCacheCapacity int
	RankCacheTTL      time.Duration
	FetchTimeout      time.Duration
	Clock             debounce.Clock
	SessionID         string
}

// OptionsFromConfig maps engine configuration onto controller options.
func OptionsFromConfig(cfg *config.EngineConfig) Options {
	return Options{
		MaxBuckets:        cfg.MaxBuckets,
		MaxAxisPoints:     cfg.MaxAxisPoints,
		LeaderboardLimit:  cfg.LeaderboardLimit,
		RankDebounce:      cfg.RankDebounce,
		RankCacheCapacity: cfg.RankCacheCapacity,
		RankCacheTTL:      cfg.RankCacheTTL,
		FetchTimeout:      cfg.FetchTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxBuckets <= 0 {
		o.MaxBuckets = timeseries.DefaultMaxBuckets
	}
	if o.MaxAxisPoints <= 0 {
		o.MaxAxisPoints = timeseries.DefaultMaxAxisPoints
	}
	if o.LeaderboardLimit <= 0 {
		o.LeaderboardLimit = rank.DefaultLimit
	}
	if o.RankDebounce == 0 {
		o.RankDebounce = rank.DefaultDebounce
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.Clock == nil {
		o.Clock = debounce.RealClock{}
	}
	if o.SessionID == "" {
		o.SessionID = logging.GenerateCorrelationID()
	}
	return o
}

// Controller is the state machine behind one dashboard. All methods are
// safe for concurrent use.
type Controller struct {
	fetcher Fetcher
	sink    ChartSink
	opts    Options
	ranks   *rank.Service
	session *rank.Session
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	generation uint64
	query      Query
	raw        rawCache
	full       timeseries.Window
	viewport   timeseries.Window
	conversion timeseries.ConversionSpec
	percent    timeseries.PercentSpec
	rankAt     *int64
	kpis       timeseries.KPIs
	lastSpec   ChartSpec
}

// NewController creates an idle Controller that fetches through fetcher and
// pushes chart options to sink.
func NewController(fetcher Fetcher, sink ChartSink, opts Options) *Controller {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(logging.ContextWithSessionID(context.Background(), opts.SessionID))

	ranks := rank.NewService(fetcher, rank.Options{
		Capacity: opts.RankCacheCapacity,
		TTL:      opts.RankCacheTTL,
		Limit:    opts.LeaderboardLimit,
		Debounce: opts.RankDebounce,
		Clock:    opts.Clock,
	})

	c := &Controller{
		fetcher:  fetcher,
		sink:     sink,
		opts:     opts,
		ranks:    ranks,
		session:  ranks.NewSession(ctx),
		log:      logging.WithComponent("dashboard").With().Str("session_id", opts.SessionID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		raw:      emptyRaw(),
		lastSpec: emptySpec(0, timeseries.Granularity10m),
	}
	metrics.DashboardSessions.Inc()
	return c
}

// OnEntitySelectionChanged runs a new query: it fetches delta and total
// series, replaces the raw cache, resets the viewport to the full range and
// pushes a replacing chart option.
//
// If a newer query starts or the controller closes while this one is in
// flight, the result is discarded and ErrStaleQuery is returned. On fetch
// failure the raw cache is emptied, an empty chart is pushed and the error
// is returned.
func (c *Controller) OnEntitySelectionChanged(ctx context.Context, q Query) error {
	if err := validation.Err(validation.ValidateStruct(q)); err != nil {
		return err
	}
	if g, err := timeseries.ParseGranularity(string(q.Granularity)); err == nil {
		q.Granularity = g
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.generation++
	gen := c.generation
	if !rank.SameSet(c.query.MetricIDs, q.MetricIDs) || !rank.SameSet(c.query.SourceIDs, q.SourceIDs) {
		c.ranks.Clear()
	}
	c.query = q
	c.rankAt = nil
	c.session.Cancel()
	c.mu.Unlock()

	start := time.Now()
	delta, total, fetchErr := c.fetchBoth(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed || c.generation != gen {
		metrics.StaleQueriesDiscarded.Inc()
		c.log.Debug().Uint64("generation", gen).Uint64("current", c.generation).Msg("Discarding superseded query result")
		return ErrStaleQuery
	}

	if fetchErr != nil {
		metrics.QueryFailures.Inc()
		c.raw = emptyRaw()
		c.state = StateIdle
		c.full = timeseries.Window{}
		c.viewport = timeseries.Window{}
		c.kpis = timeseries.KPIs{}
		c.lastSpec = emptySpec(gen, q.Granularity)
		c.log.Warn().Err(fetchErr).Uint64("generation", gen).Msg("Query failed")
		if err := c.push(c.lastSpec, true); err != nil {
			c.log.Warn().Err(err).Msg("Failed to push empty chart")
		}
		return fmt.Errorf("query failed: %w", fetchErr)
	}

	c.raw = rawCache{
		delta:      delta,
		total:      total,
		totalDense: timeseries.DensifyWithLimit(total, timeseries.ModeTotal, q.Granularity.Seconds(), c.opts.MaxAxisPoints),
	}
	c.full = fullWindow(q, c.raw)
	c.viewport = c.full
	c.state = StateLoaded

	spec := c.renderLocked(pathQuery)
	c.log.Debug().
		Uint64("generation", gen).
		Int("entities", len(q.EntityIDs)).
		Dur("duration", time.Since(start)).
		Msg("Query loaded")

	c.scheduleRankLocked(c.viewport.End)
	return c.push(spec, true)
}

func (c *Controller) fetchBoth(ctx context.Context, q Query) (delta, total timeseries.SparseSeries, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	params := q.fetchParams()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		delta, err = c.fetcher.FetchDeltaSeries(gctx, params)
		if err != nil {
			return fmt.Errorf("fetch delta series: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = c.fetcher.FetchTotalSeries(gctx, params)
		if err != nil {
			return fmt.Errorf("fetch total series: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if delta == nil {
		delta = timeseries.SparseSeries{}
	}
	if total == nil {
		total = timeseries.SparseSeries{}
	}
	// Viewport changes clip the cached series by binary search, so every
	// fetcher's output is sorted once here.
	return delta.Normalize(), total.Normalize(), nil
}

// OnViewportChanged re-renders the cached series for a new visible window
// without any network call, then schedules a rank lookup at its end.
func (c *Controller) OnViewportChanged(z ZoomEvent) error {
	if err := validation.Err(validation.ValidateStruct(z)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}

	w := timeseries.Window{Start: z.Start, End: z.End}
	if z.ByIndex {
		w = c.windowFromIndexesLocked(z.Start, z.End)
	}

	c.state = StateRecomputing
	c.viewport = w
	spec := c.renderLocked(pathViewport)
	c.state = StateLoaded

	c.scheduleRankLocked(w.End)
	return c.push(spec, false)
}

// windowFromIndexesLocked maps chart axis indexes onto timestamps, clamping
// to the axis. An empty axis keeps the full window.
func (c *Controller) windowFromIndexesLocked(startIdx, endIdx int64) timeseries.Window {
	axis := c.lastSpec.Axis
	if len(axis) == 0 {
		return c.full
	}
	clamp := func(i int64) int64 {
		return max(0, min(i, int64(len(axis)-1)))
	}
	return timeseries.Window{Start: axis[clamp(startIdx)], End: axis[clamp(endIdx)]}
}

// OnConversionSpecChanged re-renders with a new unit conversion. Before the
// first query the spec is only stored.
func (c *Controller) OnConversionSpecChanged(spec timeseries.ConversionSpec) error {
	if spec.Enabled {
		if err := validation.Err(validation.ValidateStruct(conversionRequest{From: string(spec.From), To: string(spec.To)})); err != nil {
			return err
		}
		from, _ := timeseries.ParseUnit(string(spec.From))
		to, _ := timeseries.ParseUnit(string(spec.To))
		spec.From, spec.To = from, to
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	c.conversion = spec
	return c.rerenderLocked()
}

type conversionRequest struct {
	From string `validate:"required,unit"`
	To   string `validate:"required,unit"`
}

// OnPercentSpecChanged re-renders with a new percentage setting.
func (c *Controller) OnPercentSpecChanged(spec timeseries.PercentSpec) error {
	if spec.Enabled {
		switch spec.Basis {
		case timeseries.BasisGlobal:
		case timeseries.BasisEntity:
			if spec.EntityID == "" {
				return fmt.Errorf("percent basis %q requires an entity id", spec.Basis)
			}
		case "":
			spec.Basis = timeseries.BasisGlobal
		default:
			return fmt.Errorf("unknown percent basis %q", spec.Basis)
		}
		if spec.Instant == "" {
			spec.Instant = timeseries.InstantWindowEnd
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	c.percent = spec
	return c.rerenderLocked()
}

func (c *Controller) rerenderLocked() error {
	if c.state != StateLoaded {
		return nil
	}
	return c.push(c.renderLocked(pathRerender), false)
}

// OnPointClicked pins the rank instant to x. The leaderboard at x is shown
// as soon as it is cached; a lookup is scheduled otherwise.
func (c *Controller) OnPointClicked(x int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}

	at := x
	c.rankAt = &at
	spec := c.renderLocked(pathRerender)
	c.scheduleRankLocked(x)
	return c.push(spec, false)
}

func (c *Controller) readyLocked() error {
	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateIdle:
		return ErrNotLoaded
	default:
		return nil
	}
}

// scheduleRankLocked requests the rank entry at ts. When it arrives and the
// query it was made for is still current, the chart is re-rendered.
func (c *Controller) scheduleRankLocked(ts int64) {
	gen := c.generation
	req := rank.Request{At: ts, MetricIDs: c.query.MetricIDs, SourceIDs: c.query.SourceIDs}
	c.session.Schedule(req, func(res rank.Result) {
		c.onRankResult(gen, res)
	})
}

func (c *Controller) onRankResult(gen uint64, res rank.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLoaded || c.generation != gen {
		return
	}
	if res.Err != nil {
		c.log.Warn().Err(res.Err).Int64("at", res.Request.At).Msg("Rank lookup failed, keeping previous values")
		return
	}
	if err := c.push(c.renderLocked(pathRank), false); err != nil {
		c.log.Warn().Err(err).Msg("Failed to push rank update")
	}
}

// push hands spec to the sink. Must be called with mu held.
func (c *Controller) push(spec ChartSpec, replace bool) error {
	if c.sink == nil {
		return nil
	}
	if err := c.sink.SetOption(spec, replace); err != nil {
		return fmt.Errorf("push chart option: %w", err)
	}
	return nil
}

// Close releases the controller. In-flight queries resolve to
// ErrStaleQuery and every later event returns ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.generation++
	c.raw = emptyRaw()
	c.mu.Unlock()

	c.session.Close()
	c.ranks.Clear()
	c.cancel()
	metrics.DashboardSessions.Dec()
	c.log.Debug().Msg("Dashboard closed")
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// KPIs returns the KPIs of the last render.
func (c *Controller) KPIs() timeseries.KPIs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kpis
}

// Viewport returns the visible window.
func (c *Controller) Viewport() timeseries.Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// LastSpec returns the last rendered chart option.
func (c *Controller) LastSpec() ChartSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSpec
}

// SessionID identifies the controller in logs.
func (c *Controller) SessionID() string {
	return c.opts.SessionID
}

// RankCacheLen returns the number of cached rank entries.
func (c *Controller) RankCacheLen() int {
	return c.ranks.Len()
}
