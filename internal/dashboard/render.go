// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package dashboard

import (
	"time"

	"github.com/tomtom215/craftstats/internal/metrics"
	"github.com/tomtom215/craftstats/internal/models"
	"github.com/tomtom215/craftstats/internal/timeseries"
)

// Recompute paths, used as metric labels.
const (
	pathQuery    = "query"
	pathViewport = "viewport"
	pathRerender = "rerender"
	pathRank     = "rank"
)

// rawCache holds the unconverted series of the current query. It is
// replaced wholesale on every query.
type rawCache struct {
	delta timeseries.SparseSeries
	total timeseries.SparseSeries
	// totalDense is the carry-forward densified total, computed once per
	// query.
	totalDense timeseries.Dense
}

func emptyRaw() rawCache {
	return rawCache{
		delta:      timeseries.SparseSeries{},
		total:      timeseries.SparseSeries{},
		totalDense: timeseries.Dense{Axis: []int64{}, Series: timeseries.SparseSeries{}},
	}
}

// fullWindow is the explicit query range when given, otherwise the union
// of the sample bounds of both series.
func fullWindow(q Query, raw rawCache) timeseries.Window {
	dMin, dMax, dOK := raw.delta.Bounds()
	tMin, tMax, tOK := raw.total.Bounds()

	var w timeseries.Window
	switch {
	case dOK && tOK:
		w = timeseries.Window{Start: min(dMin, tMin), End: max(dMax, tMax)}
	case dOK:
		w = timeseries.Window{Start: dMin, End: dMax}
	case tOK:
		w = timeseries.Window{Start: tMin, End: tMax}
	}
	if q.Start != nil {
		w.Start = *q.Start
	}
	if q.End != nil {
		w.End = *q.End
	}
	if w.End < w.Start {
		w.End = w.Start
	}
	return w
}

// renderLocked rebuilds lastSpec from the raw cache and the current
// viewport, conversion and percent settings. It performs no I/O: the global
// total and leaderboard come from the rank cache only if already present.
func (c *Controller) renderLocked(path string) ChartSpec {
	start := time.Now()
	defer func() { metrics.RecordRecompute(path, time.Since(start)) }()

	q := c.query
	step := q.Granularity.Seconds()
	factor := c.conversion.Factor()

	var delta timeseries.SparseSeries
	var deltaLen int
	if q.Display.ZeroFill {
		clipped := make(timeseries.SparseSeries, len(c.raw.delta))
		for id, points := range c.raw.delta {
			if cp := timeseries.Clip(points, c.viewport); len(cp) > 0 {
				clipped[id] = cp
			}
		}
		dense := timeseries.DensifyWithLimit(clipped, timeseries.ModeDelta, step, c.opts.MaxAxisPoints)
		delta = dense.Series
		deltaLen = dense.Len()
	} else {
		delta = timeseries.BucketizeSeries(c.raw.delta, q.Granularity, c.viewport, c.opts.MaxBuckets)
		for _, points := range delta {
			deltaLen = max(deltaLen, len(points))
		}
	}
	delta = mapSeries(delta, func(p []timeseries.MetricPoint) []timeseries.MetricPoint {
		return timeseries.ConvertPoints(p, c.conversion)
	})

	total := mapSeries(c.raw.totalDense.Series, func(p []timeseries.MetricPoint) []timeseries.MetricPoint {
		return timeseries.ConvertPoints(p, c.conversion)
	})

	globalRaw, haveGlobal := c.ranks.Peek(c.viewport.End, q.MetricIDs, q.SourceIDs)
	global := globalRaw * factor

	if c.percent.Enabled {
		basis := c.basisLocked() * factor
		toPercent := func(p []timeseries.MetricPoint) []timeseries.MetricPoint {
			return timeseries.PercentPoints(p, basis)
		}
		delta = mapSeries(delta, toPercent)
		total = mapSeries(total, toPercent)
		global = timeseries.ToPercent(global, basis)
	}

	renderedDelta := timeseries.Rendered(delta)
	renderedTotal := timeseries.Rendered(total)

	totalSel, _ := timeseries.SelectionForWindow(c.raw.totalDense.Axis, c.viewport)
	kpis := timeseries.ComputeKPIs(renderedTotal, renderedDelta, totalSel, timeseries.FullSelection(deltaLen))
	if haveGlobal {
		kpis.GlobalTotalAtEnd = global
	}

	spec := ChartSpec{
		Generation:  c.generation,
		Granularity: q.Granularity,
		Viewport:    c.viewport,
		Unit:        c.unitLabel(),
		Percent:     c.percent.Enabled,
		ZeroFill:    q.Display.ZeroFill,
		Axis:        c.raw.totalDense.Axis,
		Delta:       renderedDelta,
		Total:       renderedTotal,
		KPIs:        kpis,
		RankAt:      c.rankAt,
		Leaderboard: c.leaderboardLocked(factor),
	}
	c.kpis = kpis
	c.lastSpec = spec
	return spec
}

// basisLocked returns the raw (unconverted) percent denominator at the
// instant the percent spec selects.
func (c *Controller) basisLocked() float64 {
	at := c.viewport.End
	if c.percent.Instant == timeseries.InstantRank && c.rankAt != nil {
		at = *c.rankAt
	}

	switch c.percent.Basis {
	case timeseries.BasisEntity:
		return timeseries.CarryForwardAt(c.raw.total[c.percent.EntityID], at)
	default:
		if v, ok := c.ranks.Peek(at, c.query.MetricIDs, c.query.SourceIDs); ok {
			return v
		}
		// Until the server-wide total arrives, the selected players stand in.
		return timeseries.TotalAt(c.raw.total, at)
	}
}

// leaderboardLocked returns the cached leaderboard at the clicked instant,
// or at the window end when nothing was clicked, converted for display.
func (c *Controller) leaderboardLocked(factor float64) []models.RankEntry {
	at := c.viewport.End
	if c.rankAt != nil {
		at = *c.rankAt
	}
	entry, ok := c.ranks.PeekEntry(at, c.query.MetricIDs, c.query.SourceIDs)
	if !ok {
		return []models.RankEntry{}
	}
	rows := entry.Entries
	if c.opts.LeaderboardLimit > 0 && len(rows) > c.opts.LeaderboardLimit {
		rows = rows[:c.opts.LeaderboardLimit]
	}
	for i := range rows {
		rows[i].Value *= factor
	}
	return rows
}

func (c *Controller) unitLabel() string {
	switch {
	case c.percent.Enabled:
		return "%"
	case c.conversion.Enabled:
		if _, ok := timeseries.Multiplier(c.conversion.From, c.conversion.To); ok {
			return string(c.conversion.To)
		}
		return string(c.conversion.From)
	default:
		return ""
	}
}

func mapSeries(s timeseries.SparseSeries, fn func([]timeseries.MetricPoint) []timeseries.MetricPoint) timeseries.SparseSeries {
	out := make(timeseries.SparseSeries, len(s))
	for id, points := range s {
		out[id] = fn(points)
	}
	return out
}
