// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/craftstats/internal/models"
	"github.com/tomtom215/craftstats/internal/timeseries"
)

// Sentinel errors returned by Controller event methods.
var (
	// ErrStaleQuery means a newer query started (or the controller closed)
	// while this one was fetching; its result was discarded.
	ErrStaleQuery = errors.New("dashboard: query superseded")
	// ErrClosed is returned by every event after Close.
	ErrClosed = errors.New("dashboard: controller closed")
	// ErrNotLoaded is returned by viewport and click events before the
	// first successful query.
	ErrNotLoaded = errors.New("dashboard: no data loaded")
)

// Fetcher supplies raw series and leaderboards.
type Fetcher interface {
	FetchDeltaSeries(ctx context.Context, params models.FetchParams) (timeseries.SparseSeries, error)
	FetchTotalSeries(ctx context.Context, params models.FetchParams) (timeseries.SparseSeries, error)
	FetchLeaderboardTotal(ctx context.Context, params models.FetchParams) (*models.LeaderboardResponse, error)
}

// ChartSink receives rendered chart options. replace is true when the
// series set changed and the chart should drop what it shows; false when
// only values, the viewport or labels changed. SetOption is called with the
// controller lock held and must not call back into the controller.
type ChartSink interface {
	SetOption(spec ChartSpec, replace bool) error
}

// ChartSinkFunc adapts a function to ChartSink.
type ChartSinkFunc func(spec ChartSpec, replace bool) error

// SetOption calls f.
func (f ChartSinkFunc) SetOption(spec ChartSpec, replace bool) error {
	return f(spec, replace)
}

// State is the controller lifecycle state.
type State int

const (
	// StateIdle has no data: before the first query or after a failed one.
	StateIdle State = iota
	// StateLoaded holds a raw cache and a rendered chart.
	StateLoaded
	// StateRecomputing is held while a viewport change is being rendered.
	StateRecomputing
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateRecomputing:
		return "recomputing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Query is a full selection: which players, which statistics, which
// servers, at what granularity.
type Query struct {
	EntityIDs   []string               `json:"entity_ids" validate:"required,min=1,dive,required"`
	MetricIDs   []string               `json:"metric_ids" validate:"required,min=1,dive,required"`
	SourceIDs   []string               `json:"source_ids,omitempty" validate:"omitempty,dive,required"`
	Granularity timeseries.Granularity `json:"granularity" validate:"required,granularity"`
	Start       *int64                 `json:"start,omitempty"`
	End         *int64                 `json:"end,omitempty"`
	Display     Display                `json:"display"`
}

// Display holds rendering switches that change the shape of the delta
// chart.
type Display struct {
	// ZeroFill draws every step of the visible window with missing
	// intervals as zero instead of summing into buckets.
	ZeroFill bool `json:"zero_fill"`
}

func (q Query) fetchParams() models.FetchParams {
	return models.FetchParams{
		EntityIDs:   q.EntityIDs,
		MetricIDs:   q.MetricIDs,
		SourceIDs:   q.SourceIDs,
		Granularity: q.Granularity,
		Start:       q.Start,
		End:         q.End,
	}
}

// ZoomEvent is a viewport change reported by the chart. With ByIndex the
// bounds are indexes into the total series axis of the last ChartSpec;
// otherwise they are unix seconds.
type ZoomEvent struct {
	Start   int64 `json:"start"`
	End     int64 `json:"end" validate:"gtefield=Start"`
	ByIndex bool  `json:"by_index,omitempty"`
}

// ChartSpec is everything the chart needs to draw one frame. It is retained
// by the controller, so nothing has to be read back from the renderer.
type ChartSpec struct {
	Generation  uint64                      `json:"generation"`
	Granularity timeseries.Granularity      `json:"granularity"`
	Viewport    timeseries.Window           `json:"viewport"`
	Unit        string                      `json:"unit,omitempty"`
	Percent     bool                        `json:"percent"`
	ZeroFill    bool                        `json:"zero_fill"`
	Axis        []int64                     `json:"axis"`
	Delta       []timeseries.RenderedSeries `json:"delta"`
	Total       []timeseries.RenderedSeries `json:"total"`
	KPIs        timeseries.KPIs             `json:"kpis"`
	RankAt      *int64                      `json:"rank_at,omitempty"`
	Leaderboard []models.RankEntry          `json:"leaderboard"`
}

func emptySpec(generation uint64, g timeseries.Granularity) ChartSpec {
	return ChartSpec{
		Generation:  generation,
		Granularity: g,
		Axis:        []int64{},
		Delta:       []timeseries.RenderedSeries{},
		Total:       []timeseries.RenderedSeries{},
		Leaderboard: []models.RankEntry{},
	}
}
