// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

// Package timeseries holds the pure transforms of the statistics dashboard:
// densification of sparse per-player series, window-aligned bucketization,
// unit conversion and percentage normalization, and the visible-window KPI
// reduction. Nothing in this package performs I/O or keeps state between
// calls; the dashboard controller owns every cache.
//
// Two series flavours flow through it:
//
//   - delta series hold increments ("12 blocks mined during this interval");
//     a gap means nothing happened.
//   - total series hold cumulative counters; a gap means the counter did not
//     change.
package timeseries

import (
	"sort"
	"strings"
)

// MetricPoint is one sample. Timestamp is in epoch seconds; Value is in the
// raw unit of the metric (ticks, centimeters or a plain count).
type MetricPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// SparseSeries maps an entity id (player UUID) to its samples.
type SparseSeries map[string][]MetricPoint

// Normalize sorts every entity's samples by timestamp in place. The sort is
// stable so duplicate timestamps keep their arrival order, which decides
// which value wins in total mode. Empty entities are removed.
func (s SparseSeries) Normalize() SparseSeries {
	for id, points := range s {
		if len(points) == 0 {
			delete(s, id)
			continue
		}
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Timestamp < points[j].Timestamp
		})
	}
	return s
}

// Clone returns a deep copy.
func (s SparseSeries) Clone() SparseSeries {
	out := make(SparseSeries, len(s))
	for id, points := range s {
		cp := make([]MetricPoint, len(points))
		copy(cp, points)
		out[id] = cp
	}
	return out
}

// EntityIDs returns the entity ids in sorted order so that rendering is
// deterministic.
func (s SparseSeries) EntityIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Bounds returns the smallest and largest timestamp across every entity.
// ok is false when the series holds no samples.
func (s SparseSeries) Bounds() (minTs, maxTs int64, ok bool) {
	for _, points := range s {
		for _, p := range points {
			if !ok {
				minTs, maxTs, ok = p.Timestamp, p.Timestamp, true
				continue
			}
			if p.Timestamp < minTs {
				minTs = p.Timestamp
			}
			if p.Timestamp > maxTs {
				maxTs = p.Timestamp
			}
		}
	}
	return minTs, maxTs, ok
}

// Window is an inclusive time range in epoch seconds.
type Window struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Valid reports whether End is not before Start.
func (w Window) Valid() bool {
	return w.End >= w.Start
}

// Contains reports whether ts lies inside the window.
func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts <= w.End
}

// Span returns End-Start, or 0 for an invalid window.
func (w Window) Span() int64 {
	if !w.Valid() {
		return 0
	}
	return w.End - w.Start
}

// Mode selects how gaps in a series are interpreted.
type Mode int

const (
	// ModeDelta treats a gap as zero activity.
	ModeDelta Mode = iota
	// ModeTotal treats a gap as "value unchanged".
	ModeTotal
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeDelta:
		return "delta"
	case ModeTotal:
		return "total"
	default:
		return "unknown"
	}
}

// ParseMode parses "delta" or "total".
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delta":
		return ModeDelta, true
	case "total":
		return ModeTotal, true
	default:
		return ModeDelta, false
	}
}
