// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package timeseries

import (
	"sort"
)

// DefaultMaxAxisPoints caps the length of a densified axis. A step that
// would produce more points than this is widened.
const DefaultMaxAxisPoints = 5000

// Dense is the output of Densify. Every entity in Series has exactly one
// point per Axis timestamp, in axis order.
type Dense struct {
	Axis   []int64
	Series SparseSeries
}

// Len returns the axis length.
func (d Dense) Len() int {
	return len(d.Axis)
}

// Rendered flattens the dense series into entity-ordered RenderedSeries.
func (d Dense) Rendered() []RenderedSeries {
	return Rendered(d.Series)
}

// Densify fills gaps in every entity's series over a shared axis.
//
// The axis runs from the earliest to the latest sample across all entities
// in increments of step, merged with every raw sample timestamp so that no
// sample is lost when it falls between grid points. A non-positive step
// yields an axis of raw sample timestamps only.
//
// In ModeDelta a missing axis point is 0 and duplicate timestamps are
// summed. In ModeTotal a missing point carries the last known value
// forward, points before the first sample are 0, and the last duplicate
// wins.
//
// Entities without samples are omitted. The input is not modified.
func Densify(series SparseSeries, mode Mode, step int64) Dense {
	return DensifyWithLimit(series, mode, step, DefaultMaxAxisPoints)
}

// DensifyWithLimit is Densify with an explicit axis length cap. maxPoints
// below 2 disables the cap.
func DensifyWithLimit(series SparseSeries, mode Mode, step int64, maxPoints int) Dense {
	sorted := make(SparseSeries, len(series))
	for id, points := range series {
		if len(points) == 0 {
			continue
		}
		sorted[id] = sortedCopy(points)
	}

	minTs, maxTs, ok := sorted.Bounds()
	if !ok {
		return Dense{Axis: []int64{}, Series: SparseSeries{}}
	}

	axis := buildAxis(sorted, minTs, maxTs, effectiveStep(minTs, maxTs, step, maxPoints))

	out := make(SparseSeries, len(sorted))
	for id, points := range sorted {
		if mode == ModeTotal {
			out[id] = fillTotal(points, axis)
		} else {
			out[id] = fillDelta(points, axis)
		}
	}
	return Dense{Axis: axis, Series: out}
}

// effectiveStep widens step so the grid part of the axis stays under maxPoints.
func effectiveStep(minTs, maxTs, step int64, maxPoints int) int64 {
	if step <= 0 || maxPoints < 2 {
		return step
	}
	span := maxTs - minTs
	if span/step+1 > int64(maxPoints) {
		step = ceilDiv(span, int64(maxPoints-1))
	}
	return step
}

func buildAxis(series SparseSeries, minTs, maxTs, step int64) []int64 {
	seen := make(map[int64]struct{})
	axis := make([]int64, 0)
	add := func(ts int64) {
		if _, dup := seen[ts]; dup {
			return
		}
		seen[ts] = struct{}{}
		axis = append(axis, ts)
	}

	if step > 0 {
		for ts := minTs; ts <= maxTs; ts += step {
			add(ts)
		}
	}
	for _, points := range series {
		for _, p := range points {
			add(p.Timestamp)
		}
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i] < axis[j] })
	return axis
}

func fillDelta(points []MetricPoint, axis []int64) []MetricPoint {
	out := make([]MetricPoint, len(axis))
	j := 0
	for i, ts := range axis {
		var sum float64
		for j < len(points) && points[j].Timestamp == ts {
			sum += points[j].Value
			j++
		}
		out[i] = MetricPoint{Timestamp: ts, Value: sum}
	}
	return out
}

func fillTotal(points []MetricPoint, axis []int64) []MetricPoint {
	out := make([]MetricPoint, len(axis))
	j := 0
	var last float64
	for i, ts := range axis {
		for j < len(points) && points[j].Timestamp <= ts {
			last = points[j].Value
			j++
		}
		out[i] = MetricPoint{Timestamp: ts, Value: last}
	}
	return out
}

// CarryForwardAt returns the total-mode value of points at instant t: the
// value of the last sample at or before t, or 0 when t precedes every
// sample. points must be sorted by timestamp.
func CarryForwardAt(points []MetricPoint, t int64) float64 {
	idx := sort.Search(len(points), func(i int) bool { return points[i].Timestamp > t })
	if idx == 0 {
		return 0
	}
	return points[idx-1].Value
}

// TotalAt sums CarryForwardAt over every entity in a sorted total series.
func TotalAt(series SparseSeries, t int64) float64 {
	var sum float64
	for _, points := range series {
		sum += CarryForwardAt(points, t)
	}
	return sum
}

func sortedCopy(points []MetricPoint) []MetricPoint {
	cp := make([]MetricPoint, len(points))
	copy(cp, points)
	if !sort.SliceIsSorted(cp, func(i, j int) bool { return cp[i].Timestamp < cp[j].Timestamp }) {
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp < cp[j].Timestamp })
	}
	return cp
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return a
	}
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
