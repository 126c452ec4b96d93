// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package timeseries

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultMaxBuckets bounds the number of buckets a single series renders.
const DefaultMaxBuckets = 1000

// BucketLayout describes how a window was split.
type BucketLayout struct {
	// Origin is the aligned left edge of bucket 0.
	Origin int64
	// Width is the bucket width in seconds.
	Width int64
	// Count is the number of buckets needed to cover [Origin, window end].
	Count int64
}

// Midpoint returns the timestamp at which bucket idx is drawn.
func (l BucketLayout) Midpoint(idx int64) int64 {
	return l.Origin + idx*l.Width + l.Width/2
}

// Index returns the bucket holding ts.
func (l BucketLayout) Index(ts int64) int64 {
	return floorDiv(ts-l.Origin, l.Width)
}

// PlanBuckets computes the bucket layout for a window.
//
// The nominal bucket count is ceil(span / granularity) capped at
// maxBuckets; the width is ceil(span / count) and the first edge is aligned
// down to a multiple of the width. If alignment pushes the required count
// past maxBuckets the width is widened until it fits. An unknown
// granularity is treated as the finest supported one.
func PlanBuckets(g Granularity, windowStart, windowEnd int64, maxBuckets int) (BucketLayout, bool) {
	if maxBuckets <= 0 || windowEnd < windowStart {
		return BucketLayout{}, false
	}

	gran := g.Seconds()
	if gran <= 0 {
		gran = Granularity10m.Seconds()
	}
	span := windowEnd - windowStart
	if span < 1 {
		span = 1
	}

	limit := int64(maxBuckets)
	count := ceilDiv(span, gran)
	if count > limit {
		count = limit
	}
	if count < 1 {
		count = 1
	}

	width := ceilDiv(span, count)
	origin := floorDiv(windowStart, width) * width
	for floorDiv(windowEnd-origin, width)+1 > limit {
		width = maxInt64(width+1, ceilDiv(windowEnd-origin+1, limit))
		origin = floorDiv(windowStart, width) * width
	}

	return BucketLayout{
		Origin: origin,
		Width:  width,
		Count:  floorDiv(windowEnd-origin, width) + 1,
	}, true
}

// Bucketize sums the points of raw that fall inside [windowStart, windowEnd]
// into window-aligned buckets and returns one point per non-empty bucket,
// timestamped at the bucket midpoint and sorted ascending. Values are
// rounded to two decimals. raw must be sorted by timestamp. Bucketize never
// fails: a degenerate window, a non-positive maxBuckets or an empty clip all
// return an empty slice.
func Bucketize(raw []MetricPoint, g Granularity, windowStart, windowEnd int64, maxBuckets int) []MetricPoint {
	clipped := Clip(raw, Window{Start: windowStart, End: windowEnd})
	if len(clipped) == 0 {
		return []MetricPoint{}
	}
	layout, ok := PlanBuckets(g, windowStart, windowEnd, maxBuckets)
	if !ok {
		return []MetricPoint{}
	}

	sums := make(map[int64]float64)
	for _, p := range clipped {
		sums[layout.Index(p.Timestamp)] += p.Value
	}

	out := make([]MetricPoint, 0, len(sums))
	for idx, sum := range sums {
		out = append(out, MetricPoint{Timestamp: layout.Midpoint(idx), Value: round2(sum)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// BucketizeSeries applies Bucketize to every entity. Entities with no points
// inside the window are omitted.
func BucketizeSeries(series SparseSeries, g Granularity, w Window, maxBuckets int) SparseSeries {
	out := make(SparseSeries, len(series))
	for id, points := range series {
		if b := Bucketize(points, g, w.Start, w.End, maxBuckets); len(b) > 0 {
			out[id] = b
		}
	}
	return out
}

// Clip returns the points of raw inside w. raw must be sorted by
// timestamp, as Normalize leaves it. Both bounds are found by binary
// search, so the cost depends on the clipped points only. The result never
// aliases raw.
func Clip(raw []MetricPoint, w Window) []MetricPoint {
	if len(raw) == 0 || !w.Valid() {
		return nil
	}
	lo, hi := clipBounds(len(raw), func(i int) int64 { return raw[i].Timestamp }, w)
	if lo >= hi {
		return nil
	}
	out := make([]MetricPoint, hi-lo)
	copy(out, raw[lo:hi])
	return out
}

// clipBounds returns the half-open index range [lo, hi) of the n sorted
// timestamps reported by at that fall inside w.
func clipBounds(n int, at func(i int) int64, w Window) (lo, hi int) {
	lo = sort.Search(n, func(i int) bool { return at(i) >= w.Start })
	hi = lo + sort.Search(n-lo, func(i int) bool { return at(lo+i) > w.End })
	return lo, hi
}

// round2 rounds half away from zero to two decimals. NaN and infinities are
// returned unchanged since decimal cannot represent them.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
