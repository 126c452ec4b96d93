// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package timeseries

import "sort"

// RenderedSeries is one entity's series exactly as drawn: post conversion,
// post percentage, post bucketization.
type RenderedSeries struct {
	EntityID string        `json:"entity_id"`
	Points   []MetricPoint `json:"points"`
}

// Rendered converts a SparseSeries into entity-ordered RenderedSeries.
func Rendered(series SparseSeries) []RenderedSeries {
	ids := series.EntityIDs()
	out := make([]RenderedSeries, 0, len(ids))
	for _, id := range ids {
		out = append(out, RenderedSeries{EntityID: id, Points: series[id]})
	}
	return out
}

// Selection is an inclusive index range into a rendered series. Start > End
// is an empty selection.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Empty reports whether the selection covers no index.
func (s Selection) Empty() bool {
	return s.Start > s.End
}

// FullSelection selects every index of an n-point series.
func FullSelection(n int) Selection {
	return Selection{Start: 0, End: n - 1}
}

// SelectionForWindow maps a value window onto indexes of a sorted axis:
// Start is the first index at or after w.Start, End the last index at or
// before w.End. ok is false when no axis point lies inside the window; End
// is still the last index before w.End (or -1), which is what carry-forward
// lookups need.
func SelectionForWindow(axis []int64, w Window) (sel Selection, ok bool) {
	start := sort.Search(len(axis), func(i int) bool { return axis[i] >= w.Start })
	end := sort.Search(len(axis), func(i int) bool { return axis[i] > w.End }) - 1
	sel = Selection{Start: start, End: end}
	return sel, !sel.Empty()
}

// KPIs summarise the visible window.
type KPIs struct {
	// WindowDeltaSum is the sum of every visible delta bucket.
	WindowDeltaSum float64 `json:"window_delta_sum"`
	// WindowEndTotal is the sum of every selected player's total at the
	// window end.
	WindowEndTotal float64 `json:"window_end_total"`
	// GlobalTotalAtEnd is the server-wide total at the window end, filled in
	// asynchronously from the leaderboard service.
	GlobalTotalAtEnd float64 `json:"global_total_at_end"`
}

// ComputeKPIs reduces rendered series to window KPIs without any I/O.
//
// WindowEndTotal sums each total series at index totalSel.End, clamped to
// the last index; an End before the first index contributes 0.
// WindowDeltaSum sums each delta series over [deltaSel.Start, deltaSel.End].
// Empty inputs yield zero.
func ComputeKPIs(total, delta []RenderedSeries, totalSel, deltaSel Selection) KPIs {
	var k KPIs

	for _, s := range total {
		n := len(s.Points)
		if n == 0 || totalSel.End < 0 {
			continue
		}
		idx := totalSel.End
		if idx >= n {
			idx = n - 1
		}
		k.WindowEndTotal += s.Points[idx].Value
	}

	if !deltaSel.Empty() {
		for _, s := range delta {
			if len(s.Points) == 0 {
				continue
			}
			end := min(deltaSel.End, len(s.Points)-1)
			for i := max(deltaSel.Start, 0); i <= end; i++ {
				k.WindowDeltaSum += s.Points[i].Value
			}
		}
	}

	return k
}
