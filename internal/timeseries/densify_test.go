// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valuesAt(t *testing.T, d Dense, id string) map[int64]float64 {
	t.Helper()
	points, ok := d.Series[id]
	require.True(t, ok, "entity %s missing", id)
	require.Len(t, points, len(d.Axis))
	out := make(map[int64]float64, len(points))
	for i, p := range points {
		require.Equal(t, d.Axis[i], p.Timestamp)
		out[p.Timestamp] = p.Value
	}
	return out
}

func TestDensify_DeltaZeroFillsGaps(t *testing.T) {
	t.Parallel()

	s := SparseSeries{"A": {{0, 5}, {120, 7}}}
	d := Densify(s, ModeDelta, 60)

	assert.Equal(t, []int64{0, 60, 120}, d.Axis)
	assert.Equal(t, map[int64]float64{0: 5, 60: 0, 120: 7}, valuesAt(t, d, "A"))
}

func TestDensify_TotalCarriesForward(t *testing.T) {
	t.Parallel()

	s := SparseSeries{"A": {{0, 5}, {120, 7}}}
	d := Densify(s, ModeTotal, 60)

	assert.Equal(t, map[int64]float64{0: 5, 60: 5, 120: 7}, valuesAt(t, d, "A"))
	assert.Equal(t, 5.0, CarryForwardAt(s["A"], 60))
}

func TestDensify_TotalZeroBeforeFirstSample(t *testing.T) {
	t.Parallel()

	// B extends the axis to the left of A's first sample.
	s := SparseSeries{
		"A": {{120, 40}},
		"B": {{0, 1}},
	}
	d := Densify(s, ModeTotal, 60)

	assert.Equal(t, []int64{0, 60, 120}, d.Axis)
	assert.Equal(t, map[int64]float64{0: 0, 60: 0, 120: 40}, valuesAt(t, d, "A"))
	assert.Equal(t, map[int64]float64{0: 1, 60: 1, 120: 1}, valuesAt(t, d, "B"))
	assert.Equal(t, 0.0, CarryForwardAt(s["A"], 119))
}

func TestDensify_DuplicateTimestamps(t *testing.T) {
	t.Parallel()

	s := SparseSeries{"A": {{0, 2}, {0, 3}, {60, 1}}}

	delta := Densify(s, ModeDelta, 60)
	assert.Equal(t, map[int64]float64{0: 5, 60: 1}, valuesAt(t, delta, "A"))

	total := Densify(s, ModeTotal, 60)
	assert.Equal(t, map[int64]float64{0: 3, 60: 1}, valuesAt(t, total, "A"))
}

func TestDensify_OffGridSamplesKept(t *testing.T) {
	t.Parallel()

	s := SparseSeries{"A": {{0, 1}, {45, 2}, {120, 3}}}
	d := Densify(s, ModeDelta, 60)

	assert.Equal(t, []int64{0, 45, 60, 120}, d.Axis)
	var sum float64
	for _, p := range d.Series["A"] {
		sum += p.Value
	}
	assert.Equal(t, 6.0, sum)
}

func TestDensify_EmptyAndOmitted(t *testing.T) {
	t.Parallel()

	d := Densify(SparseSeries{}, ModeTotal, 60)
	assert.Empty(t, d.Axis)
	assert.Empty(t, d.Series)

	d = Densify(SparseSeries{"A": nil, "B": {{10, 1}}}, ModeDelta, 60)
	assert.NotContains(t, d.Series, "A")
	assert.Contains(t, d.Series, "B")
	assert.Equal(t, []int64{10}, d.Axis)
}

func TestDensify_UnsortedInputNotMutated(t *testing.T) {
	t.Parallel()

	points := []MetricPoint{{120, 3}, {0, 1}}
	s := SparseSeries{"A": points}
	d := Densify(s, ModeTotal, 60)

	assert.Equal(t, map[int64]float64{0: 1, 60: 1, 120: 3}, valuesAt(t, d, "A"))
	assert.Equal(t, int64(120), points[0].Timestamp, "input slice reordered")
}

func TestDensify_Idempotent(t *testing.T) {
	t.Parallel()

	s := SparseSeries{
		"A": {{0, 5}, {45, 1}, {300, 7}, {300, 2}},
		"B": {{60, 10}, {600, 11}},
	}
	for _, mode := range []Mode{ModeDelta, ModeTotal} {
		once := Densify(s, mode, 60)
		twice := Densify(once.Series, mode, 60)
		assert.Equal(t, once, twice, "mode %s", mode)
	}
}

func TestDensify_AxisCap(t *testing.T) {
	t.Parallel()

	s := SparseSeries{"A": {{0, 1}, {1_000_000, 1}}}
	d := DensifyWithLimit(s, ModeDelta, 1, 100)

	assert.LessOrEqual(t, len(d.Axis), 101)
	assert.Equal(t, int64(0), d.Axis[0])
	assert.Equal(t, int64(1_000_000), d.Axis[len(d.Axis)-1])
}

func TestDensify_NonPositiveStepUsesSamplesOnly(t *testing.T) {
	t.Parallel()

	s := SparseSeries{"A": {{0, 1}}, "B": {{500, 2}}}
	d := Densify(s, ModeTotal, 0)

	assert.Equal(t, []int64{0, 500}, d.Axis)
	assert.Equal(t, map[int64]float64{0: 0, 500: 2}, valuesAt(t, d, "B"))
}

func TestTotalAt(t *testing.T) {
	t.Parallel()

	s := SparseSeries{
		"A": {{0, 10}, {600, 15}},
		"B": {{300, 3}},
	}
	assert.Equal(t, 10.0, TotalAt(s, 100))
	assert.Equal(t, 13.0, TotalAt(s, 300))
	assert.Equal(t, 18.0, TotalAt(s, 10_000))
	assert.Equal(t, 0.0, TotalAt(s, -1))
}

func TestSparseSeries_NormalizeAndBounds(t *testing.T) {
	t.Parallel()

	s := SparseSeries{
		"A": {{30, 1}, {10, 2}, {10, 3}},
		"B": {},
	}
	s.Normalize()

	assert.NotContains(t, s, "B")
	assert.Equal(t, []MetricPoint{{10, 2}, {10, 3}, {30, 1}}, s["A"])

	minTs, maxTs, ok := s.Bounds()
	assert.True(t, ok)
	assert.Equal(t, int64(10), minTs)
	assert.Equal(t, int64(30), maxTs)

	_, _, ok = SparseSeries{}.Bounds()
	assert.False(t, ok)
}
