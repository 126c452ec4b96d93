// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package timeseries

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Unit
		want     float64
		ok       bool
	}{
		{UnitTicks, UnitSeconds, 1.0 / 20, true},
		{UnitTicks, UnitMinutes, 1.0 / 1200, true},
		{UnitTicks, UnitHours, 1.0 / 72000, true},
		{UnitTicks, UnitDays, 1.0 / 1728000, true},
		{UnitCentimeters, UnitMeters, 1.0 / 100, true},
		{UnitCentimeters, UnitKilometers, 1.0 / 100000, true},
		{UnitMeters, UnitMeters, 1, true},
		{UnitMeters, UnitTicks, 1, false},
		{UnitSeconds, UnitTicks, 1, false},
	}
	for _, tt := range tests {
		got, ok := Multiplier(tt.from, tt.to)
		assert.InDelta(t, tt.want, got, 1e-15, "%s->%s", tt.from, tt.to)
		assert.Equal(t, tt.ok, ok, "%s->%s", tt.from, tt.to)
	}
}

func TestApplyConversion(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 60.0, ApplyConversion(1200, ConversionSpec{Enabled: true, From: UnitTicks, To: UnitSeconds}), 1e-12)
	assert.Equal(t, 1200.0, ApplyConversion(1200, ConversionSpec{Enabled: false, From: UnitTicks, To: UnitSeconds}))
	assert.Equal(t, 1200.0, ApplyConversion(1200, ConversionSpec{Enabled: true, From: UnitTicks, To: UnitMeters}))
	assert.InDelta(t, 2.5, ApplyConversion(250_000, ConversionSpec{Enabled: true, From: UnitCentimeters, To: UnitKilometers}), 1e-12)
}

func TestConvertPointsCopies(t *testing.T) {
	t.Parallel()

	in := []MetricPoint{{0, 100}, {60, 200}}
	out := ConvertPoints(in, ConversionSpec{Enabled: true, From: UnitCentimeters, To: UnitMeters})

	assert.InDelta(t, 1.0, out[0].Value, 1e-12)
	assert.InDelta(t, 2.0, out[1].Value, 1e-12)
	assert.Equal(t, int64(60), out[1].Timestamp)
	assert.Equal(t, 100.0, in[0].Value)
}

func TestToPercent_Degenerate(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0, 1, 42.5, -3} {
		got := ToPercent(v, 0)
		assert.Equal(t, 100*v, got)
		assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
	}
	assert.Equal(t, 50.0, ToPercent(5, 10))
	assert.Equal(t, []MetricPoint{{0, 25}}, PercentPoints([]MetricPoint{{0, 1}}, 4))
}

func TestConversionThenPercentIsScaleFree(t *testing.T) {
	t.Parallel()

	spec := ConversionSpec{Enabled: true, From: UnitTicks, To: UnitHours}
	v, basis := 36_000.0, 144_000.0

	direct := ToPercent(v, basis)
	converted := ToPercent(ApplyConversion(v, spec), ApplyConversion(basis, spec))
	assert.InDelta(t, direct, converted, 1e-9)
}

func TestParseUnitAndGranularity(t *testing.T) {
	t.Parallel()

	u, err := ParseUnit(" KM ")
	require.NoError(t, err)
	assert.Equal(t, UnitKilometers, u)
	_, err = ParseUnit("furlong")
	assert.Error(t, err)

	g, err := ParseGranularity("1MO")
	require.NoError(t, err)
	assert.Equal(t, int64(30*86400), g.Seconds())
	_, err = ParseGranularity("2h")
	assert.Error(t, err)
	assert.Equal(t, int64(0), Granularity("bogus").Seconds())
	assert.Len(t, Granularities(), 9)
}
