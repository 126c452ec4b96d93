// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package timeseries

import (
	"fmt"
	"strings"
)

// Unit is a measurement unit for metric values.
type Unit string

// Units understood by the conversion table. Game time is counted in ticks
// (20 per second) and distances in centimeters.
const (
	UnitCount       Unit = "count"
	UnitTicks       Unit = "ticks"
	UnitSeconds     Unit = "seconds"
	UnitMinutes     Unit = "minutes"
	UnitHours       Unit = "hours"
	UnitDays        Unit = "days"
	UnitCentimeters Unit = "centimeters"
	UnitMeters      Unit = "meters"
	UnitKilometers  Unit = "kilometers"
)

type unitPair struct {
	from, to Unit
}

const ticksPerSecond = 20

var multipliers = map[unitPair]float64{
	{UnitTicks, UnitSeconds}:          1.0 / ticksPerSecond,
	{UnitTicks, UnitMinutes}:          1.0 / (ticksPerSecond * 60),
	{UnitTicks, UnitHours}:            1.0 / (ticksPerSecond * 3600),
	{UnitTicks, UnitDays}:             1.0 / (ticksPerSecond * 86400),
	{UnitCentimeters, UnitMeters}:     1.0 / 100,
	{UnitCentimeters, UnitKilometers}: 1.0 / 100000,
}

var unitAliases = map[string]Unit{
	"count": UnitCount,
	"tick":  UnitTicks, "ticks": UnitTicks,
	"s": UnitSeconds, "sec": UnitSeconds, "second": UnitSeconds, "seconds": UnitSeconds,
	"min": UnitMinutes, "minute": UnitMinutes, "minutes": UnitMinutes,
	"h": UnitHours, "hour": UnitHours, "hours": UnitHours,
	"d": UnitDays, "day": UnitDays, "days": UnitDays,
	"cm": UnitCentimeters, "centimeter": UnitCentimeters, "centimeters": UnitCentimeters,
	"m": UnitMeters, "meter": UnitMeters, "meters": UnitMeters,
	"km": UnitKilometers, "kilometer": UnitKilometers, "kilometers": UnitKilometers,
}

// ParseUnit resolves a unit name or abbreviation.
func ParseUnit(s string) (Unit, error) {
	if u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return u, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}

// Multiplier returns the factor converting from into to. Same-unit pairs
// return 1. ok is false for pairs outside the table, whose factor is 1.
func Multiplier(from, to Unit) (factor float64, ok bool) {
	if from == to {
		return 1, true
	}
	if m, found := multipliers[unitPair{from, to}]; found {
		return m, true
	}
	return 1, false
}

// ConversionSpec selects an optional unit conversion.
type ConversionSpec struct {
	Enabled bool `json:"enabled"`
	From    Unit `json:"from"`
	To      Unit `json:"to"`
}

// Factor returns the multiplier the spec applies. Disabled specs and
// unknown pairs are the identity.
func (c ConversionSpec) Factor() float64 {
	if !c.Enabled {
		return 1
	}
	m, _ := Multiplier(c.From, c.To)
	return m
}

// ApplyConversion converts a raw value.
func ApplyConversion(v float64, spec ConversionSpec) float64 {
	return v * spec.Factor()
}

// ConvertPoints returns a converted copy of points.
func ConvertPoints(points []MetricPoint, spec ConversionSpec) []MetricPoint {
	f := spec.Factor()
	out := make([]MetricPoint, len(points))
	for i, p := range points {
		out[i] = MetricPoint{Timestamp: p.Timestamp, Value: p.Value * f}
	}
	return out
}

// ToPercent returns 100*v/basis. A zero basis is treated as 1 so the result
// is always finite for finite inputs.
func ToPercent(v, basis float64) float64 {
	if basis == 0 {
		basis = 1
	}
	return 100 * v / basis
}

// PercentPoints returns a copy of points expressed as a percentage of basis.
func PercentPoints(points []MetricPoint, basis float64) []MetricPoint {
	out := make([]MetricPoint, len(points))
	for i, p := range points {
		out[i] = MetricPoint{Timestamp: p.Timestamp, Value: ToPercent(p.Value, basis)}
	}
	return out
}

// BasisKind selects the denominator for percentage mode.
type BasisKind string

const (
	// BasisGlobal divides by the server-wide total across all players.
	BasisGlobal BasisKind = "global"
	// BasisEntity divides by a single selected player's total.
	BasisEntity BasisKind = "entity"
)

// BasisInstant selects the instant the basis total is taken at.
type BasisInstant string

const (
	// InstantWindowEnd uses the end of the visible window.
	InstantWindowEnd BasisInstant = "window_end"
	// InstantRank uses the instant last clicked on the chart.
	InstantRank BasisInstant = "rank_instant"
)

// PercentSpec configures percentage normalization.
type PercentSpec struct {
	Enabled  bool         `json:"enabled"`
	Basis    BasisKind    `json:"basis"`
	EntityID string       `json:"entity_id,omitempty"`
	Instant  BasisInstant `json:"instant,omitempty"`
}
