// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package timeseries

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the nominal bucket width requested by the user.
type Granularity string

// Supported granularities. Month and year use fixed 30 and 365 day widths.
const (
	Granularity10m Granularity = "10m"
	Granularity30m Granularity = "30m"
	Granularity1h  Granularity = "1h"
	Granularity6h  Granularity = "6h"
	Granularity12h Granularity = "12h"
	Granularity1d  Granularity = "1d"
	Granularity1w  Granularity = "1w"
	Granularity1mo Granularity = "1mo"
	Granularity1y  Granularity = "1y"
)

const day = 24 * time.Hour

var granularityWidths = map[Granularity]time.Duration{
	Granularity10m: 10 * time.Minute,
	Granularity30m: 30 * time.Minute,
	Granularity1h:  time.Hour,
	Granularity6h:  6 * time.Hour,
	Granularity12h: 12 * time.Hour,
	Granularity1d:  day,
	Granularity1w:  7 * day,
	Granularity1mo: 30 * day,
	Granularity1y:  365 * day,
}

// Granularities lists every supported value from finest to coarsest.
func Granularities() []Granularity {
	return []Granularity{
		Granularity10m, Granularity30m, Granularity1h, Granularity6h, Granularity12h,
		Granularity1d, Granularity1w, Granularity1mo, Granularity1y,
	}
}

// ParseGranularity accepts the labels above, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := granularityWidths[g]; !ok {
		return "", fmt.Errorf("unknown granularity %q", s)
	}
	return g, nil
}

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	_, ok := granularityWidths[g]
	return ok
}

// Duration returns the nominal width, or 0 for an unknown granularity.
func (g Granularity) Duration() time.Duration {
	return granularityWidths[g]
}

// Seconds returns the nominal width in seconds, or 0 for an unknown granularity.
func (g Granularity) Seconds() int64 {
	return int64(granularityWidths[g] / time.Second)
}

// String implements fmt.Stringer.
func (g Granularity) String() string {
	return string(g)
}
