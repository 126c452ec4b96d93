// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package rank

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// NormalizeIDs lower-cases and trims ids, drops blanks and duplicates and
// sorts the result, so that two selections naming the same set compare
// equal regardless of order.
func NormalizeIDs(ids []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string {
		return strings.ToLower(strings.TrimSpace(id))
	})))
	sort.Strings(out)
	return out
}

// SameSet reports whether a and b name the same ids after normalisation.
func SameSet(a, b []string) bool {
	na, nb := NormalizeIDs(a), NormalizeIDs(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

// Key identifies one leaderboard lookup: "ts|metrics|sources" with both
// sets normalised and comma joined.
func Key(ts int64, metricIDs, sourceIDs []string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte('|')
	b.WriteString(strings.Join(NormalizeIDs(metricIDs), ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(NormalizeIDs(sourceIDs), ","))
	return b.String()
}
