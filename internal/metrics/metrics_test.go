// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

type labelledErr struct{ reason string }

func (e labelledErr) Error() string  { return "labelled: " + e.reason }
func (e labelledErr) Reason() string { return e.reason }

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	m, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T is not a metric", o)
	}
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return out.GetHistogram().GetSampleCount()
}

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(StatsFetchErrors.WithLabelValues("leaderboard", "timeout"))
	beforeOther := testutil.ToFloat64(StatsFetchErrors.WithLabelValues("leaderboard", "other"))
	beforeCount := histogramCount(t, StatsFetchDuration.WithLabelValues("leaderboard"))

	RecordFetch("leaderboard", 20*time.Millisecond, nil)
	RecordFetch("leaderboard", 20*time.Millisecond, labelledErr{reason: "timeout"})
	RecordFetch("leaderboard", 20*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(StatsFetchErrors.WithLabelValues("leaderboard", "timeout")) - before; got != 1 {
		t.Errorf("timeout errors delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(StatsFetchErrors.WithLabelValues("leaderboard", "other")) - beforeOther; got != 1 {
		t.Errorf("other errors delta = %v, want 1", got)
	}
	if got := histogramCount(t, StatsFetchDuration.WithLabelValues("leaderboard")) - beforeCount; got != 3 {
		t.Errorf("duration samples delta = %d, want 3", got)
	}
}

func TestRecordRankLookup(t *testing.T) {
	hits := testutil.ToFloat64(RankCacheHits)
	misses := testutil.ToFloat64(RankCacheMisses)

	RecordRankLookup(true)
	RecordRankLookup(false)
	RecordRankLookup(false)

	if got := testutil.ToFloat64(RankCacheHits) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RankCacheMisses) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/health", "200"))
	RecordAPIRequest("GET", "/health", 200, time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/health", "200")) - before; got != 1 {
		t.Errorf("requests delta = %v, want 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests) - start; got != 1 {
		t.Errorf("active delta = %v, want 1", got)
	}
	TrackActiveRequest(false)
}

func TestRecordRecompute(t *testing.T) {
	before := histogramCount(t, RecomputeDuration.WithLabelValues("viewport"))
	RecordRecompute("viewport", time.Millisecond)
	if got := histogramCount(t, RecomputeDuration.WithLabelValues("viewport")) - before; got != 1 {
		t.Errorf("recompute samples delta = %d, want 1", got)
	}
}
