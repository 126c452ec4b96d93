// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

// Package models defines the wire types exchanged with the statistics API
// and with dashboard clients.
package models

import (
	"github.com/tomtom215/craftstats/internal/timeseries"
)

// FetchParams selects what the statistics API returns.
//
// EntityIDs are player UUIDs, MetricIDs are statistic keys such as
// "minecraft:custom/minecraft:play_time", SourceIDs name the server
// instances the data was collected from. Start and End bound series
// queries; At and Limit are used by leaderboard queries.
type FetchParams struct {
	EntityIDs   []string               `json:"entity_ids,omitempty"`
	MetricIDs   []string               `json:"metric_ids"`
	SourceIDs   []string               `json:"source_ids,omitempty"`
	Granularity timeseries.Granularity `json:"granularity,omitempty"`
	Start       *int64                 `json:"start,omitempty"`
	End         *int64                 `json:"end,omitempty"`
	At          *int64                 `json:"at,omitempty"`
	Limit       int                    `json:"limit,omitempty"`
}

// SeriesResponse is the body of the delta and total endpoints.
type SeriesResponse struct {
	Series timeseries.SparseSeries `json:"series"`
}

// RankEntry is one row of a leaderboard.
type RankEntry struct {
	EntityID string  `json:"entity_id"`
	Name     string  `json:"name,omitempty"`
	Value    float64 `json:"value"`
}

// LeaderboardResponse is the body of the leaderboard endpoint. Total is the
// server-wide sum across every player for the requested metrics and
// sources at instant At; it is not limited by Limit.
type LeaderboardResponse struct {
	At      int64       `json:"at"`
	Total   float64     `json:"total"`
	Entries []RankEntry `json:"entries"`
}
