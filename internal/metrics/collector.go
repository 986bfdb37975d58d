// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/bitdex/bitdex/internal/models"
)

const collectTimeout = 10 * time.Second

// IndexCollector exports index-wide totals on every scrape.
type IndexCollector struct {
	torrents   *models.TorrentStore
	users      *models.UserStore
	categories *models.CategoryStore

	torrentsTotalDesc    *prometheus.Desc
	usersTotalDesc       *prometheus.Desc
	categoryTorrentsDesc *prometheus.Desc
}

func NewIndexCollector(torrents *models.TorrentStore, users *models.UserStore, categories *models.CategoryStore) *IndexCollector {
	return &IndexCollector{
		torrents:   torrents,
		users:      users,
		categories: categories,

		torrentsTotalDesc: prometheus.NewDesc(
			"bitdex_torrents_total",
			"Total number of indexed torrents",
			nil,
			nil,
		),
		usersTotalDesc: prometheus.NewDesc(
			"bitdex_users_total",
			"Total number of registered users",
			nil,
			nil,
		),
		categoryTorrentsDesc: prometheus.NewDesc(
			"bitdex_category_torrents",
			"Number of torrents per category",
			[]string{"category"},
			nil,
		),
	}
}

func (c *IndexCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.torrentsTotalDesc
	ch <- c.usersTotalDesc
	ch <- c.categoryTorrentsDesc
}

func (c *IndexCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	if total, err := c.torrents.Count(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(c.torrentsTotalDesc, prometheus.GaugeValue, float64(total))
	} else {
		log.Error().Err(err).Msg("Failed to count torrents for metrics")
	}

	if total, err := c.users.Count(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(c.usersTotalDesc, prometheus.GaugeValue, float64(total))
	} else {
		log.Error().Err(err).Msg("Failed to count users for metrics")
	}

	categories, err := c.categories.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list categories for metrics")
		return
	}
	for _, category := range categories {
		ch <- prometheus.MustNewConstMetric(c.categoryTorrentsDesc, prometheus.GaugeValue, float64(category.NumTorrents), category.Name)
	}
}
