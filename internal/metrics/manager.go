// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/bitdex/bitdex/internal/models"
)

type Manager struct {
	registry       *prometheus.Registry
	indexCollector *IndexCollector
}

func NewManager(torrents *models.TorrentStore, users *models.UserStore, categories *models.CategoryStore) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	indexCollector := NewIndexCollector(torrents, users, categories)
	registry.MustRegister(indexCollector)

	log.Info().Msg("Metrics manager initialized with index collector")

	return &Manager{
		registry:       registry,
		indexCollector: indexCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
