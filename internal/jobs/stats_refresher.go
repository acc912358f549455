// Package jobs runs the registry's background jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/pgip-dev/pgip/internal/repository"
)

var (
	registryPluginsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pgip_registry_plugins_total",
		Help: "Number of stored plugin records (every version counts separately).",
	})
	registryUniqueAuthors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pgip_registry_unique_authors",
		Help: "Number of distinct authors across all plugin records.",
	})
	registryUniqueTags = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pgip_registry_unique_tags",
		Help: "Number of distinct tags across all plugin records.",
	})
)

// StatsRefresher periodically recomputes registry statistics and exports
// them as Prometheus gauges.
type StatsRefresher struct {
	repo   *repository.PluginRepository
	logger *slog.Logger
	cron   *cron.Cron
}

// NewStatsRefresher creates a refresher over the given repository.
func NewStatsRefresher(repo *repository.PluginRepository, logger *slog.Logger) *StatsRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsRefresher{repo: repo, logger: logger}
}

// Refresh recomputes the stats once and updates the gauges.
func (s *StatsRefresher) Refresh(ctx context.Context) error {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh registry stats: %w", err)
	}
	registryPluginsTotal.Set(float64(stats.TotalPlugins))
	registryUniqueAuthors.Set(float64(stats.UniqueAuthors))
	registryUniqueTags.Set(float64(stats.UniqueTags))
	return nil
}

// Start schedules the periodic refresh. A failing refresh logs and retries
// on the next tick; it never stops the schedule.
func (s *StatsRefresher) Start(interval time.Duration) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.logger.Error("registry stats refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stats refresh: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule. Safe to call when never started.
func (s *StatsRefresher) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
