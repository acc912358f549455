// Package repository implements the plugin registry store: keyed persistence
// of versioned plugin manifests with upsert, latest-version resolution,
// deletion and aggregate statistics.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pgip-dev/pgip/internal/database"
	"github.com/pgip-dev/pgip/internal/models"
)

// ErrNotFound is returned when no record matches the requested identity.
// Callers treat it as an absent result, not a failure.
var ErrNotFound = errors.New("plugin not found")

// timeLayout is a fixed-width RFC 3339 variant. Values are normalized to UTC
// before formatting so that lexicographic order of the stored strings equals
// chronological order on every backend.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const pluginColumns = `id, name, version, description, entrypoint, authors, tags, manifest, created_at, updated_at, latest_run_at`

// PluginRepository handles database operations for plugin manifests.
type PluginRepository struct {
	db *sql.DB
}

// NewPluginRepository creates a new plugin repository.
func NewPluginRepository(db *sql.DB) *PluginRepository {
	return &PluginRepository{db: db}
}

// List retrieves all stored plugins ordered by most recent update. Records
// sharing an updated_at are ordered by insertion sequence (store-assigned id).
func (r *PluginRepository) List(ctx context.Context) ([]*models.StoredPlugin, error) {
	query := database.ConvertPlaceholders(`
		SELECT ` + pluginColumns + `
		FROM plugin
		ORDER BY updated_at DESC, id ASC
	`)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	defer rows.Close()

	var plugins []*models.StoredPlugin
	for rows.Next() {
		p, err := scanPlugin(rows)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}

	return plugins, rows.Err()
}

// Get fetches a plugin by name and optional version. An empty version
// resolves to the latest version of the name: the record with the greatest
// updated_at, ties broken by the lexicographically greatest version string.
// Returns ErrNotFound when no record matches.
func (r *PluginRepository) Get(ctx context.Context, name, version string) (*models.StoredPlugin, error) {
	var query string
	var args []any
	if version != "" {
		query = database.ConvertPlaceholders(`
			SELECT ` + pluginColumns + `
			FROM plugin
			WHERE name = ? AND version = ?
		`)
		args = []any{name, version}
	} else {
		query = database.ConvertPlaceholders(`
			SELECT ` + pluginColumns + `
			FROM plugin
			WHERE name = ?
			ORDER BY updated_at DESC, version DESC
			LIMIT 1
		`)
		args = []any{name}
	}

	p, err := scanPlugin(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert inserts or fully replaces the record addressed by the manifest's
// (name, version) identity. Every mutable field is overwritten with the
// incoming value; latest_run_at is set to the manifest's updated_at. The
// write runs in a single transaction with last-writer-wins semantics, so a
// failed write leaves prior state untouched.
func (r *PluginRepository) Upsert(ctx context.Context, manifest *models.PluginManifest) (*models.StoredPlugin, error) {
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	payload, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	authors, err := json.Marshal(stringsOrEmpty(manifest.Authors))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize authors: %w", err)
	}
	tags, err := json.Marshal(stringsOrEmpty(manifest.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tags: %w", err)
	}

	createdAt := formatTime(manifest.CreatedAt)
	updatedAt := formatTime(manifest.UpdatedAt)
	latestRunAt := updatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Existence is decided by a select, not by the UPDATE's RowsAffected:
	// MySQL reports rows changed rather than rows matched, so re-registering
	// an unchanged manifest would report zero and wrongly take the insert
	// branch.
	var existingID int64
	exists := true
	lookup := database.ConvertPlaceholders(`
		SELECT id FROM plugin WHERE name = ? AND version = ?
	`)
	if err := tx.QueryRowContext(ctx, lookup, manifest.Name, manifest.Version).Scan(&existingID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up plugin: %w", err)
		}
		exists = false
	}

	if exists {
		update := database.ConvertPlaceholders(`
			UPDATE plugin
			SET description = ?, entrypoint = ?, authors = ?, tags = ?, manifest = ?,
			    created_at = ?, updated_at = ?, latest_run_at = ?
			WHERE name = ? AND version = ?
		`)
		if _, err := tx.ExecContext(ctx, update,
			manifest.Description, manifest.Entrypoint, authors, tags, payload,
			createdAt, updatedAt, latestRunAt,
			manifest.Name, manifest.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to update plugin: %w", err)
		}
	} else {
		insert := database.ConvertPlaceholders(`
			INSERT INTO plugin (name, version, description, entrypoint, authors, tags, manifest, created_at, updated_at, latest_run_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if _, err := tx.ExecContext(ctx, insert,
			manifest.Name, manifest.Version, manifest.Description, manifest.Entrypoint,
			authors, tags, payload, createdAt, updatedAt, latestRunAt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert plugin: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit plugin upsert: %w", err)
	}

	return r.Get(ctx, manifest.Name, manifest.Version)
}

// Delete removes the exact (name, version) record. It reports whether a
// record was removed; deleting an absent record is not an error.
func (r *PluginRepository) Delete(ctx context.Context, name, version string) (bool, error) {
	query := database.ConvertPlaceholders(`
		DELETE FROM plugin WHERE name = ? AND version = ?
	`)

	result, err := r.db.ExecContext(ctx, query, name, version)
	if err != nil {
		return false, fmt.Errorf("failed to delete plugin: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Stats aggregates registry statistics over all stored plugins. The
// aggregation iterates the List ordering (updated_at descending, id
// ascending), so tag-ranking ties resolve to the first-encountered tag in
// that order and repeated calls with no intervening writes are stable. The
// snapshot is a single SELECT; no cross-statement read skew is possible.
func (r *PluginRepository) Stats(ctx context.Context) (*models.RegistryStats, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.RegistryStats{
		TotalPlugins: len(records),
		TopTags:      []models.TagUsage{},
	}
	if len(records) == 0 {
		return stats, nil
	}

	tagCounts := make(map[string]int)
	tagOrder := make(map[string]int)
	authors := make(map[string]struct{})
	var mostRecent time.Time

	for _, record := range records {
		for _, tag := range record.Tags {
			if _, seen := tagCounts[tag]; !seen {
				tagOrder[tag] = len(tagOrder)
			}
			tagCounts[tag]++
		}
		for _, author := range record.Authors {
			authors[author] = struct{}{}
		}
		if record.UpdatedAt.After(mostRecent) {
			mostRecent = record.UpdatedAt
		}
	}

	ranked := make([]string, 0, len(tagCounts))
	for tag := range tagCounts {
		ranked = append(ranked, tag)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if tagCounts[ranked[i]] != tagCounts[ranked[j]] {
			return tagCounts[ranked[i]] > tagCounts[ranked[j]]
		}
		return tagOrder[ranked[i]] < tagOrder[ranked[j]]
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	for _, tag := range ranked {
		stats.TopTags = append(stats.TopTags, models.TagUsage{Tag: tag, UsageCount: tagCounts[tag]})
	}

	stats.UniqueAuthors = len(authors)
	stats.UniqueTags = len(tagCounts)
	stats.MostRecentUpdate = &mostRecent

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlugin(row rowScanner) (*models.StoredPlugin, error) {
	var (
		p          models.StoredPlugin
		authorsRaw []byte
		tagsRaw    []byte
		manifest   []byte
		createdAt  string
		updatedAt  string
		latestRun  string
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.Version, &p.Description, &p.Entrypoint,
		&authorsRaw, &tagsRaw, &manifest, &createdAt, &updatedAt, &latestRun,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(authorsRaw, &p.Authors); err != nil {
		return nil, fmt.Errorf("failed to parse authors for %s/%s: %w", p.Name, p.Version, err)
	}
	if err := json.Unmarshal(tagsRaw, &p.Tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags for %s/%s: %w", p.Name, p.Version, err)
	}
	p.Manifest = json.RawMessage(manifest)

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s/%s: %w", p.Name, p.Version, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for %s/%s: %w", p.Name, p.Version, err)
	}
	if p.LatestRunAt, err = parseTime(latestRun); err != nil {
		return nil, fmt.Errorf("failed to parse latest_run_at for %s/%s: %w", p.Name, p.Version, err)
	}

	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
