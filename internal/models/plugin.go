// Package models defines the plugin registry data model: the versioned
// manifest document submitted by plugin authors, the stored record derived
// from it, and the aggregate statistics projected over the registry.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PluginPort describes one input or output of a plugin. All fields are
// free-form; media types are not checked against any registry.
type PluginPort struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MediaType   string `json:"media_type,omitempty"`
}

// PluginManifest is the declarative description of a plugin's identity,
// capabilities and I/O contract. A plugin is addressed by its (name, version)
// pair; every version is an independent record.
//
// Provenance and Resources are opaque documents: the registry stores and
// round-trips them without interpreting their contents.
type PluginManifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Authors     []string        `json:"authors"`
	Entrypoint  string          `json:"entrypoint"`
	Inputs      []PluginPort    `json:"inputs"`
	Outputs     []PluginPort    `json:"outputs"`
	Tags        []string        `json:"tags"`
	Provenance  json.RawMessage `json:"provenance"`
	Resources   json.RawMessage `json:"resources,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate checks the manifest against the required shape. It does not
// inspect entrypoint syntax, media types, or the opaque provenance and
// resources documents.
func (m *PluginManifest) Validate() error {
	if m == nil {
		return errors.New("manifest is nil")
	}
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("manifest name is required")
	}
	if strings.TrimSpace(m.Version) == "" {
		return errors.New("manifest version is required")
	}
	if strings.TrimSpace(m.Entrypoint) == "" {
		return errors.New("manifest entrypoint is required")
	}
	if m.CreatedAt.IsZero() {
		return errors.New("manifest created_at is required")
	}
	if m.UpdatedAt.IsZero() {
		return errors.New("manifest updated_at is required")
	}
	for i, port := range m.Inputs {
		if strings.TrimSpace(port.Name) == "" {
			return fmt.Errorf("input %d: port name is required", i)
		}
	}
	for i, port := range m.Outputs {
		if strings.TrimSpace(port.Name) == "" {
			return fmt.Errorf("output %d: port name is required", i)
		}
	}
	return nil
}

// StoredPlugin is a persisted registry record: the indexed manifest fields
// plus the store-assigned ID and the registry-maintained freshness marker.
// The Manifest blob retains the full document exactly as received and is the
// source of truth for the opaque fields.
type StoredPlugin struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Entrypoint  string          `json:"entrypoint"`
	Authors     []string        `json:"authors"`
	Tags        []string        `json:"tags"`
	Manifest    json.RawMessage `json:"manifest"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	LatestRunAt time.Time       `json:"latest_run_at"`
}

// Summary returns the listing projection of the record.
func (p *StoredPlugin) Summary() PluginSummary {
	return PluginSummary{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		Tags:        p.Tags,
		LatestRunAt: p.LatestRunAt,
	}
}

// PluginSummary is the compact listing view of a stored plugin.
type PluginSummary struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	LatestRunAt time.Time `json:"latest_run_at"`
}

// TagUsage reports how many records carry a given tag.
type TagUsage struct {
	Tag        string `json:"tag"`
	UsageCount int    `json:"usage_count"`
}

// RegistryStats is the aggregate view over the full registry. Every version
// of every name counts separately in TotalPlugins. MostRecentUpdate is nil
// for an empty registry.
type RegistryStats struct {
	TotalPlugins     int        `json:"total_plugins"`
	UniqueAuthors    int        `json:"unique_authors"`
	UniqueTags       int        `json:"unique_tags"`
	MostRecentUpdate *time.Time `json:"most_recent_update,omitempty"`
	TopTags          []TagUsage `json:"top_tags"`
}
