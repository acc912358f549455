package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/pgip-dev/pgip/internal/models"
)

//go:embed manifest_schema.json
var manifestSchemaJSON string

// SeedLoader bulk-loads plugin manifests from a directory of JSON or YAML
// documents. Every document is validated against the manifest JSON Schema
// before it reaches the store; loading goes through the normal Upsert path
// with no privileged access.
type SeedLoader struct {
	dir    string
	repo   *PluginRepository
	logger *slog.Logger
	schema *gojsonschema.Schema

	// Hot reload
	watcher  *fsnotify.Watcher
	watchMu  sync.Mutex
	debounce map[string]*time.Timer
}

// NewSeedLoader creates a loader for the given manifest directory.
func NewSeedLoader(dir string, repo *PluginRepository, logger *slog.Logger) (*SeedLoader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(manifestSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}
	return &SeedLoader{
		dir:      dir,
		repo:     repo,
		logger:   logger,
		schema:   schema,
		debounce: make(map[string]*time.Timer),
	}, nil
}

// SeedIfEmpty loads every valid manifest from the directory when, and only
// when, the store holds no records at all. A store with even one record of
// any name skips seeding entirely. Documents that fail validation are logged
// and skipped; one bad document never aborts the rest. Returns the number of
// manifests inserted.
//
// The empty check and the subsequent writes are not atomic across processes;
// startup is assumed to be single-writer.
func (l *SeedLoader) SeedIfEmpty(ctx context.Context) (int, error) {
	existing, err := l.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to check registry contents: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	manifests := l.loadManifests()

	inserted := 0
	for _, manifest := range manifests {
		if _, err := l.repo.Upsert(ctx, manifest); err != nil {
			return inserted, fmt.Errorf("failed to seed plugin %s/%s: %w", manifest.Name, manifest.Version, err)
		}
		inserted++
	}
	return inserted, nil
}

// loadManifests reads and validates every manifest document in the seed
// directory, in sorted filename order. All file reads happen here, before any
// store mutation.
func (l *SeedLoader) loadManifests() []*models.PluginManifest {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.logger.Warn("plugin manifest directory not readable", "path", l.dir, "error", err)
		return nil
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isManifestFile(entry.Name()) {
			paths = append(paths, filepath.Join(l.dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	var manifests []*models.PluginManifest
	for _, path := range paths {
		manifest, err := l.loadManifestFile(path)
		if err != nil {
			l.logger.Warn("skipping invalid plugin manifest", "path", path, "error", err)
			continue
		}
		manifests = append(manifests, manifest)
	}
	return manifests
}

// loadManifestFile reads a single manifest document, validates it against the
// JSON Schema, and decodes it into the manifest model.
func (l *SeedLoader) loadManifestFile(path string) (*models.PluginManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert YAML document: %w", err)
		}
	}

	result, err := l.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return nil, fmt.Errorf("manifest schema violation: %s", strings.Join(reasons, "; "))
	}

	manifest := &models.PluginManifest{}
	if err := json.Unmarshal(raw, manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Watch re-registers manifests when files in the seed directory change.
// Unlike SeedIfEmpty this runs against a populated store: changed documents
// flow through the same validated Upsert path. Returns after the watcher is
// installed; events are handled until ctx is cancelled.
func (l *SeedLoader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create manifest watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}
	l.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if !isManifestFile(filepath.Base(event.Name)) {
					continue
				}
				l.scheduleReload(ctx, event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("manifest watcher error", "error", err)
			}
		}
	}()
	return nil
}

// scheduleReload debounces rapid successive writes to the same file.
func (l *SeedLoader) scheduleReload(ctx context.Context, path string) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()

	if timer, ok := l.debounce[path]; ok {
		timer.Stop()
	}
	l.debounce[path] = time.AfterFunc(500*time.Millisecond, func() {
		l.watchMu.Lock()
		delete(l.debounce, path)
		l.watchMu.Unlock()

		manifest, err := l.loadManifestFile(path)
		if err != nil {
			l.logger.Warn("ignoring changed manifest", "path", path, "error", err)
			return
		}
		if _, err := l.repo.Upsert(ctx, manifest); err != nil {
			l.logger.Error("failed to re-register changed manifest",
				"path", path, "name", manifest.Name, "version", manifest.Version, "error", err)
			return
		}
		l.logger.Info("re-registered changed manifest", "name", manifest.Name, "version", manifest.Version)
	})
}

func isManifestFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
