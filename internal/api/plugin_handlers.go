// Package api contains the HTTP handlers exposing the plugin registry.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgip-dev/pgip/internal/apierrors"
	"github.com/pgip-dev/pgip/internal/models"
	"github.com/pgip-dev/pgip/internal/repository"
)

// PluginHandlers serves the /api/v1/plugins routes.
type PluginHandlers struct {
	repo   *repository.PluginRepository
	logger *slog.Logger
}

// NewPluginHandlers creates the plugin handler set.
func NewPluginHandlers(repo *repository.PluginRepository, logger *slog.Logger) *PluginHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginHandlers{repo: repo, logger: logger}
}

// ListPlugins returns the summary projection of every stored plugin, most
// recently updated first.
func (h *PluginHandlers) ListPlugins(c *gin.Context) {
	plugins, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list plugins", "error", err)
		apierrors.Error(c, apierrors.CodeStorageUnavailable)
		return
	}

	summaries := make([]models.PluginSummary, 0, len(plugins))
	for _, p := range plugins {
		summaries = append(summaries, p.Summary())
	}
	c.JSON(http.StatusOK, summaries)
}

// GetPlugin returns the full manifest for a plugin. Without a ?version query
// parameter the latest version of the name is resolved. The response body is
// the stored manifest blob, byte-for-byte as registered.
func (h *PluginHandlers) GetPlugin(c *gin.Context) {
	name := c.Param("name")
	version := c.Query("version")

	plugin, err := h.repo.Get(c.Request.Context(), name, version)
	if errors.Is(err, repository.ErrNotFound) {
		apierrors.Error(c, apierrors.CodePluginNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get plugin", "name", name, "version", version, "error", err)
		apierrors.Error(c, apierrors.CodeStorageUnavailable)
		return
	}

	c.Data(http.StatusOK, "application/json", plugin.Manifest)
}

// RegisterPlugin inserts or replaces a plugin manifest. Registration is
// idempotent: the caller cannot tell a create from an update, the response is
// always the persisted manifest.
func (h *PluginHandlers) RegisterPlugin(c *gin.Context) {
	var manifest models.PluginManifest
	if err := c.ShouldBindJSON(&manifest); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "invalid manifest document: "+err.Error())
		return
	}
	if err := manifest.Validate(); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, err.Error())
		return
	}

	stored, err := h.repo.Upsert(c.Request.Context(), &manifest)
	if err != nil {
		h.logger.Error("failed to register plugin", "name", manifest.Name, "version", manifest.Version, "error", err)
		apierrors.Error(c, apierrors.CodeStorageUnavailable)
		return
	}

	h.logger.Info("registered plugin", "name", stored.Name, "version", stored.Version)
	c.Data(http.StatusCreated, "application/json", stored.Manifest)
}

// DeletePlugin removes an exact (name, version) record. Deleting an absent
// record reports not found rather than failing.
func (h *PluginHandlers) DeletePlugin(c *gin.Context) {
	name := c.Param("name")
	version := c.Param("version")

	found, err := h.repo.Delete(c.Request.Context(), name, version)
	if err != nil {
		h.logger.Error("failed to delete plugin", "name", name, "version", version, "error", err)
		apierrors.Error(c, apierrors.CodeStorageUnavailable)
		return
	}
	if !found {
		apierrors.Error(c, apierrors.CodePluginNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetStats returns aggregate statistics over the full registry. An empty
// registry is a valid state and yields zero counts.
func (h *PluginHandlers) GetStats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute registry stats", "error", err)
		apierrors.Error(c, apierrors.CodeStorageUnavailable)
		return
	}
	c.JSON(http.StatusOK, stats)
}
