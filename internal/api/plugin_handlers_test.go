package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgip-dev/pgip/internal/database"
	"github.com/pgip-dev/pgip/internal/models"
	"github.com/pgip-dev/pgip/internal/repository"
	"github.com/pgip-dev/pgip/internal/routing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	database.SetDriver("sqlite3")
	require.NoError(t, database.EnsureSchema(context.Background(), db))

	return routing.NewRouter(routing.Options{
		Repo:           repository.NewPluginRepository(db),
		AllowedOrigins: []string{"*"},
		ServiceName:    "PanGenome Insight Platform",
		Version:        "test",
	})
}

func manifestBody(name, version, updatedAt string, tags ...string) []byte {
	if tags == nil {
		tags = []string{}
	}
	doc := map[string]any{
		"name":        name,
		"version":     version,
		"description": "Annotates variants",
		"authors":     []string{"PGIP Core Team"},
		"entrypoint":  "python -m pgip_plugins." + name,
		"inputs": []map[string]any{
			{"name": "variants", "description": "VCF slice to annotate", "media_type": "application/vnd.pgip.vcf"},
		},
		"outputs": []map[string]any{
			{"name": "annotations", "media_type": "application/vnd.pgip.annotation+jsonl"},
		},
		"tags": tags,
		"provenance": map[string]any{
			"container_image": "ghcr.io/pgip/" + name + ":" + version,
			"repository_url":  "https://github.com/pgip-dev/plugins",
			"reference":       "main",
		},
		"resources":  map[string]any{"memory": "4Gi", "cpu": "2"},
		"created_at": "2025-10-04T00:00:00Z",
		"updated_at": updatedAt,
	}
	raw, _ := json.Marshal(doc)
	return raw
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Error.Code
}

func TestRegisterAndFetchPlugin(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/plugins",
		manifestBody("frequency-aggregator", "0.1.0", "2025-10-04T00:00:00Z", "frequency", "baseline"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	t.Run("ExactVersion", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/plugins/frequency-aggregator?version=0.1.0", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var manifest models.PluginManifest
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &manifest))
		assert.Equal(t, "frequency-aggregator", manifest.Name)
		assert.Equal(t, "0.1.0", manifest.Version)
		// The opaque documents come back exactly as registered.
		assert.JSONEq(t,
			`{"container_image":"ghcr.io/pgip/frequency-aggregator:0.1.0","repository_url":"https://github.com/pgip-dev/plugins","reference":"main"}`,
			string(manifest.Provenance))
		assert.JSONEq(t, `{"memory":"4Gi","cpu":"2"}`, string(manifest.Resources))
	})

	t.Run("LatestVersion", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/plugins",
			manifestBody("frequency-aggregator", "0.2.0", "2025-10-05T00:00:00Z", "frequency"))
		require.Equal(t, http.StatusCreated, w.Code)

		w = doRequest(router, http.MethodGet, "/api/v1/plugins/frequency-aggregator", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var manifest models.PluginManifest
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &manifest))
		assert.Equal(t, "0.2.0", manifest.Version)
	})

	t.Run("UnknownPlugin", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/plugins/ghost", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "registry:not_found", errorCode(t, w.Body.Bytes()))
	})
}

func TestRegisterPluginValidation(t *testing.T) {
	router := setupRouter(t)

	t.Run("MalformedJSON", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/plugins", []byte("{not json"))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "registry:validation_failed", errorCode(t, w.Body.Bytes()))
	})

	t.Run("MissingRequiredField", func(t *testing.T) {
		body := manifestBody("incomplete", "", "2025-10-04T00:00:00Z")
		w := doRequest(router, http.MethodPost, "/api/v1/plugins", body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "registry:validation_failed", errorCode(t, w.Body.Bytes()))
	})

	t.Run("RejectedWriteLeavesStoreEmpty", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/plugins", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})
}

func TestListPlugins(t *testing.T) {
	router := setupRouter(t)

	for i, name := range []string{"older", "newer"} {
		updated := fmt.Sprintf("2025-10-0%dT00:00:00Z", i+4)
		w := doRequest(router, http.MethodPost, "/api/v1/plugins", manifestBody(name, "1.0.0", updated, "demo"))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(router, http.MethodGet, "/api/v1/plugins", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []models.PluginSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "newer", summaries[0].Name)
	assert.Equal(t, "older", summaries[1].Name)
	// Summaries never leak the entrypoint or full manifest.
	assert.NotContains(t, w.Body.String(), "entrypoint")
}

func TestDeletePlugin(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/plugins",
		manifestBody("victim", "1.0.0", "2025-10-04T00:00:00Z"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/plugins/victim/1.0.0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted": true}`, w.Body.String())

	// Second delete reports not found.
	w = doRequest(router, http.MethodDelete, "/api/v1/plugins/victim/1.0.0", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "registry:not_found", errorCode(t, w.Body.Bytes()))
}

func TestGetStats(t *testing.T) {
	t.Run("EmptyRegistry", func(t *testing.T) {
		router := setupRouter(t)

		w := doRequest(router, http.MethodGet, "/api/v1/plugins/stats", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var stats models.RegistryStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 0, stats.TotalPlugins)
		assert.Equal(t, 0, stats.UniqueAuthors)
		assert.Equal(t, 0, stats.UniqueTags)
		assert.Nil(t, stats.MostRecentUpdate)
		assert.Empty(t, stats.TopTags)
	})

	t.Run("PopulatedRegistry", func(t *testing.T) {
		router := setupRouter(t)

		w := doRequest(router, http.MethodPost, "/api/v1/plugins",
			manifestBody("a", "1.0.0", "2025-10-06T00:00:00Z", "x", "y"))
		require.Equal(t, http.StatusCreated, w.Code)
		w = doRequest(router, http.MethodPost, "/api/v1/plugins",
			manifestBody("b", "1.0.0", "2025-10-05T00:00:00Z", "x"))
		require.Equal(t, http.StatusCreated, w.Code)

		w = doRequest(router, http.MethodGet, "/api/v1/plugins/stats", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var stats models.RegistryStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 2, stats.TotalPlugins)
		assert.Equal(t, 1, stats.UniqueAuthors)
		assert.Equal(t, 2, stats.UniqueTags)
		require.NotEmpty(t, stats.TopTags)
		assert.Equal(t, models.TagUsage{Tag: "x", UsageCount: 2}, stats.TopTags[0])
	})
}

func TestServiceEndpoints(t *testing.T) {
	router := setupRouter(t)

	t.Run("Health", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
	})

	t.Run("Root", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"service": "PanGenome Insight Platform", "version": "test"}`, w.Body.String())
	})

	t.Run("Metrics", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "pgip_http_requests_total")
	})
}
