package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pgip-dev/pgip/internal/models"
)

// apiClient is a thin HTTP client for the registry API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) get(path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	resp, err := c.http.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

// ListPlugins fetches the summary listing.
func (c *apiClient) ListPlugins() ([]models.PluginSummary, error) {
	body, err := c.get("/api/v1/plugins", nil)
	if err != nil {
		return nil, err
	}
	var summaries []models.PluginSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return summaries, nil
}

// GetPlugin fetches the full manifest document, latest version when version
// is empty.
func (c *apiClient) GetPlugin(name, version string) (json.RawMessage, error) {
	query := url.Values{}
	if version != "" {
		query.Set("version", version)
	}
	return c.get("/api/v1/plugins/"+url.PathEscape(name), query)
}

// GetStats fetches aggregate registry statistics.
func (c *apiClient) GetStats() (*models.RegistryStats, error) {
	body, err := c.get("/api/v1/plugins/stats", nil)
	if err != nil {
		return nil, err
	}
	stats := &models.RegistryStats{}
	if err := json.Unmarshal(body, stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}
	return stats, nil
}

// RegisterPlugin submits a manifest document for registration.
func (c *apiClient) RegisterPlugin(manifest []byte) error {
	resp, err := c.http.Post(c.baseURL+"/api/v1/plugins", "application/json", bytes.NewReader(manifest))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError(resp.StatusCode, body)
	}
	return nil
}

// apiError decodes the registry's structured error payload, falling back to
// the raw body.
func apiError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Code != "" {
		return fmt.Errorf("%s (%s)", payload.Error.Message, payload.Error.Code)
	}
	return fmt.Errorf("API error: status %d: %s", status, strings.TrimSpace(string(body)))
}
