// Package registry talks to the external file registry service.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Client implements the Registry port over HTTP JSON. Every method is a
// single synchronous call; the pipeline treats failures as warnings, never as
// request failures.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a registry client. An empty endpoint yields a client whose
// calls all fail, which the pipeline degrades to warnings.
func NewClient(settings domain.RegistrySettings) *Client {
	timeout := domain.DefaultRegistryTimeout
	if settings.TimeoutSeconds > 0 {
		timeout = time.Duration(settings.TimeoutSeconds) * time.Second
	}
	return &Client{
		endpoint:   strings.TrimRight(settings.Endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c.endpoint != ""
}

// List returns all registered files.
func (c *Client) List(ctx context.Context) ([]domain.RegistryFile, error) {
	var files []domain.RegistryFile
	if err := c.get(ctx, "/files", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// GetInfo returns one registry entry by id.
func (c *Client) GetInfo(ctx context.Context, id string) (domain.RegistryFile, error) {
	var file domain.RegistryFile
	if err := c.get(ctx, "/files/"+url.PathEscape(id), &file); err != nil {
		return domain.RegistryFile{}, err
	}
	return file, nil
}

// Register records a produced output with the registry.
func (c *Client) Register(ctx context.Context, path string, metadata map[string]string) (domain.RegistryFile, error) {
	if !c.Enabled() {
		return domain.RegistryFile{}, fmt.Errorf("registry endpoint not configured")
	}

	body, err := json.Marshal(domain.RegistryFile{Path: path, Metadata: metadata})
	if err != nil {
		return domain.RegistryFile{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/files", bytes.NewReader(body))
	if err != nil {
		return domain.RegistryFile{}, err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RegistryFile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.RegistryFile{}, fmt.Errorf("registry: %s", resp.Status)
	}

	var registered domain.RegistryFile
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return domain.RegistryFile{}, err
	}
	return registered, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if !c.Enabled() {
		return fmt.Errorf("registry endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("registry: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ ports.Registry = (*Client)(nil)
