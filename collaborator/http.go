package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stepchain/stepchain/config"
)

// ============================================================================
// HTTP COLLABORATOR - Call external agents over HTTP
// ============================================================================

// HTTPCollaborator invokes an external agent over HTTP. The request payload
// is POSTed as a JSON object and the response body is decoded as the result
// document.
type HTTPCollaborator struct {
	name       string
	url        string
	httpClient *http.Client
	auth       *AuthCredentials
}

// AuthCredentials contains authentication information
type AuthCredentials struct {
	Type         string // "bearer", "apiKey"
	Token        string
	APIKey       string
	APIKeyHeader string // Header name for API key (default: "X-API-Key")
}

// HTTPConfig contains configuration for an HTTP collaborator
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Auth    *AuthCredentials
}

// NewHTTPCollaborator creates a new HTTP collaborator client
func NewHTTPCollaborator(name string, cfg *HTTPConfig) *HTTPCollaborator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &HTTPCollaborator{
		name: name,
		url:  cfg.URL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		auth: cfg.Auth,
	}
}

// NewHTTPCollaboratorFromConfig creates an HTTP collaborator from configuration
func NewHTTPCollaboratorFromConfig(name string, cfg *config.CollaboratorConfig) *HTTPCollaborator {
	var auth *AuthCredentials
	if cfg.Auth.Type != "" {
		auth = &AuthCredentials{
			Type:         cfg.Auth.Type,
			Token:        cfg.Auth.Token,
			APIKey:       cfg.Auth.APIKey,
			APIKeyHeader: cfg.Auth.APIKeyHeader,
		}
	}

	return NewHTTPCollaborator(name, &HTTPConfig{
		URL:     cfg.URL,
		Timeout: cfg.Timeout.Duration(),
		Auth:    auth,
	})
}

// Name implements Collaborator.Name
func (c *HTTPCollaborator) Name() string {
	return c.name
}

// Invoke implements Collaborator.Invoke
func (c *HTTPCollaborator) Invoke(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewInvocationError(c.name, "invoke", "failed to encode payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, NewInvocationError(c.name, "invoke", "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewInvocationError(c.name, "invoke", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, NewInvocationError(c.name, "invoke",
			fmt.Sprintf("unexpected status %s - %s", resp.Status, string(respBody)), nil)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, NewInvocationError(c.name, "invoke", "failed to decode result", err)
	}

	return result, nil
}

// setAuthHeaders adds authentication headers to a request
func (c *HTTPCollaborator) setAuthHeaders(req *http.Request) {
	if c.auth == nil {
		return
	}

	switch c.auth.Type {
	case "bearer":
		if c.auth.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.auth.Token)
		}
	case "apiKey":
		if c.auth.APIKey != "" {
			header := c.auth.APIKeyHeader
			if header == "" {
				header = "X-API-Key"
			}
			req.Header.Set(header, c.auth.APIKey)
		}
	}
}
