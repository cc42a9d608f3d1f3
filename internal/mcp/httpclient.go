package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the ironlog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale, which
// identifies the caller).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// get decodes a JSON response into out. A 404 yields ErrNotFound.
func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("httpclient: %s: %w", path, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) ListWorkouts(ctx context.Context, _ int) ([]models.Workout, error) {
	var ws []models.Workout
	if err := c.get(ctx, "/api/v1/workouts", &ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (c *HTTPClient) GetWorkout(ctx context.Context, _ int, id uuid.UUID) (models.Workout, error) {
	var w models.Workout
	if err := c.get(ctx, "/api/v1/workouts/"+id.String(), &w); err != nil {
		return models.Workout{}, err
	}
	return w, nil
}

func (c *HTTPClient) ActiveSession(ctx context.Context, _ int) (*models.WorkoutSession, error) {
	var s models.WorkoutSession
	err := c.get(ctx, "/api/v1/session", &s)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
