package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/importer"
)

// errPermanent marks responses that retrying cannot fix.
var errPermanent = errors.New("permanent upload failure")

// Client sends exports to an ironlog server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a client for the ironlog server at serverURL. apiKey is
// sent as X-API-Key.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// maxRetries is the number of retries after the first upload attempt.
const maxRetries = 3

// UploadAlpha POSTs an Alpha Progression CSV export to the import endpoint.
// Network errors and 5xx responses are retried up to maxRetries times with
// exponential backoff; other failures are returned at once.
func (c *Client) UploadAlpha(ctx context.Context, export []byte) (importer.Stats, error) {
	var lastErr error
	for attempt := range maxRetries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return importer.Stats{}, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		stats, err := c.post(ctx, export)
		if err == nil {
			return stats, nil
		}
		if errors.Is(err, errPermanent) || ctx.Err() != nil {
			return importer.Stats{}, err
		}
		lastErr = err
	}
	return importer.Stats{}, fmt.Errorf("after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, export []byte) (importer.Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/import/alpha", bytes.NewReader(export))
	if err != nil {
		return importer.Stats{}, fmt.Errorf("%w: creating request: %w", errPermanent, err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return importer.Stats{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusInternalServerError:
		return importer.Stats{}, fmt.Errorf("import failed (status %d): %s", resp.StatusCode, body)
	default:
		return importer.Stats{}, fmt.Errorf("%w: status %d: %s", errPermanent, resp.StatusCode, body)
	}

	var stats importer.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return importer.Stats{}, fmt.Errorf("%w: decoding stats: %w", errPermanent, err)
	}
	return stats, nil
}
