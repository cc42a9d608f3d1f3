// Package restclient implements the workout table backend against a
// PostgREST-style hosted API (/rest/v1/<table> with eq./in. filters).
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a filtered request matches no row.
var ErrNotFound = errors.New("not found")

// Client talks to the hosted tables.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// New creates a Client for baseURL (without the /rest/v1 suffix). A zero
// timeout leaves requests bounded only by their context.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// request describes one table call.
type request struct {
	method string
	table  string
	params url.Values
	body   any
	prefer string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + "/rest/v1/" + r.table
	if len(r.params) > 0 {
		u += "?" + r.params.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("restclient: encode %s body: %w", r.table, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("restclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("restclient: %s %s: %w", r.method, r.table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("restclient: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("restclient: %s %s returned %d: %s", r.method, r.table, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("restclient: decode %s: %w", r.table, err)
	}
	return nil
}

func eq(v any) string { return fmt.Sprintf("eq.%v", v) }

func in(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "in.(" + strings.Join(parts, ",") + ")"
}

// withParent encodes row as a JSON object and adds the parent foreign key.
func withParent(row any, parentCol string, parentID uuid.UUID) (map[string]any, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m[parentCol] = parentID
	return m, nil
}

// decodeChildren decodes rows and hands each row's parent id to setParent.
func decodeChildren[T any](raw []json.RawMessage, parentCol string, setParent func(*T, uuid.UUID)) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		var cols map[string]json.RawMessage
		if err := json.Unmarshal(r, &cols); err != nil {
			return nil, err
		}
		var parent uuid.UUID
		if p, ok := cols[parentCol]; ok {
			if err := json.Unmarshal(p, &parent); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", parentCol, err)
			}
		}
		setParent(&v, parent)
		out = append(out, v)
	}
	return out, nil
}
