// Package qdrant implements vectorstore.Index over Qdrant's REST API.
// It assumes cosine distance for all collections.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mfederowicz/bookrec/vectorstore"
)

const defaultTimeout = 15 * time.Second

// Config contains connection details for a Qdrant server.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Index is a minimal REST client to Qdrant.
type Index struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

var _ vectorstore.Index = (*Index)(nil)

// NewIndex creates a Qdrant client from the given configuration.
func NewIndex(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Index{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default().With("component", "qdrant"),
	}
}

// EnsureCollection creates the collection if absent. A collection that
// already exists, or appears concurrently between the existence check
// and the create call, is treated as success.
func (q *Index) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: %d", vectorstore.ErrInvalidDimension, dimension)
	}

	info, err := q.CollectionInfo(ctx, name)
	if err != nil {
		return err
	}
	if info != nil {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, err := q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", name), body, nil)
	if err != nil {
		return err
	}
	// 409 means another process created it first; that is the outcome
	// we wanted anyway.
	if status >= 300 && status != http.StatusConflict {
		return fmt.Errorf("%w: create collection %s: status %d", vectorstore.ErrUnavailable, name, status)
	}
	return nil
}

// CollectionInfo returns collection metadata, or nil when absent.
func (q *Index) CollectionInfo(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	status, err := q.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", name), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("%w: get collection %s: status %d", vectorstore.ErrUnavailable, name, status)
	}

	return &vectorstore.CollectionInfo{
		Name:        name,
		Dimension:   resp.Result.Config.Params.Vectors.Size,
		PointsCount: resp.Result.PointsCount,
	}, nil
}

// UpsertBatch inserts or overwrites points by id with wait=true, so a
// successful return means the points are durably applied.
func (q *Index) UpsertBatch(ctx context.Context, name string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}

	payload := make([]map[string]any, len(points))
	for i, p := range points {
		payload[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}

	body := map[string]any{"points": payload}
	status, err := q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", name), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("%w: upsert %d points into %s: status %d", vectorstore.ErrUnavailable, len(points), name, status)
	}
	return nil
}

// Search returns at most limit hits ordered by descending score.
func (q *Index) Search(ctx context.Context, name string, vector []float32, limit int, filter vectorstore.Filter) ([]vectorstore.Hit, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
		req["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	status, err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", name), req, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		// Missing collection reads as empty, not as failure
		return []vectorstore.Hit{}, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("%w: search %s: status %d", vectorstore.ErrUnavailable, name, status)
	}

	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vectorstore.Hit{
			ID:      fmt.Sprintf("%v", r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return hits, nil
}

// DeletePoint removes a point by id.
func (q *Index) DeletePoint(ctx context.Context, name string, id string) error {
	body := map[string]any{"points": []string{id}}
	status, err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", name), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("%w: delete point %s from %s: status %d", vectorstore.ErrUnavailable, id, name, status)
	}
	return nil
}

// DeleteCollection removes a collection.
func (q *Index) DeleteCollection(ctx context.Context, name string) error {
	status, err := q.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", name), nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("%w: delete collection %s: status %d", vectorstore.ErrUnavailable, name, status)
	}
	return nil
}

// do performs one HTTP request and decodes the response into out when
// given. Transport errors are wrapped as ErrUnavailable; HTTP status
// handling is left to the caller.
func (q *Index) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", vectorstore.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode %s %s: %w", vectorstore.ErrUnavailable, method, path, err)
		}
	}
	return resp.StatusCode, nil
}
