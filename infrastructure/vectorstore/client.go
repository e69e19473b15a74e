// Package vectorstore is a typed client for a Qdrant-compatible vector
// store over REST.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lensworks/lumen/domain/image"
	"github.com/lensworks/lumen/domain/search"
	"github.com/lensworks/lumen/internal/config"
)

// Client talks to one collection of the vector store. All calls are
// independent; the client holds no cross-call state beyond the HTTP client.
type Client struct {
	baseURL      string
	apiKey       string
	collection   string
	dimension    int
	maxRetries   int
	initialDelay time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a Client from configuration.
func NewClient(cfg config.StoreConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.URL(), "/"),
		apiKey:       cfg.APIKey(),
		collection:   cfg.Collection(),
		dimension:    cfg.Dimension(),
		maxRetries:   cfg.MaxRetries(),
		initialDelay: 500 * time.Millisecond,
		httpClient:   &http.Client{Timeout: cfg.Timeout()},
		logger:       logger,
	}
}

// Dimension returns the configured embedding dimension.
func (c *Client) Dimension() int { return c.dimension }

// EnsureCollection creates the collection with the configured dimension and
// cosine distance if it does not already exist.
func (c *Client) EnsureCollection(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, c.collectionURL(), nil)
	if err == nil && status == http.StatusOK {
		return nil
	}

	body := collectionCreateRequest{
		Vectors: vectorParams{Size: c.dimension, Distance: "Cosine"},
	}
	status, respBody, err := c.do(ctx, http.MethodPut, c.collectionURL(), body)
	if err != nil {
		return NewStoreError("create collection", 0, err.Error(), err)
	}
	if status != http.StatusOK {
		return NewStoreError("create collection", status, string(respBody), nil)
	}

	c.logger.Info("collection ready",
		slog.String("collection", c.collection),
		slog.Int("dimension", c.dimension),
	)
	return nil
}

// UpsertOne writes a single record. Vectors whose length does not match the
// configured dimension are rejected before any network call.
func (c *Client) UpsertOne(ctx context.Context, record image.IndexRecord) error {
	vector := record.Vector()
	if len(vector) != c.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), c.dimension)
	}

	req := upsertRequest{Points: []point{recordToPoint(record)}}
	return c.withRetry(ctx, func() error {
		status, body, err := c.do(ctx, http.MethodPut, c.pointsURL(""), req)
		if err != nil {
			return NewStoreError("upsert", 0, err.Error(), err)
		}
		if status != http.StatusOK {
			return NewStoreError("upsert", status, string(body), nil)
		}
		return nil
	})
}

// UpsertBatch writes records in chunks of batchSize, one network call per
// chunk. A failed chunk counts all of its records as failures and does not
// stop later chunks. Records with a wrong vector dimension fail locally
// without a network call.
func (c *Client) UpsertBatch(ctx context.Context, records []image.IndexRecord, batchSize int) (successCount, failureCount int) {
	if batchSize <= 0 {
		batchSize = config.DefaultStoreBatchSize
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		points := make([]point, 0, len(chunk))
		badDimension := 0
		for _, rec := range chunk {
			if len(rec.Vector()) != c.dimension {
				badDimension++
				continue
			}
			points = append(points, recordToPoint(rec))
		}
		failureCount += badDimension

		if len(points) == 0 {
			continue
		}

		req := upsertRequest{Points: points}
		err := c.withRetry(ctx, func() error {
			status, body, err := c.do(ctx, http.MethodPut, c.pointsURL(""), req)
			if err != nil {
				return NewStoreError("upsert batch", 0, err.Error(), err)
			}
			if status != http.StatusOK {
				return NewStoreError("upsert batch", status, string(body), nil)
			}
			return nil
		})
		if err != nil {
			failureCount += len(points)
			c.logger.Warn("batch chunk failed",
				slog.Int("chunk_size", len(points)),
				slog.String("error", err.Error()),
			)
			continue
		}
		successCount += len(points)
	}

	return successCount, failureCount
}

// Search returns the topK nearest records by cosine similarity, highest
// first.
func (c *Client) Search(ctx context.Context, vector []float64, topK int) ([]search.Hit, error) {
	return c.search(ctx, vector, topK, nil)
}

// HybridSearch combines pure vector nearest-neighbours with a
// metadata-filtered candidate set, fused by reciprocal rank fusion. An
// empty filter degrades to a plain vector search, as does a fusion that
// yields nothing when the vector search found hits.
func (c *Client) HybridSearch(ctx context.Context, vector []float64, filter search.Filter, topK int) ([]search.Hit, error) {
	if filter.IsEmpty() {
		return c.Search(ctx, vector, topK)
	}

	vectorHits, err := c.search(ctx, vector, topK, nil)
	if err != nil {
		return nil, err
	}

	filteredHits, err := c.search(ctx, vector, topK, filterToWire(filter))
	if err != nil {
		// Fall back to the vector-only candidates rather than failing the query.
		c.logger.Warn("filtered search failed, falling back to vector search",
			slog.String("error", err.Error()),
		)
		return vectorHits, nil
	}

	byID := make(map[string]search.Hit, len(vectorHits)+len(filteredHits))
	toCandidates := func(hits []search.Hit) []search.Candidate {
		out := make([]search.Candidate, len(hits))
		for i, h := range hits {
			byID[h.ID()] = h
			out[i] = search.NewCandidate(h.ID(), h.Score())
		}
		return out
	}

	fused := search.FuseTopK(topK, toCandidates(vectorHits), toCandidates(filteredHits))
	if len(fused) == 0 {
		return vectorHits, nil
	}

	hits := make([]search.Hit, 0, len(fused))
	for _, cand := range fused {
		orig := byID[cand.ID()]
		hits = append(hits, search.NewHit(cand.ID(), orig.Path(), cand.Score()))
	}
	return hits, nil
}

// DeleteByPath removes all records whose payload path equals path. Deleting
// a path that was never indexed is not an error.
func (c *Client) DeleteByPath(ctx context.Context, path string) error {
	req := deleteRequest{Filter: pathFilter(path)}
	return c.withRetry(ctx, func() error {
		status, body, err := c.do(ctx, http.MethodPost, c.pointsURL("/delete"), req)
		if err != nil {
			return NewStoreError("delete", 0, err.Error(), err)
		}
		if status != http.StatusOK {
			return NewStoreError("delete", status, string(body), nil)
		}
		return nil
	})
}

func (c *Client) search(ctx context.Context, vector []float64, topK int, filter *wireFilter) ([]search.Hit, error) {
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), c.dimension)
	}
	if topK <= 0 {
		topK = 10
	}

	req := searchRequest{
		Vector:      vector,
		Limit:       topK,
		WithPayload: true,
		Filter:      filter,
	}

	var resp searchResponse
	err := c.withRetry(ctx, func() error {
		status, body, err := c.do(ctx, http.MethodPost, c.pointsURL("/search"), req)
		if err != nil {
			return NewStoreError("search", 0, err.Error(), err)
		}
		if status != http.StatusOK {
			return NewStoreError("search", status, string(body), nil)
		}
		return json.Unmarshal(body, &resp)
	})
	if err != nil {
		return nil, err
	}

	hits := make([]search.Hit, 0, len(resp.Result))
	for _, p := range resp.Result {
		path, _ := p.Payload["path"].(string)
		hits = append(hits, search.NewHit(p.ID, path, p.Score))
	}
	return hits, nil
}

// do issues one HTTP request and returns status and body. A nil payload
// sends no body.
func (c *Client) do(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// withRetry retries fn with exponential backoff on retryable failures.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	delay := c.initialDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		case 0:
			// Transport-level failure without a status.
			return true
		}
	}
	return false
}

func (c *Client) collectionURL() string {
	return c.baseURL + "/collections/" + c.collection
}

func (c *Client) pointsURL(suffix string) string {
	return c.collectionURL() + "/points" + suffix
}

func recordToPoint(rec image.IndexRecord) point {
	return point{
		ID:      rec.ID(),
		Vector:  rec.Vector(),
		Payload: payloadToMap(rec.Payload()),
	}
}

// payloadToMap flattens the typed payload into the store's free-form
// payload map. Extra keys never shadow the typed core fields.
func payloadToMap(p image.Payload) map[string]any {
	out := make(map[string]any, 8+len(p.Extra))
	for k, v := range p.Extra {
		out[k] = v
	}
	out["path"] = p.Path
	out["filename"] = p.Filename
	if p.Caption != "" {
		out["caption"] = p.Caption
	}
	if len(p.Tags) > 0 {
		out["tags"] = p.Tags
	}
	if p.Width > 0 {
		out["width"] = p.Width
	}
	if p.Height > 0 {
		out["height"] = p.Height
	}
	if p.Format != "" {
		out["format"] = p.Format
	}
	if p.Size > 0 {
		out["size"] = p.Size
	}
	return out
}
