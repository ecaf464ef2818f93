package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultLimit is the number of results requested when the query payload
// does not say otherwise.
const DefaultLimit = 10

// HTTPEngine delegates searches to an HTTP search service. The query payload
// is sent as the query string of a JSON request body and the response body
// is relayed back verbatim as the result payload.
type HTTPEngine struct {
	endpoint string
	client   *http.Client
}

// NewHTTPEngine creates an engine posting to the given endpoint URL.
func NewHTTPEngine(endpoint string) *HTTPEngine {
	return &HTTPEngine{
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

type httpSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Search posts the query and returns the raw response body. Cancellation is
// honored through the request context: an aborted request returns ctx's
// error.
func (e *HTTPEngine) Search(ctx context.Context, requestID uint64, query []byte) ([]byte, error) {
	body, err := json.Marshal(httpSearchRequest{
		Query: string(query),
		Limit: DefaultLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search service error (status %d): %s", resp.StatusCode, msg)
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	return result, nil
}
