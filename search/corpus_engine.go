package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ErrEmptyQuery reports a search query with no content.
var ErrEmptyQuery = errors.New("search: empty query")

// Document is one searchable entry of the in-memory corpus.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Hit is one ranked match returned to the core, serialized as JSON in the
// result payload.
type Hit struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Score   int    `json:"score"`
}

// CorpusEngine searches an in-memory document set by case-insensitive
// substring match, ranked by occurrence count. It is the default engine, so
// the adapter runs standalone without an external search service.
type CorpusEngine struct {
	mu    sync.RWMutex
	docs  []Document
	limit int
}

// NewCorpusEngine creates an engine over the given documents, returning at
// most DefaultLimit hits per query.
func NewCorpusEngine(docs []Document) *CorpusEngine {
	return &CorpusEngine{
		docs:  docs,
		limit: DefaultLimit,
	}
}

// NewCorpusEngineFromFile loads a JSON array of documents from path.
func NewCorpusEngineFromFile(path string) (*CorpusEngine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse corpus file %s: %w", path, err)
	}
	return NewCorpusEngine(docs), nil
}

// Add appends a document to the corpus.
func (e *CorpusEngine) Add(doc Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = append(e.docs, doc)
}

// Search scans the corpus and returns the top hits as a JSON payload.
// Cancellation is checked between documents, so a cancelled query stops
// scanning promptly.
func (e *CorpusEngine) Search(ctx context.Context, requestID uint64, query []byte) ([]byte, error) {
	needle := strings.ToLower(strings.TrimSpace(string(query)))
	if needle == "" {
		return nil, ErrEmptyQuery
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var hits []Hit
	for _, doc := range e.docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := strings.Count(strings.ToLower(doc.Body), needle)
		if strings.Contains(strings.ToLower(doc.Title), needle) {
			score += 2
		}
		if score == 0 {
			continue
		}
		hits = append(hits, Hit{
			ID:      doc.ID,
			Title:   doc.Title,
			Snippet: snippet(doc.Body, needle),
			Score:   score,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > e.limit {
		hits = hits[:e.limit]
	}
	if hits == nil {
		hits = []Hit{}
	}
	return json.Marshal(hits)
}

// snippet returns a short window of body around the first match of needle.
func snippet(body, needle string) string {
	const window = 80
	idx := strings.Index(strings.ToLower(body), needle)
	if idx < 0 {
		return truncate(body, window)
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	return truncate(body[start:], window)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
