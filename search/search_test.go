package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecutionReturnsResult(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, id uint64, query []byte) ([]byte, error) {
		return append([]byte("echo:"), query...), nil
	})

	outcome := NewExecution(7, []byte("q"), handler).Run(context.Background())
	require.Equal(t, uint64(7), outcome.RequestID)
	require.NoError(t, outcome.Err)
	require.False(t, outcome.Cancelled)
	require.Equal(t, []byte("echo:q"), outcome.Payload)
}

func TestExecutionReportsEngineError(t *testing.T) {
	wantErr := errors.New("index unavailable")
	handler := HandlerFunc(func(ctx context.Context, id uint64, query []byte) ([]byte, error) {
		return nil, wantErr
	})

	outcome := NewExecution(1, nil, handler).Run(context.Background())
	require.ErrorIs(t, outcome.Err, wantErr)
	require.False(t, outcome.Cancelled)
}

func TestExecutionCancelledCooperativeEngine(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, id uint64, query []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() {
		done <- NewExecution(1, nil, handler).Run(ctx)
	}()

	cancel()
	select {
	case outcome := <-done:
		require.True(t, outcome.Cancelled)
		require.Nil(t, outcome.Payload)
	case <-time.After(time.Second):
		t.Fatal("execution did not observe cancellation")
	}
}

func TestExecutionCancelledNonCooperativeEngine(t *testing.T) {
	// An engine with no interruption point: it ignores ctx and eventually
	// returns a result. The execution must not wait for it, and its late
	// result must be discarded, not emitted.
	finished := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, id uint64, query []byte) ([]byte, error) {
		defer close(finished)
		time.Sleep(100 * time.Millisecond)
		return []byte("too late"), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := NewExecution(1, nil, handler).Run(ctx)
	require.True(t, outcome.Cancelled)
	require.Nil(t, outcome.Payload)

	// The abandoned engine call still completes on its own; nothing blocks.
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned engine call never finished")
	}
}

func TestCorpusEngineRanksHits(t *testing.T) {
	engine := NewCorpusEngine([]Document{
		{ID: "a", Title: "gopher guide", Body: "gophers dig tunnels. gophers are rodents."},
		{ID: "b", Title: "unrelated", Body: "nothing to see"},
		{ID: "c", Title: "fauna", Body: "a single gopher appears"},
	})

	payload, err := engine.Search(context.Background(), 1, []byte("gopher"))
	require.NoError(t, err)

	var hits []Hit
	require.NoError(t, json.Unmarshal(payload, &hits))
	require.Len(t, hits, 2)
	require.Equal(t, "a", hits[0].ID, "title and double body match must rank first")
	require.Equal(t, "c", hits[1].ID)
}

func TestCorpusEngineEmptyQuery(t *testing.T) {
	engine := NewCorpusEngine(nil)
	_, err := engine.Search(context.Background(), 1, []byte("   "))
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestCorpusEngineNoMatches(t *testing.T) {
	engine := NewCorpusEngine([]Document{{ID: "a", Title: "t", Body: "b"}})
	payload, err := engine.Search(context.Background(), 1, []byte("absent"))
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(payload))
}

func TestCorpusEngineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	docs := `[{"id":"x","title":"first","body":"alpha beta"},{"id":"y","title":"second","body":"beta gamma"}]`
	require.NoError(t, os.WriteFile(path, []byte(docs), 0o644))

	engine, err := NewCorpusEngineFromFile(path)
	require.NoError(t, err)

	payload, err := engine.Search(context.Background(), 1, []byte("beta"))
	require.NoError(t, err)
	var hits []Hit
	require.NoError(t, json.Unmarshal(payload, &hits))
	require.Len(t, hits, 2)
}

func TestCorpusEngineAdd(t *testing.T) {
	engine := NewCorpusEngine(nil)
	engine.Add(Document{ID: "n", Title: "new", Body: "fresh content"})

	payload, err := engine.Search(context.Background(), 1, []byte("fresh"))
	require.NoError(t, err)
	var hits []Hit
	require.NoError(t, json.Unmarshal(payload, &hits))
	require.Len(t, hits, 1)
	require.Equal(t, "n", hits[0].ID)
}

func TestCorpusEngineHonorsCancellation(t *testing.T) {
	docs := make([]Document, 1000)
	for i := range docs {
		docs[i] = Document{ID: "d", Body: "filler text"}
	}
	engine := NewCorpusEngine(docs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Search(ctx, 1, []byte("filler"))
	require.ErrorIs(t, err, context.Canceled)
}
