package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitztrev/lila-ws/internal/chess"
	"github.com/fitztrev/lila-ws/internal/db"
	"github.com/fitztrev/lila-ws/internal/evalcache"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func testLine(t *testing.T) []evalcache.Move {
	t.Helper()
	moves, err := evalcache.ParseLine([]string{
		"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6",
	})
	require.NoError(t, err)
	return moves
}

func validSubmission(t *testing.T) Submission {
	t.Helper()
	return Submission{
		Fen: startFEN,
		By:  "tester",
		Eval: evalcache.Eval{
			Pvs:    []evalcache.Pv{{Score: evalcache.Cp(20), Moves: testLine(t)}},
			Knodes: 5000,
			Depth:  24,
		},
	}
}

func newTestMerger(t *testing.T) (*Merger, *db.Mem) {
	t.Helper()
	mem := db.NewMem()
	return NewMerger(evalcache.New(evalcache.Config{}), mem, zerolog.Nop()), mem
}

func TestSubmitSavesAndPersists(t *testing.T) {
	m, mem := newTestMerger(t)
	ctx := context.Background()

	res, err := m.Submit(ctx, validSubmission(t))
	require.NoError(t, err)
	assert.Equal(t, Saved, res)

	pos, ok := chess.Normalize(chess.Standard, startFEN)
	require.True(t, ok)
	entry, found, err := mem.GetEval(ctx, pos.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, entry.Evals, 1)
	assert.Equal(t, "tester", entry.Evals[0].By)
}

func TestSubmitDuplicateIsUnchanged(t *testing.T) {
	m, _ := newTestMerger(t)
	ctx := context.Background()

	res, err := m.Submit(ctx, validSubmission(t))
	require.NoError(t, err)
	require.Equal(t, Saved, res)

	res, err = m.Submit(ctx, validSubmission(t))
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)
}

func TestSubmitRejections(t *testing.T) {
	m, mem := newTestMerger(t)
	ctx := context.Background()

	bad := validSubmission(t)
	bad.Fen = "not a position"
	res, err := m.Submit(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res)

	bad = validSubmission(t)
	bad.Variant = "parcheesi"
	res, err = m.Submit(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res)

	bad = validSubmission(t)
	bad.Eval.Knodes = 1
	bad.Eval.Depth = 1
	res, err = m.Submit(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res)

	assert.Equal(t, int64(0), mem.Finds(), "rejected submissions must not hit the store")
}

type failingStore struct{}

func (failingStore) GetEval(context.Context, chess.ID) (evalcache.Entry, bool, error) {
	return evalcache.Entry{}, false, errors.New("store down")
}

func (failingStore) UpsertEval(context.Context, evalcache.Entry) error {
	return errors.New("store down")
}

func TestSubmitStoreFailureIsNotARejection(t *testing.T) {
	m := NewMerger(evalcache.New(evalcache.Config{}), failingStore{}, zerolog.Nop())

	res, err := m.Submit(context.Background(), validSubmission(t))
	require.Error(t, err)
	assert.Equal(t, Result(0), res, "a transport failure carries no classification")
	assert.NotEqual(t, Rejected, res)
}

func TestSubmitVariantDefaultsToStandard(t *testing.T) {
	m, _ := newTestMerger(t)
	ctx := context.Background()

	explicit := validSubmission(t)
	explicit.Variant = "standard"
	res, err := m.Submit(ctx, explicit)
	require.NoError(t, err)
	require.Equal(t, Saved, res)

	implicit := validSubmission(t)
	res, err = m.Submit(ctx, implicit)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res, "blank variant should merge into the standard entry")
}

func TestDeepenerFiresOnSaveOnly(t *testing.T) {
	m, _ := newTestMerger(t)
	ctx := context.Background()

	var deepened []chess.Pos
	m.SetDeepener(func(pos chess.Pos) { deepened = append(deepened, pos) })

	_, err := m.Submit(ctx, validSubmission(t))
	require.NoError(t, err)
	require.Len(t, deepened, 1)
	pos, ok := chess.Normalize(chess.Standard, startFEN)
	require.True(t, ok)
	assert.Equal(t, pos.ID, deepened[0].ID)

	_, err = m.Submit(ctx, validSubmission(t))
	require.NoError(t, err)
	assert.Len(t, deepened, 1, "unchanged merges must not deepen")
}

func TestProcessReader(t *testing.T) {
	m, _ := newTestMerger(t)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	require.NoError(t, enc.Encode(validSubmission(t)))
	buf.WriteString("this is not json\n")
	buf.WriteString("\n")
	require.NoError(t, enc.Encode(validSubmission(t)))

	stats, err := m.ProcessReader(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, Stats{Saved: 1, Unchanged: 1, Rejected: 1}, stats)
}

func TestProcessReaderCanceled(t *testing.T) {
	m, _ := newTestMerger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(validSubmission(t)))

	_, err := m.ProcessReader(ctx, &buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerProcessesSpoolFile(t *testing.T) {
	m, _ := newTestMerger(t)
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(validSubmission(t)))
	path := filepath.Join(dir, "batch-001.ndjson")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	w, err := NewWorker(Config{WatchDir: dir, Logger: zerolog.Nop()}, m)
	require.NoError(t, err)
	require.NotNil(t, w)

	require.NoError(t, w.processNewFiles(context.Background()))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "processed file should have moved")
	_, err = os.Stat(filepath.Join(dir, "processed", "batch-001.ndjson"))
	assert.NoError(t, err)
}

func TestWorkerDisabledWithoutWatchDir(t *testing.T) {
	m, _ := newTestMerger(t)
	w, err := NewWorker(Config{}, m)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestIsSubmissionFile(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"evals.ndjson", true},
		{"evals.ndjson.zst", true},
		{"evals.ndjson.gz", true},
		{"evals.json", false},
		{"evals.txt", false},
		{"ndjson", false},
	}
	for _, c := range cases {
		if got := IsSubmissionFile(c.name); got != c.want {
			t.Errorf("IsSubmissionFile(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
