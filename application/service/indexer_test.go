package service

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensworks/lumen/domain/image"
	"github.com/lensworks/lumen/infrastructure/identity"
	"github.com/lensworks/lumen/infrastructure/provider"
	"github.com/lensworks/lumen/internal/config"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]float64
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]float64)}
}

func (c *fakeCache) Get(_ context.Context, contentHash string) ([]float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.entries[contentHash]
	return vec, ok, nil
}

func (c *fakeCache) Set(_ context.Context, contentHash string, embedding []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[contentHash] = embedding
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]image.IndexRecord
	deleted  []string
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]image.IndexRecord)}
}

func (s *fakeStore) UpsertOne(_ context.Context, record image.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return fmt.Errorf("store unavailable")
	}
	s.records[record.Payload().Path] = record
	return nil
}

func (s *fakeStore) UpsertBatch(ctx context.Context, records []image.IndexRecord, _ int) (int, int) {
	for _, rec := range records {
		if err := s.UpsertOne(ctx, rec); err != nil {
			return len(records) - 1, 1
		}
	}
	return len(records), 0
}

func (s *fakeStore) DeleteByPath(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, path)
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *fakeStore) record(path string) (image.IndexRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	return rec, ok
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *fakeEmbedder) Embed(_ context.Context, data []byte) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return []float64{float64(len(data)), 1, 2, 3}, nil
}

func (e *fakeEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeCaptioner struct{ caption string }

func (c *fakeCaptioner) Caption(_ context.Context, _ []byte) (string, error) {
	return c.caption, nil
}

// writeGradientPNG writes a decodable test image. The seed shifts pixel
// values so different seeds produce visually different images.
func writeGradientPNG(t *testing.T, path string, seed uint8) {
	t.Helper()
	img := stdimage.NewGray(stdimage.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*2) + seed})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func newTestIndexer(store *fakeStore, embedder *fakeEmbedder, captioner *fakeCaptioner) *Indexer {
	watchCfg := config.NewWatchConfig(20*time.Millisecond, 2, config.DefaultNearThreshold)
	var capt provider.Captioner
	if captioner != nil {
		capt = captioner
	}
	return NewIndexer(identity.NewIdentifier(nil), newFakeCache(), store, embedder, capt, watchCfg, 8, nil)
}

func TestHandleEvent_CreatedIndexesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writeGradientPNG(t, path, 0)

	store := newFakeStore()
	idx := newTestIndexer(store, &fakeEmbedder{}, &fakeCaptioner{caption: "a grey gradient"})

	event := image.NewPendingEvent(path, image.EventCreated, time.Now())
	require.NoError(t, idx.HandleEvent(context.Background(), event))

	rec, ok := store.record(path)
	require.True(t, ok)
	payload := rec.Payload()
	assert.Equal(t, "a.png", payload.Filename)
	assert.Equal(t, "a grey gradient", payload.Caption)
	assert.Equal(t, 64, payload.Width)
	assert.Equal(t, 64, payload.Height)
	assert.Equal(t, "png", payload.Format)
	assert.NotEmpty(t, payload.Extra["content_hash"])
	assert.Len(t, payload.Extra["perceptual_hash"], 16)
	assert.Equal(t, image.RecordID(path), rec.ID())
}

func TestHandleEvent_DeletedRemovesFromStore(t *testing.T) {
	store := newFakeStore()
	idx := newTestIndexer(store, &fakeEmbedder{}, nil)

	event := image.NewPendingEvent("/gone/a.png", image.EventDeleted, time.Now())
	require.NoError(t, idx.HandleEvent(context.Background(), event))
	assert.Equal(t, []string{"/gone/a.png"}, store.deleted)
}

func TestHandleEvent_UnreadableFileFails(t *testing.T) {
	store := newFakeStore()
	idx := newTestIndexer(store, &fakeEmbedder{}, nil)

	event := image.NewPendingEvent(filepath.Join(t.TempDir(), "missing.png"), image.EventCreated, time.Now())
	require.Error(t, idx.HandleEvent(context.Background(), event))
}

func TestIndexer_CachePreventsReembedding(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.png")
	second := filepath.Join(dir, "copy-of-a.png")
	writeGradientPNG(t, first, 0)
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(second, data, 0o644))

	store := newFakeStore()
	embedder := &fakeEmbedder{}
	idx := newTestIndexer(store, embedder, nil)

	ctx := context.Background()
	require.NoError(t, idx.HandleEvent(ctx, image.NewPendingEvent(first, image.EventCreated, time.Now())))
	require.NoError(t, idx.HandleEvent(ctx, image.NewPendingEvent(second, image.EventCreated, time.Now())))

	assert.Equal(t, 1, embedder.callCount(), "identical bytes must embed only once")

	recA, _ := store.record(first)
	recB, _ := store.record(second)
	assert.Equal(t, recA.Vector(), recB.Vector())
	assert.NotEqual(t, recA.ID(), recB.ID(), "distinct paths keep distinct records")
}

func TestScanAndIndex_CountsSkippedFiles(t *testing.T) {
	dir := t.TempDir()
	writeGradientPNG(t, filepath.Join(dir, "a.png"), 0)
	writeGradientPNG(t, filepath.Join(dir, "b.png"), 40)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not an image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0o644))

	store := newFakeStore()
	idx := newTestIndexer(store, &fakeEmbedder{}, nil)

	report, err := idx.ScanAndIndex(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned(), "text files are not scanned")
	assert.Equal(t, 2, report.Indexed())
	assert.Equal(t, 1, report.Failed())
}

func TestScanAndIndex_SubdirectoriesIncluded(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeGradientPNG(t, filepath.Join(dir, "a.png"), 0)
	writeGradientPNG(t, filepath.Join(sub, "b.png"), 40)

	store := newFakeStore()
	idx := newTestIndexer(store, &fakeEmbedder{}, nil)

	report, err := idx.ScanAndIndex(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed())

	_, ok := store.record(filepath.Join(sub, "b.png"))
	assert.True(t, ok)
}

func TestStartWatch_SecondCallFails(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndexer(newFakeStore(), &fakeEmbedder{}, nil)

	require.NoError(t, idx.StartWatch(context.Background(), dir))
	t.Cleanup(func() { _ = idx.StopWatch() })

	assert.True(t, idx.Watching())
	require.ErrorIs(t, idx.StartWatch(context.Background(), dir), ErrAlreadyWatching)
}

func TestStopWatch_Idempotent(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndexer(newFakeStore(), &fakeEmbedder{}, nil)

	require.NoError(t, idx.StopWatch())
	require.NoError(t, idx.StartWatch(context.Background(), dir))
	require.NoError(t, idx.StopWatch())
	require.NoError(t, idx.StopWatch())
	assert.False(t, idx.Watching())
}

func TestWatchEndToEnd_NewFileGetsIndexed(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	idx := newTestIndexer(store, &fakeEmbedder{}, nil)

	require.NoError(t, idx.StartWatch(context.Background(), dir))
	t.Cleanup(func() { _ = idx.StopWatch() })

	path := filepath.Join(dir, "new.png")
	writeGradientPNG(t, path, 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.record(path); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("file was never indexed")
}
