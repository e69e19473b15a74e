package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensworks/lumen/application/service"
	"github.com/lensworks/lumen/domain/search"
)

type fakeIndexService struct {
	watching  bool
	scanErr   error
	lastRoot  string
	scanCalls int
}

func (f *fakeIndexService) StartWatch(_ context.Context, root string) error {
	if f.watching {
		return service.ErrAlreadyWatching
	}
	f.watching = true
	f.lastRoot = root
	return nil
}

func (f *fakeIndexService) StopWatch() error {
	f.watching = false
	return nil
}

func (f *fakeIndexService) Watching() bool { return f.watching }

func (f *fakeIndexService) ScanAndIndex(_ context.Context, root string) (service.ScanReport, error) {
	f.scanCalls++
	f.lastRoot = root
	if f.scanErr != nil {
		return service.ScanReport{}, f.scanErr
	}
	return service.ScanReport{}, nil
}

type fakeDuplicateService struct {
	groups        map[string][]string
	clusters      [][]string
	lastThreshold int
}

func (f *fakeDuplicateService) FindExactDuplicates(_ context.Context, _ string) (map[string][]string, error) {
	return f.groups, nil
}

func (f *fakeDuplicateService) FindNearDuplicates(_ context.Context, _ string, threshold int) ([][]string, error) {
	f.lastThreshold = threshold
	return f.clusters, nil
}

type fakeSearchService struct {
	hits       []search.Hit
	hybridUsed bool
}

func (f *fakeSearchService) Search(_ context.Context, _ []float64, _ int) ([]search.Hit, error) {
	return f.hits, nil
}

func (f *fakeSearchService) HybridSearch(_ context.Context, _ []float64, _ search.Filter, _ int) ([]search.Hit, error) {
	f.hybridUsed = true
	return f.hits, nil
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newTestRouter(index *fakeIndexService, dupes *fakeDuplicateService, searcher *fakeSearchService) http.Handler {
	return NewAdminRouter(index, dupes, searcher, nil).Routes()
}

func TestStatus(t *testing.T) {
	index := &fakeIndexService{watching: true}
	router := newTestRouter(index, &fakeDuplicateService{}, &fakeSearchService{})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Watching)
}

func TestStartWatch(t *testing.T) {
	index := &fakeIndexService{}
	router := newTestRouter(index, &fakeDuplicateService{}, &fakeSearchService{})

	rec := postJSON(t, router, "/watch/start", RootRequest{Root: "/photos"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/photos", index.lastRoot)
	assert.True(t, index.watching)
}

func TestStartWatch_ConflictWhenActive(t *testing.T) {
	index := &fakeIndexService{watching: true}
	router := newTestRouter(index, &fakeDuplicateService{}, &fakeSearchService{})

	rec := postJSON(t, router, "/watch/start", RootRequest{Root: "/photos"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartWatch_MissingRoot(t *testing.T) {
	router := newTestRouter(&fakeIndexService{}, &fakeDuplicateService{}, &fakeSearchService{})

	rec := postJSON(t, router, "/watch/start", RootRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopWatch(t *testing.T) {
	index := &fakeIndexService{watching: true}
	router := newTestRouter(index, &fakeDuplicateService{}, &fakeSearchService{})

	rec := postJSON(t, router, "/watch/stop", struct{}{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, index.watching)
}

func TestScan(t *testing.T) {
	index := &fakeIndexService{}
	router := newTestRouter(index, &fakeDuplicateService{}, &fakeSearchService{})

	rec := postJSON(t, router, "/scan", RootRequest{Root: "/photos"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, index.scanCalls)
}

func TestScan_Error(t *testing.T) {
	index := &fakeIndexService{scanErr: fmt.Errorf("no such directory")}
	router := newTestRouter(index, &fakeDuplicateService{}, &fakeSearchService{})

	rec := postJSON(t, router, "/scan", RootRequest{Root: "/missing"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExactDuplicates(t *testing.T) {
	dupes := &fakeDuplicateService{groups: map[string][]string{
		"abc": {"/p/a.jpg", "/p/b.jpg"},
	}}
	router := newTestRouter(&fakeIndexService{}, dupes, &fakeSearchService{})

	rec := postJSON(t, router, "/duplicates/exact", RootRequest{Root: "/photos"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExactDuplicatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dupes.groups, resp.Groups)
}

func TestNearDuplicates_ThresholdForwarded(t *testing.T) {
	dupes := &fakeDuplicateService{clusters: [][]string{{"/p/a.jpg", "/p/b.jpg"}}}
	router := newTestRouter(&fakeIndexService{}, dupes, &fakeSearchService{})

	threshold := 8
	rec := postJSON(t, router, "/duplicates/near", NearDuplicatesRequest{Root: "/photos", Threshold: &threshold})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, dupes.lastThreshold)

	var resp NearDuplicatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dupes.clusters, resp.Clusters)
}

func TestSearch_PlainVector(t *testing.T) {
	searcher := &fakeSearchService{hits: []search.Hit{
		search.NewHit("id-1", "/p/a.jpg", 0.9),
	}}
	router := newTestRouter(&fakeIndexService{}, &fakeDuplicateService{}, searcher)

	rec := postJSON(t, router, "/search", SearchRequest{Vector: []float64{1, 2}, TopK: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, searcher.hybridUsed)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "/p/a.jpg", resp.Hits[0].Path)
}

func TestSearch_FilterTriggersHybrid(t *testing.T) {
	searcher := &fakeSearchService{}
	router := newTestRouter(&fakeIndexService{}, &fakeDuplicateService{}, searcher)

	rec := postJSON(t, router, "/search", SearchRequest{
		Vector: []float64{1, 2},
		All:    map[string]string{"format": "png"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, searcher.hybridUsed)
}

func TestSearch_MissingVector(t *testing.T) {
	router := newTestRouter(&fakeIndexService{}, &fakeDuplicateService{}, &fakeSearchService{})

	rec := postJSON(t, router, "/search", SearchRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
