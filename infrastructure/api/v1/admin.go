// Package v1 implements the versioned admin API routes.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lensworks/lumen/application/service"
	"github.com/lensworks/lumen/domain/search"
	"github.com/lensworks/lumen/infrastructure/api/middleware"
)

// IndexService controls watching and scanning.
type IndexService interface {
	StartWatch(ctx context.Context, root string) error
	StopWatch() error
	Watching() bool
	ScanAndIndex(ctx context.Context, root string) (service.ScanReport, error)
}

// DuplicateService reports exact and near duplicates.
type DuplicateService interface {
	FindExactDuplicates(ctx context.Context, root string) (map[string][]string, error)
	FindNearDuplicates(ctx context.Context, root string, threshold int) ([][]string, error)
}

// SearchService queries the vector store.
type SearchService interface {
	Search(ctx context.Context, vector []float64, topK int) ([]search.Hit, error)
	HybridSearch(ctx context.Context, vector []float64, filter search.Filter, topK int) ([]search.Hit, error)
}

// AdminRouter handles the admin endpoints.
type AdminRouter struct {
	index      IndexService
	duplicates DuplicateService
	searcher   SearchService
	logger     *slog.Logger
}

// NewAdminRouter creates an AdminRouter.
func NewAdminRouter(index IndexService, duplicates DuplicateService, searcher SearchService, logger *slog.Logger) *AdminRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminRouter{
		index:      index,
		duplicates: duplicates,
		searcher:   searcher,
		logger:     logger,
	}
}

// Routes returns the chi router for the admin endpoints.
func (a *AdminRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/status", a.Status)
	router.Post("/watch/start", a.StartWatch)
	router.Post("/watch/stop", a.StopWatch)
	router.Post("/scan", a.Scan)
	router.Post("/duplicates/exact", a.ExactDuplicates)
	router.Post("/duplicates/near", a.NearDuplicates)
	router.Post("/search", a.Search)

	return router
}

// Status handles GET /api/v1/status.
func (a *AdminRouter) Status(w http.ResponseWriter, req *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, StatusResponse{Watching: a.index.Watching()})
}

// StartWatch handles POST /api/v1/watch/start.
func (a *AdminRouter) StartWatch(w http.ResponseWriter, req *http.Request) {
	body, err := decodeRootRequest(req)
	if err != nil {
		middleware.WriteError(w, req, http.StatusBadRequest, err, a.logger)
		return
	}

	// The watch outlives this request.
	if err := a.index.StartWatch(context.Background(), body.Root); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrAlreadyWatching) {
			status = http.StatusConflict
		}
		middleware.WriteError(w, req, status, err, a.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, StatusResponse{Watching: true})
}

// StopWatch handles POST /api/v1/watch/stop.
func (a *AdminRouter) StopWatch(w http.ResponseWriter, req *http.Request) {
	if err := a.index.StopWatch(); err != nil {
		middleware.WriteError(w, req, http.StatusInternalServerError, err, a.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, StatusResponse{Watching: false})
}

// Scan handles POST /api/v1/scan.
func (a *AdminRouter) Scan(w http.ResponseWriter, req *http.Request) {
	body, err := decodeRootRequest(req)
	if err != nil {
		middleware.WriteError(w, req, http.StatusBadRequest, err, a.logger)
		return
	}

	report, err := a.index.ScanAndIndex(req.Context(), body.Root)
	if err != nil {
		middleware.WriteError(w, req, http.StatusInternalServerError, err, a.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ScanResponse{
		Scanned: report.Scanned(),
		Indexed: report.Indexed(),
		Failed:  report.Failed(),
	})
}

// ExactDuplicates handles POST /api/v1/duplicates/exact.
func (a *AdminRouter) ExactDuplicates(w http.ResponseWriter, req *http.Request) {
	body, err := decodeRootRequest(req)
	if err != nil {
		middleware.WriteError(w, req, http.StatusBadRequest, err, a.logger)
		return
	}

	groups, err := a.duplicates.FindExactDuplicates(req.Context(), body.Root)
	if err != nil {
		middleware.WriteError(w, req, http.StatusInternalServerError, err, a.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ExactDuplicatesResponse{Groups: groups})
}

// NearDuplicates handles POST /api/v1/duplicates/near.
func (a *AdminRouter) NearDuplicates(w http.ResponseWriter, req *http.Request) {
	var body NearDuplicatesRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, http.StatusBadRequest, err, a.logger)
		return
	}
	if body.Root == "" {
		middleware.WriteError(w, req, http.StatusBadRequest, errMissingRoot, a.logger)
		return
	}

	threshold := -1
	if body.Threshold != nil {
		threshold = *body.Threshold
	}

	clusters, err := a.duplicates.FindNearDuplicates(req.Context(), body.Root, threshold)
	if err != nil {
		middleware.WriteError(w, req, http.StatusInternalServerError, err, a.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, NearDuplicatesResponse{Clusters: clusters})
}

// Search handles POST /api/v1/search.
func (a *AdminRouter) Search(w http.ResponseWriter, req *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, http.StatusBadRequest, err, a.logger)
		return
	}
	if len(body.Vector) == 0 {
		middleware.WriteError(w, req, http.StatusBadRequest, errMissingVector, a.logger)
		return
	}

	filter := body.filter()
	var (
		hits []search.Hit
		err  error
	)
	if filter.IsEmpty() {
		hits, err = a.searcher.Search(req.Context(), body.Vector, body.TopK)
	} else {
		hits, err = a.searcher.HybridSearch(req.Context(), body.Vector, filter, body.TopK)
	}
	if err != nil {
		middleware.WriteError(w, req, http.StatusInternalServerError, err, a.logger)
		return
	}

	results := make([]SearchHit, len(hits))
	for i, h := range hits {
		results[i] = SearchHit{ID: h.ID(), Path: h.Path(), Score: h.Score()}
	}
	middleware.WriteJSON(w, http.StatusOK, SearchResponse{Hits: results})
}

var (
	errMissingRoot   = fmt.Errorf("root is required")
	errMissingVector = fmt.Errorf("vector is required")
)

func decodeRootRequest(req *http.Request) (RootRequest, error) {
	var body RootRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return RootRequest{}, err
	}
	if body.Root == "" {
		return RootRequest{}, errMissingRoot
	}
	return body, nil
}
