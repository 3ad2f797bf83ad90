package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// ImportReport is the running tally of an import.
type ImportReport struct {
	Total    int
	Imported int
	Skipped  int
	Failed   int
}

// ImportService writes imported listings to the repository and the geo index.
type ImportService struct {
	repo  domain.ListingRepository
	geo   domain.GeoIndex
	cache domain.Cache
	city  domain.City

	// ProgressEvery controls how often progress is logged (rows). Zero means 100.
	ProgressEvery int
}

func NewImportService(r domain.ListingRepository, g domain.GeoIndex, c domain.Cache, city domain.City) *ImportService {
	return &ImportService{repo: r, geo: g, cache: c, city: city}
}

// ImportRow maps and stores one record. Invalid records are logged as misses and return
// an error wrapping domain.ErrInvalid; storage errors are returned as-is.
func (s *ImportService) ImportRow(ctx context.Context, source string, rowNum int, row map[string]any) error {
	l, err := mapListing(row)
	if err != nil {
		_ = s.repo.LogImportMiss(ctx, source, rowNum, err.Error())
		return err
	}

	// parent row first; the index only ever points at stored listings
	if err := s.repo.UpsertListing(ctx, &l); err != nil {
		return fmt.Errorf("upsert %q: %w", l.Slug, err)
	}
	if s.geo != nil {
		if err := s.geo.Add(ctx, domain.GeoPoint{ID: l.ID, Coords: l.Coords()}); err != nil {
			return fmt.Errorf("geo add %d: %w", l.ID, err)
		}
	}
	invalidateListing(ctx, s.cache, s.city, l)
	return nil
}

// Import runs ImportRow over rows with at most workers in flight. Row failures never stop
// the run; only ctx cancellation does.
func (s *ImportService) Import(ctx context.Context, source string, rows []map[string]any, workers int) (ImportReport, error) {
	if workers < 1 {
		workers = 1
	}
	every := s.ProgressEvery
	if every <= 0 {
		every = 100
	}

	var imported, skipped, failed, done atomic.Int64
	total := len(rows)
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	var runErr error
	for i, row := range rows {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			runErr = err
			break
		}
		wg.Add(1)
		go func(n int, row map[string]any) {
			defer wg.Done()
			defer sem.Release(1)

			err := s.ImportRow(ctx, source, n, row)
			switch {
			case err == nil:
				imported.Add(1)
			case errors.Is(err, domain.ErrInvalid):
				skipped.Add(1)
				log.Debug().Int("row", n).Err(err).Msg("row skipped")
			default:
				failed.Add(1)
				log.Warn().Int("row", n).Err(err).Msg("row failed")
			}

			if d := done.Add(1); d%int64(every) == 0 || int(d) == total {
				log.Info().
					Int64("done", d).
					Int("total", total).
					Int64("imported", imported.Load()).
					Int64("skipped", skipped.Load()).
					Int64("failed", failed.Load()).
					Msg("import progress")
			}
		}(i+1, row)
	}
	wg.Wait()

	return ImportReport{
		Total:    total,
		Imported: int(imported.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}, runErr
}

// RebuildGeoIndex re-adds every stored listing to the geo index, page by page.
func (s *ImportService) RebuildGeoIndex(ctx context.Context, pageSize int) (int, error) {
	if s.geo == nil {
		return 0, domain.ErrUnsupported
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	var after int64
	n := 0
	for {
		pts, err := s.repo.ListCoords(ctx, after, pageSize)
		if err != nil {
			return n, err
		}
		if len(pts) == 0 {
			return n, nil
		}
		if err := s.geo.Add(ctx, pts...); err != nil {
			return n, err
		}
		n += len(pts)
		after = pts[len(pts)-1].ID
	}
}
