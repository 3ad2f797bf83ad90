package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

const (
	defaultListLimit = 200
	keyDefaultCity   = "city:default"
)

// QueryService serves listing reads: Redis-cached lookups by id and state, and geo-indexed
// nearby search. It implements domain.ListingSource.
type QueryService struct {
	repo     domain.ListingRepository
	geo      domain.GeoIndex
	cache    domain.Cache
	cacheTTL time.Duration
	city     domain.City
	limit    int
}

func NewQueryService(r domain.ListingRepository, g domain.GeoIndex, c domain.Cache, ttl time.Duration, city domain.City, limit int) *QueryService {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return &QueryService{repo: r, geo: g, cache: c, cacheTTL: ttl, city: city, limit: limit}
}

func listingKey(id int64) string { return fmt.Sprintf("listing:%d", id) }

func stateKey(state string) string { return "state:" + strings.ToUpper(state) }

func (s *QueryService) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	key := listingKey(id)
	var l domain.Listing
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &l); ok {
			return l, nil
		}
	}
	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	s.store(ctx, key, l)
	return l, nil
}

// Nearby asks the geo index for ids within radius, hydrates them from the repository and
// keeps the index's distance order.
func (s *QueryService) Nearby(ctx context.Context, c domain.Coords, radiusMiles float64) ([]domain.Listing, error) {
	if s.geo == nil {
		return nil, domain.ErrUnsupported
	}
	hits, err := s.geo.Within(ctx, c, radiusMiles, s.limit)
	if err != nil {
		return nil, fmt.Errorf("geo within: %w", err)
	}
	if len(hits) == 0 {
		return []domain.Listing{}, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	rows, err := s.repo.GetListingsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Listing, len(rows))
	for _, l := range rows {
		byID[l.ID] = l
	}

	out := make([]domain.Listing, 0, len(hits))
	for _, h := range hits {
		l, ok := byID[h.ID]
		if !ok {
			// index entry outlived its row
			continue
		}
		d := h.Distance
		l.Distance = &d
		out = append(out, l)
	}
	return out, nil
}

func (s *QueryService) ByState(ctx context.Context, state string) ([]domain.Listing, error) {
	code := domain.NormalizeState(state)
	if code == "" {
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrInvalid, state)
	}
	return s.cachedList(ctx, stateKey(code), func() ([]domain.Listing, error) {
		return s.repo.ListByState(ctx, code, s.limit)
	})
}

func (s *QueryService) DefaultCity(ctx context.Context) ([]domain.Listing, error) {
	return s.cachedList(ctx, keyDefaultCity, func() ([]domain.Listing, error) {
		return s.repo.ListByCity(ctx, s.city.Name, s.city.State, s.limit)
	})
}

func (s *QueryService) cachedList(ctx context.Context, key string, load func() ([]domain.Listing, error)) ([]domain.Listing, error) {
	var out []domain.Listing
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}
	ls, err := load()
	if err != nil {
		return nil, err
	}
	// copy so callers can't mutate what we just cached
	cp := make([]domain.Listing, len(ls))
	copy(cp, ls)

	s.store(ctx, key, cp)
	return cp, nil
}

func (s *QueryService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
}

// Invalidate drops every cache entry a change to l could have touched.
func (s *QueryService) Invalidate(ctx context.Context, l domain.Listing) {
	invalidateListing(ctx, s.cache, s.city, l)
}

func invalidateListing(ctx context.Context, c domain.Cache, city domain.City, l domain.Listing) {
	if c == nil {
		return
	}
	_ = c.Del(ctx, listingKey(l.ID))
	if l.State != "" {
		_ = c.Del(ctx, stateKey(l.State))
	}
	if strings.EqualFold(l.City, city.Name) && strings.EqualFold(l.State, city.State) {
		_ = c.Del(ctx, keyDefaultCity)
	}
}
