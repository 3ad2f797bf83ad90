package app_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu       sync.Mutex
	listings map[int64]domain.Listing
	nextID   int64
	misses   []string
	gets     int

	stateCalls []string
	cityCalls  int
}

func newFakeRepo(ls ...domain.Listing) *fakeRepo {
	r := &fakeRepo{listings: map[int64]domain.Listing{}, nextID: 1000}
	for _, l := range ls {
		r.listings[l.ID] = l
	}
	return r
}

func (f *fakeRepo) UpsertListing(ctx context.Context, l *domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == 0 {
		for id, old := range f.listings {
			if old.Slug == l.Slug {
				l.ID = id
			}
		}
	}
	if old, ok := f.listings[l.ID]; ok {
		// promotion is only written on insert
		l.IsPremium, l.IsFeatured, l.ClaimedBy = old.IsPremium, old.IsFeatured, old.ClaimedBy
	}
	if l.ID == 0 {
		f.nextID++
		l.ID = f.nextID
	}
	f.listings[l.ID] = *l
	return nil
}

func (f *fakeRepo) UpdatePremiumFeatures(ctx context.Context, id int64, pf domain.PremiumFeatures) (domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	if pf.Description != nil {
		l.Description = *pf.Description
	}
	if pf.Hours != nil {
		l.Hours = *pf.Hours
		l.Schedule = domain.ParseSchedule(l.Hours)
	}
	if pf.Services != nil {
		l.Services = pf.Services
	}
	if pf.IsFeatured != nil {
		l.IsFeatured = *pf.IsFeatured
	}
	f.listings[id] = l
	return l, nil
}

func (f *fakeRepo) promote(id int64, p domain.Promotion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.ClaimedBy, l.IsPremium, l.IsFeatured = p.ClaimedBy, p.Premium, p.Featured
	f.listings[id] = l
	return nil
}

func (f *fakeRepo) LogImportMiss(ctx context.Context, source string, row int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misses = append(f.misses, reason)
	return nil
}

func (f *fakeRepo) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	l, ok := f.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) GetListingsByIDs(ctx context.Context, ids []int64) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for _, id := range ids {
		if l, ok := f.listings[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByState(ctx context.Context, state string, limit int) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls = append(f.stateCalls, state)
	return f.filter(func(l domain.Listing) bool { return l.State == state }), nil
}

func (f *fakeRepo) ListByCity(ctx context.Context, city, state string, limit int) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cityCalls++
	return f.filter(func(l domain.Listing) bool { return l.City == city && l.State == state }), nil
}

func (f *fakeRepo) ListCoords(ctx context.Context, afterID int64, limit int) ([]domain.GeoPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GeoPoint
	for _, l := range f.filter(func(l domain.Listing) bool { return l.ID > afterID }) {
		if len(out) == limit {
			break
		}
		out = append(out, domain.GeoPoint{ID: l.ID, Coords: l.Coords()})
	}
	return out, nil
}

func (f *fakeRepo) filter(keep func(domain.Listing) bool) []domain.Listing {
	var out []domain.Listing
	for _, l := range f.listings {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeClaims struct {
	byID     map[string]domain.Claim
	listings *fakeRepo
	// failUpdate makes UpdateClaim fail without touching anything
	failUpdate error
}

func (f *fakeClaims) CreateClaim(ctx context.Context, c domain.Claim) error {
	if f.byID == nil {
		f.byID = map[string]domain.Claim{}
	}
	for _, old := range f.byID {
		if old.ListingID == c.ListingID && old.Status != domain.ClaimCanceled {
			return domain.ErrConflict
		}
	}
	f.byID[c.ID] = c
	return nil
}

func (f *fakeClaims) GetClaim(ctx context.Context, id string) (domain.Claim, error) {
	c, ok := f.byID[id]
	if !ok {
		return domain.Claim{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeClaims) UpdateClaim(ctx context.Context, c domain.Claim, p domain.Promotion) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	if _, ok := f.byID[c.ID]; !ok {
		return domain.ErrNotFound
	}
	if f.listings != nil {
		if err := f.listings.promote(c.ListingID, p); err != nil {
			return err
		}
	}
	f.byID[c.ID] = c
	return nil
}

func (f *fakeClaims) ActiveClaim(ctx context.Context, listingID int64) (domain.Claim, error) {
	for _, c := range f.byID {
		if c.ListingID == listingID && c.Status == domain.ClaimActive {
			return c, nil
		}
	}
	return domain.Claim{}, domain.ErrNotFound
}

// fakeCache round-trips through JSON like the Redis cache does.
type fakeCache struct {
	mu      sync.Mutex
	store   map[string][]byte
	deleted []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

type fakeGeo struct {
	mu   sync.Mutex
	pts  map[int64]domain.Coords
	hits []domain.GeoHit
	err  error
}

func (g *fakeGeo) Add(ctx context.Context, pts ...domain.GeoPoint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pts == nil {
		g.pts = map[int64]domain.Coords{}
	}
	for _, p := range pts {
		g.pts[p.ID] = p.Coords
	}
	return nil
}

func (g *fakeGeo) Within(ctx context.Context, center domain.Coords, radiusMiles float64, limit int) ([]domain.GeoHit, error) {
	return g.hits, g.err
}

// fakeSource records every tier call.
type fakeSource struct {
	nearby, state, city          []domain.Listing
	nearbyErr, stateErr, cityErr error

	calls      []string
	stateCodes []string
}

func (s *fakeSource) Nearby(ctx context.Context, c domain.Coords, r float64) ([]domain.Listing, error) {
	s.calls = append(s.calls, "nearby")
	return s.nearby, s.nearbyErr
}

func (s *fakeSource) ByState(ctx context.Context, state string) ([]domain.Listing, error) {
	s.calls = append(s.calls, "state")
	s.stateCodes = append(s.stateCodes, state)
	return s.state, s.stateErr
}

func (s *fakeSource) DefaultCity(ctx context.Context) ([]domain.Listing, error) {
	s.calls = append(s.calls, "default-city")
	return s.city, s.cityErr
}

type fakeProvider struct {
	c     domain.Coords
	err   error
	calls int
}

func (p *fakeProvider) CurrentPosition(ctx context.Context, ip string) (domain.Coords, error) {
	p.calls++
	return p.c, p.err
}

type fakeReverse struct {
	place domain.Place
	err   error
}

func (r *fakeReverse) ReverseGeocode(ctx context.Context, c domain.Coords) (domain.Place, error) {
	return r.place, r.err
}

type memStore struct {
	loc     domain.SavedLocation
	ok      bool
	saveErr error
	saves   int
}

func (m *memStore) Load(ctx context.Context) (domain.SavedLocation, bool, error) {
	return m.loc, m.ok, nil
}

func (m *memStore) Save(ctx context.Context, loc domain.SavedLocation) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.loc, m.ok = loc, true
	return nil
}

func ptr[T any](v T) *T { return &v }

var denver = domain.City{Name: "Denver", State: "CO", Coords: domain.Coords{Lat: 39.7392, Lng: -104.9903}}
