package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/http_server"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/app"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

var denver = domain.City{Name: "Denver", State: "CO", Coords: domain.Coords{Lat: 39.7392, Lng: -104.9903}}

// ---- in-memory ports ----

type memRepo struct {
	mu       sync.Mutex
	listings map[int64]domain.Listing
}

func newMemRepo(ls ...domain.Listing) *memRepo {
	r := &memRepo{listings: map[int64]domain.Listing{}}
	for _, l := range ls {
		r.listings[l.ID] = l
	}
	return r
}

func (m *memRepo) UpsertListing(_ context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = *l
	return nil
}

func (m *memRepo) UpdatePremiumFeatures(_ context.Context, id int64, pf domain.PremiumFeatures) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
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
	m.listings[id] = l
	return l, nil
}

func (m *memRepo) promote(id int64, p domain.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.ClaimedBy, l.IsPremium, l.IsFeatured = p.ClaimedBy, p.Premium, p.Featured
	m.listings[id] = l
	return nil
}

func (m *memRepo) LogImportMiss(context.Context, string, int, string) error { return nil }

func (m *memRepo) GetListing(_ context.Context, id int64) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (m *memRepo) GetListingsByIDs(_ context.Context, ids []int64) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Listing
	for _, id := range ids {
		if l, ok := m.listings[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memRepo) list(keep func(domain.Listing) bool) []domain.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Listing
	for _, l := range m.listings {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memRepo) ListByState(_ context.Context, state string, _ int) ([]domain.Listing, error) {
	return m.list(func(l domain.Listing) bool { return l.State == state }), nil
}

func (m *memRepo) ListByCity(_ context.Context, city, state string, _ int) ([]domain.Listing, error) {
	return m.list(func(l domain.Listing) bool { return l.City == city && l.State == state }), nil
}

func (m *memRepo) ListCoords(context.Context, int64, int) ([]domain.GeoPoint, error) { return nil, nil }

// memGeo answers radius queries over whatever is in the repo.
type memGeo struct{ repo *memRepo }

func (g memGeo) Add(context.Context, ...domain.GeoPoint) error { return nil }

func (g memGeo) Within(_ context.Context, c domain.Coords, radius float64, _ int) ([]domain.GeoHit, error) {
	var hits []domain.GeoHit
	for _, l := range g.repo.list(func(domain.Listing) bool { return true }) {
		if d := domain.DistanceMiles(c, l.Coords()); d <= radius {
			hits = append(hits, domain.GeoHit{ID: l.ID, Distance: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}

type memClaims struct {
	mu     sync.Mutex
	claims map[string]domain.Claim
	repo   *memRepo
}

func (m *memClaims) CreateClaim(_ context.Context, c domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, old := range m.claims {
		if old.ListingID == c.ListingID && old.Status != domain.ClaimCanceled {
			return domain.ErrConflict
		}
	}
	m.claims[c.ID] = c
	return nil
}

func (m *memClaims) GetClaim(_ context.Context, id string) (domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return domain.Claim{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *memClaims) UpdateClaim(_ context.Context, c domain.Claim, p domain.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.repo.promote(c.ListingID, p); err != nil {
		return err
	}
	m.claims[c.ID] = c
	return nil
}

func (m *memClaims) ActiveClaim(_ context.Context, listingID int64) (domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.ListingID == listingID && c.Status == domain.ClaimActive {
			return c, nil
		}
	}
	return domain.Claim{}, domain.ErrNotFound
}

type failingSource struct{}

func (failingSource) Nearby(context.Context, domain.Coords, float64) ([]domain.Listing, error) {
	return nil, errors.New("boom")
}
func (failingSource) ByState(context.Context, string) ([]domain.Listing, error) {
	return nil, errors.New("boom")
}
func (failingSource) DefaultCity(context.Context) ([]domain.Listing, error) {
	return nil, errors.New("boom")
}

// ---- harness ----

func seed() []domain.Listing {
	return []domain.Listing{
		{ID: 1, Name: "Wash Co", City: "Denver", State: "CO", Lat: 39.7400, Lng: -104.9900, Rating: 4.8, Hours: "24 Hours", Schedule: domain.ParseSchedule("24 Hours"), Services: []string{"Drop-off"}},
		{ID: 2, Name: "Suds", City: "Denver", State: "CO", Lat: 39.7600, Lng: -104.9800, Rating: 3.5},
		{ID: 3, Name: "Spin City", City: "Colorado Springs", State: "CO", Lat: 38.8339, Lng: -104.8214, Rating: 4.1},
		{ID: 4, Name: "Lone Star Laundry", City: "Austin", State: "TX", Lat: 30.2672, Lng: -97.7431, Rating: 4.0},
	}
}

func newTestServer(t *testing.T, src domain.ListingSource) (*httptest.Server, *memRepo) {
	t.Helper()
	repo := newMemRepo(seed()...)
	q := app.NewQueryService(repo, memGeo{repo: repo}, nil, time.Minute, denver, 0)
	claims := app.NewClaimService(repo, &memClaims{claims: map[string]domain.Claim{}, repo: repo}, nil, denver)
	if src == nil {
		src = q
	}
	h := httpserver.NewHandlers(q, claims,
		app.NewLocationResolver(nil, nil, denver, 25),
		app.NewSearchCascade(src, "CO", denver))

	s := httpserver.New(5*time.Second, nil)
	s.MountHandlers(h)
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return ts, repo
}

func do(t *testing.T, method, u, body string, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, u, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode(t *testing.T, res *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(res.Body).Decode(dst))
}

type listResp struct {
	Listings []struct {
		ID       int64    `json:"id"`
		Name     string   `json:"name"`
		Latitude string   `json:"latitude"`
		Rating   string   `json:"rating"`
		Distance *float64 `json:"distance"`
	} `json:"listings"`
	Count int `json:"count"`
}

type problemResp struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Retry  bool   `json:"retry"`
}

// ---- listings ----

func TestGetListing_ETagAndNotModified(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := do(t, http.MethodGet, ts.URL+"/listings/1", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	etag := res.Header.Get("ETag")
	require.NotEmpty(t, etag)

	var body struct {
		ID       int64  `json:"id"`
		Latitude string `json:"latitude"`
		Rating   string `json:"rating"`
	}
	decode(t, res, &body)
	assert.Equal(t, int64(1), body.ID)
	assert.Equal(t, "39.74", body.Latitude)
	assert.Equal(t, "4.8", body.Rating)

	res = do(t, http.MethodGet, ts.URL+"/listings/1", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, res.StatusCode)
}

func TestGetListing_Errors(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := do(t, http.MethodGet, ts.URL+"/listings/999", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))

	res = do(t, http.MethodGet, ts.URL+"/listings/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestListListings_ByState(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := do(t, http.MethodGet, ts.URL+"/listings?state=Colorado", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body listResp
	decode(t, res, &body)
	assert.Equal(t, 3, body.Count)

	res = do(t, http.MethodGet, ts.URL+"/listings?state=ZZ", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = do(t, http.MethodGet, ts.URL+"/listings", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestListListings_NearbyOrderedByDistance(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := do(t, http.MethodGet, ts.URL+"/listings?lat=39.7392&lng=-104.9903&radius=5", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body listResp
	decode(t, res, &body)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, int64(1), body.Listings[0].ID)
	assert.Equal(t, int64(2), body.Listings[1].ID)
	require.NotNil(t, body.Listings[0].Distance)
	assert.Less(t, *body.Listings[0].Distance, *body.Listings[1].Distance)

	res = do(t, http.MethodGet, ts.URL+"/listings?lat=39.7392&lng=-104.9903&radius=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDefaultCity(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := do(t, http.MethodGet, ts.URL+"/listings/default-city", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body listResp
	decode(t, res, &body)
	assert.Equal(t, 2, body.Count)
}

// ---- search ----

type searchResp struct {
	Location struct {
		Display string  `json:"display"`
		Source  string  `json:"source"`
		Radius  float64 `json:"radius"`
	} `json:"location"`
	Tier   string `json:"tier"`
	Center struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"center"`
	Listings []struct {
		ID int64 `json:"id"`
	} `json:"listings"`
	Count int `json:"count"`
	Total int `json:"total"`
}

func TestSearch_URLCoordsHitNearbyAndSaveCookie(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := do(t, http.MethodGet, ts.URL+"/search?lat=39.7392&lng=-104.9903&radius=5", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body searchResp
	decode(t, res, &body)
	assert.Equal(t, app.TierNearby, body.Tier)
	assert.Equal(t, domain.SourceURL, body.Location.Source)
	assert.Equal(t, 5.0, body.Location.Radius)
	assert.Equal(t, 2, body.Count)

	var saved *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == httpserver.LastLocationCookie {
			saved = c
		}
	}
	require.NotNil(t, saved)
	raw, err := url.QueryUnescape(saved.Value)
	require.NoError(t, err)
	var loc domain.SavedLocation
	require.NoError(t, json.Unmarshal([]byte(raw), &loc))
	assert.InDelta(t, 39.7392, loc.Lat, 1e-9)
}

func TestSearch_SavedCookieFallsBackToState(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	// Houston: nothing within 25 miles, so the TX state tier answers
	val := url.QueryEscape(`{"display":"Houston, TX","lat":29.7604,"lng":-95.3698,"state":"TX"}`)
	res := do(t, http.MethodGet, ts.URL+"/search", "", map[string]string{"Cookie": httpserver.LastLocationCookie + "=" + val})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body searchResp
	decode(t, res, &body)
	assert.Equal(t, domain.SourceSaved, body.Location.Source)
	assert.Equal(t, "Houston, TX", body.Location.Display)
	assert.Equal(t, app.TierState, body.Tier)
	assert.Equal(t, domain.StateCenters["TX"].Lat, body.Center.Lat)
	require.Len(t, body.Listings, 1)
	assert.Equal(t, int64(4), body.Listings[0].ID)
}

func TestSearch_DefaultLocationAndFilter(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := do(t, http.MethodGet, ts.URL+"/search?min_rating=4", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body searchResp
	decode(t, res, &body)
	assert.Equal(t, domain.SourceDefault, body.Location.Source)
	assert.Equal(t, "Denver, CO", body.Location.Display)
	assert.Equal(t, app.TierNearby, body.Tier)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Listings, 1)
	assert.Equal(t, int64(1), body.Listings[0].ID)
}

func TestSearch_AllTiersFail(t *testing.T) {
	ts, _ := newTestServer(t, failingSource{})

	res := do(t, http.MethodGet, ts.URL+"/search", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	var p problemResp
	decode(t, res, &p)
	assert.True(t, p.Retry)
	assert.Equal(t, "couldn't load listings", p.Detail)
}

// ---- claims & premium ----

func TestClaim_SubmitConflictAndValidation(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	body := `{"listingId":2,"userId":"u-1","ownerName":"Pat","email":"pat@example.com"}`
	res := do(t, http.MethodPost, ts.URL+"/business/claim", body, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var c struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		Plan         string `json:"plan"`
		BillingCycle string `json:"billingCycle"`
	}
	decode(t, res, &c)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, domain.ClaimPending, c.Status)
	assert.Equal(t, domain.PlanBasic, c.Plan)
	assert.Equal(t, domain.BillingMonthly, c.BillingCycle)

	res = do(t, http.MethodPost, ts.URL+"/business/claim", body, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = do(t, http.MethodPost, ts.URL+"/business/claim", `{"listingId":3,"userId":"u","ownerName":"P","email":"nope"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = do(t, http.MethodPost, ts.URL+"/business/claim", `{"listingId":3,"bogus":true}`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = do(t, http.MethodPost, ts.URL+"/business/claim", `{"listingId":999,"userId":"u","ownerName":"P","email":"p@example.com"}`, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPremiumFeatures_RequiresActivePremiumClaim(t *testing.T) {
	ts, repo := newTestServer(t, nil)
	edit := `{"description":"Fresh towels daily","hours":"Mon-Sun 7am-9pm"}`
	owner := map[string]string{"X-User-ID": "u-9"}

	res := do(t, http.MethodPut, ts.URL+"/listings/3/premium-features", edit, owner)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	res = do(t, http.MethodPost, ts.URL+"/business/claim",
		`{"listingId":3,"userId":"u-9","ownerName":"Sam","email":"sam@example.com","plan":"premium","billingCycle":"annual"}`, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var c struct {
		ID string `json:"id"`
	}
	decode(t, res, &c)

	res = do(t, http.MethodPut, ts.URL+"/business/claims/"+c.ID, `{"status":"active"}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var active struct {
		Status    string     `json:"status"`
		PeriodEnd *time.Time `json:"periodEnd"`
	}
	decode(t, res, &active)
	assert.Equal(t, domain.ClaimActive, active.Status)
	assert.NotNil(t, active.PeriodEnd)

	res = do(t, http.MethodPut, ts.URL+"/listings/3/premium-features", edit, map[string]string{"X-User-ID": "someone-else"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = do(t, http.MethodPut, ts.URL+"/listings/3/premium-features", edit, owner)
	require.Equal(t, http.StatusOK, res.StatusCode)

	l, err := repo.GetListing(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Fresh towels daily", l.Description)
	assert.True(t, l.IsPremium)
	assert.True(t, l.Schedule.Known)
}

func TestUpdateClaim_Validation(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := do(t, http.MethodPut, ts.URL+"/business/claims/x", `{}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = do(t, http.MethodPut, ts.URL+"/business/claims/x", `{"status":"paused"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = do(t, http.MethodPut, ts.URL+"/business/claims/missing", `{"status":"active"}`, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

// ---- middleware ----

func TestRateLimiter_LocalFallback(t *testing.T) {
	s := httpserver.New(time.Second, httpserver.NewRateLimiter(nil, 60, 1))
	s.Mount("/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	res := do(t, http.MethodGet, ts.URL+"/ping", "", nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = do(t, http.MethodGet, ts.URL+"/ping", "", nil)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("Retry-After"))
	assert.Equal(t, "60", res.Header.Get("X-RateLimit-Limit"))
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	res := do(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
