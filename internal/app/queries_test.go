package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/app"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

func TestGetListing_CacheMissThenHit(t *testing.T) {
	repo := newFakeRepo(domain.Listing{ID: 42, Name: "Suds City", State: "CO"})
	cache := &fakeCache{}
	q := app.NewQueryService(repo, nil, cache, 10*time.Minute, denver, 0)

	l, err := q.GetListing(context.Background(), 42)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if l.ID != 42 || l.Name != "Suds City" {
		t.Fatalf("unexpected listing: %+v", l)
	}

	// mutate repo to ensure second read comes from cache
	repo.listings[42] = domain.Listing{ID: 42, Name: "SHOULD NOT SEE THIS"}

	l2, err := q.GetListing(context.Background(), 42)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if l2.Name != "Suds City" {
		t.Fatalf("expected cached name, got %s", l2.Name)
	}
	if repo.gets != 1 {
		t.Fatalf("expected one repo read, got %d", repo.gets)
	}
}

func TestGetListing_NotFound(t *testing.T) {
	q := app.NewQueryService(newFakeRepo(), nil, &fakeCache{}, time.Minute, denver, 0)
	if _, err := q.GetListing(context.Background(), 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNearby_KeepsIndexOrderAndDistance(t *testing.T) {
	repo := newFakeRepo(
		domain.Listing{ID: 1, Name: "A"},
		domain.Listing{ID: 2, Name: "B"},
	)
	geo := &fakeGeo{hits: []domain.GeoHit{{ID: 2, Distance: 0.4}, {ID: 99, Distance: 0.9}, {ID: 1, Distance: 1.5}}}
	q := app.NewQueryService(repo, geo, nil, time.Minute, denver, 0)

	out, err := q.Nearby(context.Background(), domain.Coords{Lat: 39.7, Lng: -104.9}, 5)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out) != 2 || out[0].ID != 2 || out[1].ID != 1 {
		t.Fatalf("unexpected order: %+v", out)
	}
	if out[0].Distance == nil || *out[0].Distance != 0.4 {
		t.Fatalf("distance not carried: %+v", out[0].Distance)
	}
}

func TestNearby_NoHitsIsEmptyNotNil(t *testing.T) {
	q := app.NewQueryService(newFakeRepo(), &fakeGeo{}, nil, time.Minute, denver, 0)
	out, err := q.Nearby(context.Background(), denver.Coords, 5)
	if err != nil || out == nil || len(out) != 0 {
		t.Fatalf("expected empty slice, got %v %v", out, err)
	}
}

func TestByState_CacheAndInvalidate(t *testing.T) {
	repo := newFakeRepo(
		domain.Listing{ID: 1, Name: "Wash Co", City: "Denver", State: "CO"},
		domain.Listing{ID: 2, Name: "Bubbles", City: "Boulder", State: "CO"},
	)
	cache := &fakeCache{}
	q := app.NewQueryService(repo, nil, cache, time.Minute, denver, 0)
	ctx := context.Background()

	out, err := q.ByState(ctx, "Colorado")
	if err != nil || len(out) != 2 {
		t.Fatalf("unexpected: %v %v", out, err)
	}
	if _, err := q.ByState(ctx, "co"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(repo.stateCalls) != 1 || repo.stateCalls[0] != "CO" {
		t.Fatalf("expected one repo call for CO, got %v", repo.stateCalls)
	}

	if _, err := q.DefaultCity(ctx); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !cache.has("state:CO") || !cache.has("city:default") {
		t.Fatal("expected state and city entries cached")
	}

	q.Invalidate(ctx, repo.listings[1])
	if cache.has("state:CO") || cache.has("city:default") || cache.has("listing:1") {
		t.Fatalf("expected eviction, still have %v", cache.store)
	}
}

func TestByState_UnknownState(t *testing.T) {
	q := app.NewQueryService(newFakeRepo(), nil, nil, time.Minute, denver, 0)
	if _, err := q.ByState(context.Background(), "Atlantis"); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
