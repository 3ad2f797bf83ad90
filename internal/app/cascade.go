package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// Tier names, in cascade order.
const (
	TierNearby      = "nearby"
	TierState       = "state"
	TierDefaultCity = "default-city"
)

// SearchQuery is the input shared by every tier.
type SearchQuery struct {
	Coords    domain.Coords
	Radius    float64
	StateCode string
}

// Tier is one step of a fallback search. Center, when set, moves the map once this tier
// produces the result.
type Tier struct {
	Name   string
	Fetch  func(ctx context.Context, q SearchQuery) ([]domain.Listing, error)
	Center func(q SearchQuery) (domain.Coords, bool)
}

type Attempt struct {
	Tier  string
	Count int
	Err   error
}

type SearchResult struct {
	Listings []domain.Listing
	Tier     string
	Center   domain.Coords
	Attempts []Attempt
}

// RunTiers tries each tier in order and stops at the first non-empty success. The last
// tier is terminal: its result is returned even when empty. If it fails too, the error
// wraps domain.ErrExhausted.
func RunTiers(ctx context.Context, q SearchQuery, tiers []Tier, onAttempt func(Attempt)) (SearchResult, error) {
	out := SearchResult{Center: q.Coords}
	if len(tiers) == 0 {
		return out, domain.ErrExhausted
	}

	for i, t := range tiers {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		ls, err := t.Fetch(ctx, q)
		a := Attempt{Tier: t.Name, Count: len(ls), Err: err}
		out.Attempts = append(out.Attempts, a)
		if onAttempt != nil {
			onAttempt(a)
		}

		last := i == len(tiers)-1
		switch {
		case err != nil && last:
			out.Tier = t.Name
			out.Listings = []domain.Listing{}
			return out, fmt.Errorf("%w: %s: %v", domain.ErrExhausted, t.Name, err)
		case err != nil:
			log.Debug().Str("tier", t.Name).Err(err).Msg("search tier failed, falling back")
			continue
		case len(ls) == 0 && !last:
			log.Debug().Str("tier", t.Name).Msg("search tier empty, falling back")
			continue
		}

		out.Tier = t.Name
		out.Listings = ls
		if out.Listings == nil {
			out.Listings = []domain.Listing{}
		}
		if t.Center != nil {
			if c, ok := t.Center(q); ok {
				out.Center = c
			}
		}
		return out, nil
	}
	return out, domain.ErrExhausted
}

// SearchCascade is the nearby → state → default-city fallback over a ListingSource.
type SearchCascade struct {
	src           domain.ListingSource
	fallbackState string
	city          domain.City

	// OnAttempt, if set, observes every tier attempt (metrics, tracing).
	OnAttempt func(Attempt)
}

func NewSearchCascade(src domain.ListingSource, fallbackState string, city domain.City) *SearchCascade {
	fs := domain.NormalizeState(fallbackState)
	if fs == "" {
		fs = city.State
	}
	return &SearchCascade{src: src, fallbackState: fs, city: city}
}

// Tiers returns the ordered strategies; exposed so the order itself is testable.
func (c *SearchCascade) Tiers() []Tier {
	return []Tier{
		{
			Name: TierNearby,
			Fetch: func(ctx context.Context, q SearchQuery) ([]domain.Listing, error) {
				return c.src.Nearby(ctx, q.Coords, q.Radius)
			},
		},
		{
			Name: TierState,
			Fetch: func(ctx context.Context, q SearchQuery) ([]domain.Listing, error) {
				return c.src.ByState(ctx, c.stateFor(q))
			},
			Center: func(q SearchQuery) (domain.Coords, bool) {
				return domain.StateCenter(c.stateFor(q))
			},
		},
		{
			Name: TierDefaultCity,
			Fetch: func(ctx context.Context, _ SearchQuery) ([]domain.Listing, error) {
				return c.src.DefaultCity(ctx)
			},
			Center: func(SearchQuery) (domain.Coords, bool) {
				return c.city.Coords, true
			},
		},
	}
}

func (c *SearchCascade) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	return RunTiers(ctx, q, c.Tiers(), c.OnAttempt)
}

func (c *SearchCascade) stateFor(q SearchQuery) string {
	if s := domain.NormalizeState(q.StateCode); s != "" {
		return s
	}
	return c.fallbackState
}
