package redisad

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// GeoIndex keeps listing coordinates in one sorted set and answers radius queries
// with GEORADIUS. Members are listing ids.
type GeoIndex struct {
	c   *redis.Client
	key string
}

func NewGeoIndex(c *redis.Client, key string) *GeoIndex {
	if key == "" {
		key = "geo:listings"
	}
	return &GeoIndex{c: c, key: key}
}

func (g *GeoIndex) Add(ctx context.Context, pts ...domain.GeoPoint) error {
	if len(pts) == 0 {
		return nil
	}
	locs := make([]*redis.GeoLocation, 0, len(pts))
	for _, p := range pts {
		locs = append(locs, &redis.GeoLocation{
			Name:      strconv.FormatInt(p.ID, 10),
			Latitude:  p.Coords.Lat,
			Longitude: p.Coords.Lng,
		})
	}
	if err := g.c.GeoAdd(ctx, g.key, locs...).Err(); err != nil {
		return fmt.Errorf("geoadd: %w", err)
	}
	return nil
}

// Within returns ids nearest first, with distances in miles.
func (g *GeoIndex) Within(ctx context.Context, center domain.Coords, radiusMiles float64, limit int) ([]domain.GeoHit, error) {
	res, err := g.c.GeoRadius(ctx, g.key, center.Lng, center.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusMiles,
		Unit:     "mi",
		WithDist: true,
		Count:    limit,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius: %w", err)
	}

	out := make([]domain.GeoHit, 0, len(res))
	for _, loc := range res {
		id, err := strconv.ParseInt(loc.Name, 10, 64)
		if err != nil {
			// not ours
			continue
		}
		out = append(out, domain.GeoHit{ID: id, Distance: loc.Dist})
	}
	return out, nil
}
