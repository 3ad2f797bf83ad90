package app

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

const maxRadiusMiles = 100

// ResolveInput is everything one page load knows about where the user is.
type ResolveInput struct {
	Query    url.Values // lat, lng, radius, mode
	ClientIP string
	Store    domain.LocationStore
}

// LocationResolver picks a display location and coordinates, trying in order: URL
// parameters, the geolocation provider, the saved location, the default city.
type LocationResolver struct {
	geo    domain.GeolocationProvider
	rev    domain.ReverseGeocoder
	city   domain.City
	radius float64
}

// NewLocationResolver accepts nil geo/rev; a nil provider behaves as unsupported.
func NewLocationResolver(geo domain.GeolocationProvider, rev domain.ReverseGeocoder, city domain.City, defaultRadius float64) *LocationResolver {
	if defaultRadius <= 0 {
		defaultRadius = 25
	}
	return &LocationResolver{geo: geo, rev: rev, city: city, radius: defaultRadius}
}

// Resolve never fails: provider errors fall through to the next tier and the default
// city terminates the chain.
func (r *LocationResolver) Resolve(ctx context.Context, in ResolveInput) domain.Resolution {
	res := domain.Resolution{Radius: r.parseRadius(in.Query)}

	switch c, ok := CoordsFromQuery(in.Query); {
	case ok:
		// 1) explicit coordinates; geolocation is never consulted
		res.Coords = c
		res.Source = domain.SourceURL
		res.Display, res.StateCode = r.describe(ctx, c)

	default:
		if c, err := r.locate(ctx, in.ClientIP); err == nil {
			// 2) provider fix
			res.Coords = c
			res.Source = domain.SourceGeolocation
			res.Display, res.StateCode = r.describe(ctx, c)
		} else {
			log.Debug().Err(err).Msg("geolocation unavailable, using saved location")
			// 3) saved location, else default city
			r.fromSaved(ctx, in.Store, &res)
		}
	}

	if strings.TrimSpace(res.Display) == "" {
		res.Display = res.Coords.String()
	}

	if in.Store != nil {
		saved := domain.SavedLocation{
			Display: res.Display,
			Lat:     res.Coords.Lat,
			Lng:     res.Coords.Lng,
			State:   res.StateCode,
		}
		if err := in.Store.Save(ctx, saved); err != nil {
			log.Warn().Err(err).Msg("persist last location failed")
		}
	}
	return res
}

// CoordsFromQuery reads lat/lng from a URL query. Both must parse and be in range.
func CoordsFromQuery(q url.Values) (domain.Coords, bool) {
	if q == nil {
		return domain.Coords{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	if err != nil {
		return domain.Coords{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(q.Get("lng")), 64)
	if err != nil {
		return domain.Coords{}, false
	}
	c := domain.Coords{Lat: lat, Lng: lng}
	return c, c.Valid()
}

func (r *LocationResolver) parseRadius(q url.Values) float64 {
	if q == nil {
		return r.radius
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(q.Get("radius")), 64)
	if err != nil || v <= 0 {
		return r.radius
	}
	if v > maxRadiusMiles {
		return maxRadiusMiles
	}
	return v
}

func (r *LocationResolver) locate(ctx context.Context, clientIP string) (domain.Coords, error) {
	if r.geo == nil {
		return domain.Coords{}, domain.ErrUnsupported
	}
	c, err := r.geo.CurrentPosition(ctx, clientIP)
	if err != nil {
		return domain.Coords{}, err
	}
	if !c.Valid() {
		return domain.Coords{}, domain.ErrInvalid
	}
	return c, nil
}

// describe asks the reverse geocoder for a display string and state; on failure the
// coordinates themselves are the display string.
func (r *LocationResolver) describe(ctx context.Context, c domain.Coords) (string, string) {
	if r.rev == nil {
		return c.String(), ""
	}
	p, err := r.rev.ReverseGeocode(ctx, c)
	if err != nil {
		log.Debug().Err(err).Str("coords", c.String()).Msg("reverse geocode failed")
		return c.String(), ""
	}
	display := strings.TrimSpace(p.FormattedAddress)
	if display == "" {
		display = c.String()
	}
	return display, domain.NormalizeState(p.State)
}

func (r *LocationResolver) fromSaved(ctx context.Context, store domain.LocationStore, res *domain.Resolution) {
	if store != nil {
		saved, ok, err := store.Load(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("load saved location failed")
		}
		if err == nil && ok && strings.TrimSpace(saved.Display) != "" {
			res.Source = domain.SourceSaved
			res.Display = saved.Display
			res.StateCode = domain.NormalizeState(saved.State)
			if saved.HasCoords() {
				res.Coords = saved.Coords()
				return
			}
			// legacy entry without coordinates
			res.Coords = r.city.Coords
			if res.StateCode == "" {
				res.StateCode = r.city.State
			}
			return
		}
	}

	res.Source = domain.SourceDefault
	res.Display = r.city.Display()
	res.Coords = r.city.Coords
	res.StateCode = r.city.State
}
