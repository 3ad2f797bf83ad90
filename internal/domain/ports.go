package domain

import "context"

type ListingRepository interface {
	// Write paths
	UpsertListing(ctx context.Context, l *Listing) error
	UpdatePremiumFeatures(ctx context.Context, id int64, pf PremiumFeatures) (Listing, error)
	LogImportMiss(ctx context.Context, source string, row int, reason string) error

	// Read paths
	GetListing(ctx context.Context, id int64) (Listing, error)
	GetListingsByIDs(ctx context.Context, ids []int64) ([]Listing, error)
	ListByState(ctx context.Context, state string, limit int) ([]Listing, error)
	ListByCity(ctx context.Context, city, state string, limit int) ([]Listing, error)
	ListCoords(ctx context.Context, afterID int64, limit int) ([]GeoPoint, error)
}

type ClaimRepository interface {
	// CreateClaim fails with ErrConflict while the listing has a pending or active claim.
	CreateClaim(ctx context.Context, c Claim) error
	GetClaim(ctx context.Context, id string) (Claim, error)
	// UpdateClaim stores c and applies p to its listing in one unit: both or neither.
	UpdateClaim(ctx context.Context, c Claim, p Promotion) error
	ActiveClaim(ctx context.Context, listingID int64) (Claim, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// GeoIndex answers radius queries over listing coordinates.
type GeoIndex interface {
	Add(ctx context.Context, pts ...GeoPoint) error
	Within(ctx context.Context, center Coords, radiusMiles float64, limit int) ([]GeoHit, error)
}

type GeoPoint struct {
	ID     int64
	Coords Coords
}

type GeoHit struct {
	ID       int64
	Distance float64 // miles
}

// GeolocationProvider locates the caller. clientIP may be empty, meaning "whoever is
// asking". Implementations enforce their own timeout.
type GeolocationProvider interface {
	CurrentPosition(ctx context.Context, clientIP string) (Coords, error)
}

type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, c Coords) (Place, error)
}

type Place struct {
	FormattedAddress string
	State            string // two-letter code, may be empty
}

// LocationStore persists the last resolved location under a single key.
type LocationStore interface {
	Load(ctx context.Context) (SavedLocation, bool, error)
	Save(ctx context.Context, loc SavedLocation) error
}

// ListingSource is what the search cascade queries, tier by tier.
type ListingSource interface {
	Nearby(ctx context.Context, c Coords, radiusMiles float64) ([]Listing, error)
	ByState(ctx context.Context, state string) ([]Listing, error)
	DefaultCity(ctx context.Context) ([]Listing, error)
}
