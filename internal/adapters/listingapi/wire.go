package listingapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// ListingJSON is the Listing API wire shape. Coordinates and rating travel as decimal
// strings; they are parsed once, in ToDomain.
type ListingJSON struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Zip         string    `json:"zip"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Latitude    string    `json:"latitude"`
	Longitude   string    `json:"longitude"`
	Hours       string    `json:"hours"`
	Services    []string  `json:"services"`
	Description string    `json:"description,omitempty"`
	Rating      string    `json:"rating"`
	ReviewCount int       `json:"reviewCount"`
	IsPremium   bool      `json:"isPremium"`
	IsFeatured  bool      `json:"isFeatured"`
	ClaimedBy   *string   `json:"claimedBy,omitempty"`
	Distance    *float64  `json:"distance,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ListResponse struct {
	Listings []ListingJSON `json:"listings"`
	Count    int           `json:"count"`
}

func FromDomain(l domain.Listing) ListingJSON {
	services := l.Services
	if services == nil {
		services = []string{}
	}
	return ListingJSON{
		ID:          l.ID,
		Name:        l.Name,
		Slug:        l.Slug,
		Address:     l.Address,
		City:        l.City,
		State:       l.State,
		Zip:         l.Zip,
		Phone:       l.Phone,
		Website:     l.Website,
		Latitude:    domain.FormatDecimal(l.Lat),
		Longitude:   domain.FormatDecimal(l.Lng),
		Hours:       l.Hours,
		Services:    services,
		Description: l.Description,
		Rating:      domain.FormatDecimal(l.Rating),
		ReviewCount: l.ReviewCount,
		IsPremium:   l.IsPremium,
		IsFeatured:  l.IsFeatured,
		ClaimedBy:   l.ClaimedBy,
		Distance:    l.Distance,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func FromDomainList(ls []domain.Listing) ListResponse {
	out := ListResponse{Listings: make([]ListingJSON, len(ls)), Count: len(ls)}
	for i, l := range ls {
		out.Listings[i] = FromDomain(l)
	}
	return out
}

// ToDomain parses the decimal strings and the hours text. Unparseable numbers read as 0.
func (j ListingJSON) ToDomain() domain.Listing {
	return domain.Listing{
		ID:          j.ID,
		Name:        j.Name,
		Slug:        j.Slug,
		Address:     j.Address,
		City:        j.City,
		State:       j.State,
		Zip:         j.Zip,
		Phone:       j.Phone,
		Website:     j.Website,
		Lat:         parseDecimal(j.Latitude),
		Lng:         parseDecimal(j.Longitude),
		Hours:       j.Hours,
		Schedule:    domain.ParseSchedule(j.Hours),
		Services:    j.Services,
		Description: j.Description,
		Rating:      domain.ParseRating(j.Rating),
		ReviewCount: j.ReviewCount,
		IsPremium:   j.IsPremium,
		IsFeatured:  j.IsFeatured,
		ClaimedBy:   j.ClaimedBy,
		Distance:    j.Distance,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func (r ListResponse) ToDomain() []domain.Listing {
	out := make([]domain.Listing, len(r.Listings))
	for i, j := range r.Listings {
		out[i] = j.ToDomain()
	}
	return out
}

func parseDecimal(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
