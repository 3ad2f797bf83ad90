package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

const userAgent = "laundrylocator/1.0"

// Reverse is a Nominatim-compatible reverse geocoder. Nominatim's usage policy allows
// one request per second.
type Reverse struct {
	base    string
	hc      *http.Client
	lim     *rate.Limiter
	timeout time.Duration
}

func NewReverse(base string, timeout time.Duration) *Reverse {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reverse{
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{},
		lim:     rate.NewLimiter(rate.Every(time.Second), 1),
		timeout: timeout,
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		City     string `json:"city"`
		Town     string `json:"town"`
		Village  string `json:"village"`
		Hamlet   string `json:"hamlet"`
		County   string `json:"county"`
		State    string `json:"state"`
		ISOLvl4  string `json:"ISO3166-2-lvl4"`
		Postcode string `json:"postcode"`
	} `json:"address"`
}

// ReverseGeocode returns "City, ST" when both parts are known, else the provider's display name.
func (r *Reverse) ReverseGeocode(ctx context.Context, c domain.Coords) (domain.Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", domain.FormatDecimal(c.Lat))
	q.Set("lon", domain.FormatDecimal(c.Lng))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	var out nominatimResponse
	if err := getJSON(ctx, r.hc, r.lim, "reverse", "reverse", r.base+"/reverse?"+q.Encode(), r.timeout, &out); err != nil {
		return domain.Place{}, err
	}
	if out.Error != "" {
		return domain.Place{}, fmt.Errorf("%w: %s", domain.ErrNotFound, out.Error)
	}

	state := domain.NormalizeState(out.Address.ISOLvl4)
	if state == "" {
		state = domain.NormalizeState(out.Address.State)
	}
	locality := firstNonEmpty(out.Address.City, out.Address.Town, out.Address.Village, out.Address.Hamlet, out.Address.County)

	p := domain.Place{FormattedAddress: strings.TrimSpace(out.DisplayName), State: state}
	if locality != "" && state != "" {
		p.FormattedAddress = locality + ", " + state
	}
	if p.FormattedAddress == "" {
		return domain.Place{}, fmt.Errorf("%w: empty reverse geocode", domain.ErrNotFound)
	}
	return p, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
