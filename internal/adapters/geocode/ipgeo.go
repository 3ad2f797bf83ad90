package geocode

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// IPLocator resolves a client IP to coordinates with an ip-api style endpoint:
// GET {base}/json/{ip} → {"status":"success","lat":..,"lon":..}.
type IPLocator struct {
	base    string
	hc      *http.Client
	lim     *rate.Limiter
	timeout time.Duration
}

// ip-api's free tier allows 45 requests per minute.
const ipAPIPerMinute = 45

func NewIPLocator(base string, timeout time.Duration) *IPLocator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &IPLocator{
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{},
		lim:     rate.NewLimiter(rate.Every(time.Minute/ipAPIPerMinute), 5),
		timeout: timeout,
	}
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// CurrentPosition fails with domain.ErrUnsupported for private or loopback addresses; the
// provider cannot place those.
func (l *IPLocator) CurrentPosition(ctx context.Context, clientIP string) (domain.Coords, error) {
	if ip := net.ParseIP(clientIP); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()) {
		return domain.Coords{}, domain.ErrUnsupported
	}

	var out ipAPIResponse
	url := fmt.Sprintf("%s/json/%s?fields=status,message,lat,lon", l.base, clientIP)
	if err := getJSON(ctx, l.hc, l.lim, "ipgeo", "json", url, l.timeout, &out); err != nil {
		return domain.Coords{}, err
	}
	if out.Status != "success" {
		return domain.Coords{}, fmt.Errorf("%w: %s", domain.ErrUnsupported, out.Message)
	}
	c := domain.Coords{Lat: out.Lat, Lng: out.Lon}
	if !c.Valid() {
		return domain.Coords{}, domain.ErrInvalid
	}
	return c, nil
}
