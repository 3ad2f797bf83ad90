package listingapi

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/observability"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// Client talks to a remote Listing API. It implements domain.ListingSource, so the
// search cascade can run against it directly.
type Client struct {
	base    string
	hc      *http.Client
	key     string
	rl      *rate.Limiter
	retries int
}

func New(base, key string, rps int) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid listing API base URL %q", base)
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{Timeout: 20 * time.Second},
		key:     key,
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
		retries: 3,
	}, nil
}

// maxRetryWait caps a server-provided Retry-After.
const maxRetryWait = 5 * time.Second

// ---- Public API ----

// Nearby, ByState and DefaultCity are cascade tiers: one attempt each, a failure is
// the caller's signal to move on.

func (c *Client) Nearby(ctx context.Context, at domain.Coords, radiusMiles float64) ([]domain.Listing, error) {
	q := url.Values{}
	q.Set("lat", domain.FormatDecimal(at.Lat))
	q.Set("lng", domain.FormatDecimal(at.Lng))
	q.Set("radius", domain.FormatDecimal(radiusMiles))
	return c.list(ctx, "nearby", "/listings?"+q.Encode())
}

func (c *Client) ByState(ctx context.Context, state string) ([]domain.Listing, error) {
	return c.list(ctx, "state", "/listings?state="+url.QueryEscape(state))
}

func (c *Client) DefaultCity(ctx context.Context) ([]domain.Listing, error) {
	return c.list(ctx, "default-city", "/listings/default-city")
}

func (c *Client) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	var out ListingJSON
	if err := c.get(ctx, "listing", fmt.Sprintf("%s/listings/%d", c.base, id), c.retries, &out); err != nil {
		return domain.Listing{}, err
	}
	return out.ToDomain(), nil
}

func (c *Client) list(ctx context.Context, endpoint, path string) ([]domain.Listing, error) {
	var out ListResponse
	if err := c.get(ctx, endpoint, c.base+path, 0, &out); err != nil {
		return nil, err
	}
	return out.ToDomain(), nil
}

// ---- Internals ----

// get performs a GET with client-side rate limiting and JSON decode into out.
// Up to retries extra attempts are made on 429 and transient 5xx, honoring Retry-After
// up to maxRetryWait.
func (c *Client) get(ctx context.Context, endpoint, u string, retries int, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i <= retries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		if c.key != "" {
			req.Header.Set("X-API-Key", c.key)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "laundrylocator/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("listingapi", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < retries && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("listingapi", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			wait = min(wait, maxRetryWait)
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < retries && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			return problemError(resp)
		}
	}
	return lastErr
}

// problemError reads an application/problem+json body when there is one.
func problemError(resp *http.Response) error {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var p struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &p) == nil && (p.Detail != "" || p.Title != "") {
		msg = p.Detail
		if msg == "" {
			msg = p.Title
		}
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = domain.ErrInvalid
	case http.StatusForbidden:
		kind = domain.ErrForbidden
	case http.StatusConflict:
		kind = domain.ErrConflict
	default:
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s", kind, msg)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

var _ domain.ListingSource = (*Client)(nil)
