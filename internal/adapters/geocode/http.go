package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/observability"
)

const defaultTimeout = 5 * time.Second

// getJSON makes exactly one attempt, bounded by timeout. Location lookups never retry.
// Waiting on lim counts against the same timeout.
func getJSON(ctx context.Context, hc *http.Client, lim *rate.Limiter, service, endpoint, url string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limited: %w", service, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, endpoint, 0, time.Since(start))
		return fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: bad status %d: %s", service, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
