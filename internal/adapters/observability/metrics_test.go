package observability_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so the vectors show up
	observability.ObserveHTTP("/listings", "GET", 200, 12*time.Millisecond)
	observability.ObserveTier("nearby", 0, nil)
	observability.ObserveTier("state", 0, errors.New("db down"))
	observability.ObserveLocation("default")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, want := range []string{
		"laundry_http_requests_total",
		`laundry_search_tier_attempts_total{outcome="empty",tier="nearby"} 1`,
		`laundry_search_tier_attempts_total{outcome="error",tier="state"} 1`,
		`laundry_location_resolutions_total{source="default"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
