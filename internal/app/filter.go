package app

import (
	"sort"
	"strings"
	"time"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// ApplyFilter narrows and orders an already-fetched result set. It never mutates its
// input; equal sort keys keep their input order.
func ApplyFilter(in []domain.Listing, f domain.Filter, origin domain.Coords, now time.Time) []domain.Listing {
	want := normalizeServices(f.Services)

	out := make([]domain.Listing, 0, len(in))
	for _, l := range in {
		if f.MinRating > 0 && l.Rating < f.MinRating {
			continue
		}
		if len(want) > 0 && !offersAll(l.Services, want) {
			continue
		}
		if f.OpenNow && !l.Schedule.IsOpen(now) {
			continue
		}
		out = append(out, l)
	}

	switch f.SortBy {
	case domain.SortDistance:
		sort.SliceStable(out, func(i, j int) bool {
			return distanceFrom(out[i], origin) < distanceFrom(out[j], origin)
		})
	case domain.SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	case domain.SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	case domain.SortServices:
		sort.SliceStable(out, func(i, j int) bool { return len(out[i].Services) > len(out[j].Services) })
	}
	return out
}

// ParseFilter reads open_now, min_rating, services (comma separated) and sort.
func ParseFilter(get func(string) string) domain.Filter {
	f := domain.Filter{
		OpenNow:   get("open_now") == "true" || get("open_now") == "1",
		MinRating: domain.ParseRating(get("min_rating")),
	}
	if s := strings.TrimSpace(get("services")); s != "" {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				f.Services = append(f.Services, p)
			}
		}
	}
	switch k := strings.ToLower(strings.TrimSpace(get("sort"))); k {
	case domain.SortDistance, domain.SortRating, domain.SortName, domain.SortServices:
		f.SortBy = k
	}
	return f
}

func distanceFrom(l domain.Listing, origin domain.Coords) float64 {
	if l.Distance != nil {
		return *l.Distance
	}
	return domain.DistanceMiles(origin, l.Coords())
}

func normalizeServices(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func offersAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
