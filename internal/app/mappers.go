package app

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

/********** alias registry (single source of truth for import columns) **********/

var listingAliases = map[string][]string{
	"id":           {"id", "listing_id", "place_id_num"},
	"name":         {"name", "business_name", "businessName", "title"},
	"address":      {"address", "street", "street_address", "full_address", "address.line", "location.address"},
	"city":         {"city", "locality", "town", "address.city", "location.city"},
	"state":        {"state", "state_code", "region", "us_state", "address.state", "location.state"},
	"zip":          {"zip", "zipcode", "zip_code", "postal_code", "postcode", "address.zip"},
	"phone":        {"phone", "phone_number", "telephone", "tel"},
	"website":      {"website", "site", "url", "web"},
	"hours":        {"hours", "working_hours", "opening_hours", "hours_text"},
	"description":  {"description", "about", "summary"},
	"services":     {"services", "amenities", "features", "subtypes"},
	"rating":       {"rating", "stars", "score", "average_rating"},
	"review_count": {"review_count", "reviews_count", "reviews", "reviewCount"},
	"lat":          {"lat", "latitude", "location.lat", "geo.lat"},
	"lng":          {"lng", "lon", "long", "longitude", "location.lng", "location.lon", "geo.lng"},
	"premium":      {"is_premium", "isPremium", "premium"},
	"featured":     {"is_featured", "isFeatured", "featured"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps. Flat keys win over nesting so CSV
// headers containing dots still resolve.
func lookupAny(m map[string]any, path string) any {
	if v, ok := m[path]; ok {
		return v
	}
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// firstAlias: first non-empty string for a named alias set.
func firstAlias(m map[string]any, key string) string {
	for _, p := range listingAliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "4,5").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

// firstBoolFlexible: true/false from JSON bools, numbers or strings like "yes", "1", "TRUE".
func firstBoolFlexible(m map[string]any, paths ...string) bool {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case bool:
			return v
		case float64:
			return v != 0
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "":
				continue
			case "1", "true", "yes", "y", "t":
				return true
			default:
				return false
			}
		}
	}
	return false
}

// firstSliceStrings accepts a JSON array (strings or {name}) or a delimited string.
func firstSliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		var out []string
		switch raw := lookupAny(m, k).(type) {
		case []any:
			for _, it := range raw {
				switch t := it.(type) {
				case string:
					out = append(out, t)
				case map[string]any:
					if n, ok := t["name"].(string); ok {
						out = append(out, n)
					}
				}
			}
		case string:
			out = strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
		}
		out = dedupeTrim(out)
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func dedupeTrim(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// hoursText flattens {"Monday": "6AM-10PM", ...} objects into "monday 6AM-10PM; ...".
func hoursText(m map[string]any) string {
	for _, p := range listingAliases["hours"] {
		switch v := lookupAny(m, p).(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			days := make([]string, 0, len(v))
			for d := range v {
				days = append(days, d)
			}
			sort.Strings(days)
			parts := make([]string, 0, len(days))
			for _, d := range days {
				switch t := v[d].(type) {
				case string:
					parts = append(parts, d+" "+t)
				case []any:
					if len(t) > 0 {
						if s, ok := t[0].(string); ok {
							parts = append(parts, d+" "+s)
						}
					}
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}
	return ""
}

var slugJunk = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify builds a URL slug from name, city and state.
func Slugify(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, " "))
	return strings.Trim(slugJunk.ReplaceAllString(joined, "-"), "-")
}

/********** listing mapper **********/

// mapListing turns one import record into a Listing. Rating and schedule are parsed here,
// once; nothing downstream re-reads the raw strings.
func mapListing(row map[string]any) (domain.Listing, error) {
	l := domain.Listing{
		Name:        firstAlias(row, "name"),
		Address:     firstAlias(row, "address"),
		City:        firstAlias(row, "city"),
		State:       domain.NormalizeState(firstAlias(row, "state")),
		Zip:         firstAlias(row, "zip"),
		Phone:       firstAlias(row, "phone"),
		Website:     firstAlias(row, "website"),
		Description: firstAlias(row, "description"),
		Hours:       hoursText(row),
		Services:    firstSliceStrings(row, listingAliases["services"]...),
		Rating:      domain.ParseRating(firstAlias(row, "rating")),
		IsPremium:   firstBoolFlexible(row, listingAliases["premium"]...),
		IsFeatured:  firstBoolFlexible(row, listingAliases["featured"]...),
	}
	if l.Name == "" {
		return domain.Listing{}, fmt.Errorf("%w: missing name", domain.ErrInvalid)
	}
	if id := firstInt64Flexible(row, listingAliases["id"]...); id != nil {
		l.ID = *id
	}
	if n := firstInt64Flexible(row, listingAliases["review_count"]...); n != nil && *n > 0 {
		l.ReviewCount = int(*n)
	}

	lat := getFloatFlexible(row, listingAliases["lat"]...)
	lng := getFloatFlexible(row, listingAliases["lng"]...)
	if lat == nil || lng == nil {
		return domain.Listing{}, fmt.Errorf("%w: missing coordinates", domain.ErrInvalid)
	}
	if c := (domain.Coords{Lat: *lat, Lng: *lng}); !c.Valid() {
		return domain.Listing{}, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalid)
	}
	l.Lat, l.Lng = *lat, *lng

	l.Schedule = domain.ParseSchedule(l.Hours)
	l.Slug = Slugify(l.Name, l.City, l.State)
	return l, nil
}
