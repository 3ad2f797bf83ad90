package domain

import (
	"fmt"
	"math"
	"strings"
)

type Coords struct{ Lat, Lng float64 }

// Valid reports whether c is a finite WGS84 coordinate pair.
func (c Coords) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coords) String() string { return fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lng) }

const earthRadiusMiles = 3958.8

// DistanceMiles is the great-circle (haversine) distance between a and b.
func DistanceMiles(a, b Coords) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Where a Resolution came from.
const (
	SourceURL         = "url"
	SourceGeolocation = "geolocation"
	SourceSaved       = "saved"
	SourceDefault     = "default"
)

// Resolution is the best-effort location for one page load. Coords is always set and
// Display is never blank.
type Resolution struct {
	Display   string
	Coords    Coords
	StateCode string
	Radius    float64
	Source    string
}

// SavedLocation is what gets persisted between loads under a single key.
type SavedLocation struct {
	Display string  `json:"display"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	State   string  `json:"state,omitempty"`
}

func (s SavedLocation) Coords() Coords { return Coords{Lat: s.Lat, Lng: s.Lng} }

// HasCoords is false for legacy entries that only stored a display string.
func (s SavedLocation) HasCoords() bool {
	return (s.Lat != 0 || s.Lng != 0) && s.Coords().Valid()
}

// City is a fixed place used as a terminal fallback.
type City struct {
	Name   string
	State  string
	Coords Coords
}

func (c City) Display() string { return c.Name + ", " + c.State }

// StateCenters holds a representative map center for each state (plus DC).
var StateCenters = map[string]Coords{
	"AL": {32.806671, -86.791130},
	"AK": {61.370716, -152.404419},
	"AZ": {33.729759, -111.431221},
	"AR": {34.969704, -92.373123},
	"CA": {36.116203, -119.681564},
	"CO": {39.059811, -105.311104},
	"CT": {41.597782, -72.755371},
	"DE": {39.318523, -75.507141},
	"DC": {38.897438, -77.026817},
	"FL": {27.766279, -81.686783},
	"GA": {33.040619, -83.643074},
	"HI": {21.094318, -157.498337},
	"ID": {44.240459, -114.478828},
	"IL": {40.349457, -88.986137},
	"IN": {39.849426, -86.258278},
	"IA": {42.011539, -93.210526},
	"KS": {38.526600, -96.726486},
	"KY": {37.668140, -84.670067},
	"LA": {31.169546, -91.867805},
	"ME": {44.693947, -69.381927},
	"MD": {39.063946, -76.802101},
	"MA": {42.230171, -71.530106},
	"MI": {43.326618, -84.536095},
	"MN": {45.694454, -93.900192},
	"MS": {32.741646, -89.678696},
	"MO": {38.456085, -92.288368},
	"MT": {46.921925, -110.454353},
	"NE": {41.125370, -98.268082},
	"NV": {38.313515, -117.055374},
	"NH": {43.452492, -71.563896},
	"NJ": {40.298904, -74.521011},
	"NM": {34.840515, -106.248482},
	"NY": {42.165726, -74.948051},
	"NC": {35.630066, -79.806419},
	"ND": {47.528912, -99.784012},
	"OH": {40.388783, -82.764915},
	"OK": {35.565342, -96.928917},
	"OR": {44.572021, -122.070938},
	"PA": {40.590752, -77.209755},
	"RI": {41.680893, -71.511780},
	"SC": {33.856892, -80.945007},
	"SD": {44.299782, -99.438828},
	"TN": {35.747845, -86.692345},
	"TX": {31.054487, -97.563461},
	"UT": {40.150032, -111.862434},
	"VT": {44.045876, -72.710686},
	"VA": {37.769337, -78.169968},
	"WA": {47.400902, -121.490494},
	"WV": {38.491226, -80.954453},
	"WI": {44.268543, -89.616508},
	"WY": {42.755966, -107.302490},
}

var stateNames = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"district of columbia": "DC", "florida": "FL", "georgia": "GA", "hawaii": "HI",
	"idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME",
	"maryland": "MD", "massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT", "nebraska": "NE",
	"nevada": "NV", "new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM",
	"new york": "NY", "north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA", "rhode island": "RI",
	"south carolina": "SC", "south dakota": "SD", "tennessee": "TN", "texas": "TX",
	"utah": "UT", "vermont": "VT", "virginia": "VA", "washington": "WA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

// NormalizeState maps "Colorado", "co", "US-CO" to "CO". Unknown input yields "".
func NormalizeState(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	up := strings.ToUpper(strings.TrimPrefix(strings.ToUpper(s), "US-"))
	if _, ok := StateCenters[up]; ok {
		return up
	}
	return stateNames[strings.ToLower(s)]
}

// StateCenter returns the representative coordinate of a state code.
func StateCenter(code string) (Coords, bool) {
	c, ok := StateCenters[NormalizeState(code)]
	return c, ok
}
