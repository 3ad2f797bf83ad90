package domain

// Sort keys accepted by Filter.SortBy.
const (
	SortDistance = "distance"
	SortRating   = "rating"
	SortName     = "name"
	SortServices = "services"
)

// Filter is the user's transient narrowing of a result set. It is never persisted.
type Filter struct {
	OpenNow   bool
	MinRating float64
	Services  []string
	SortBy    string
}

// IsZero is true when the filter neither narrows nor reorders anything.
func (f Filter) IsZero() bool {
	return !f.OpenNow && f.MinRating <= 0 && len(f.Services) == 0 && f.SortBy == ""
}
