package domain

import "time"

type Listing struct {
	ID          int64
	Name        string
	Slug        string
	Address     string
	City        string
	State       string // two-letter code
	Zip         string
	Phone       string
	Website     string
	Lat, Lng    float64
	Hours       string   // as imported / edited
	Schedule    Schedule // parsed from Hours once, at write time
	Services    []string
	Description string
	Rating      float64
	ReviewCount int
	IsPremium   bool
	IsFeatured  bool
	ClaimedBy   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Distance in miles from the search origin; only set by nearby search.
	Distance *float64
}

func (l Listing) Coords() Coords { return Coords{Lat: l.Lat, Lng: l.Lng} }

// PremiumFeatures is the editable subset of a premium listing.
type PremiumFeatures struct {
	Description *string
	Website     *string
	Phone       *string
	Hours       *string
	Services    []string
	IsFeatured  *bool
}

// Claim statuses and plans.
const (
	ClaimPending  = "pending"
	ClaimActive   = "active"
	ClaimCanceled = "canceled"

	PlanBasic    = "basic"
	PlanPremium  = "premium"
	PlanFeatured = "featured"

	BillingMonthly = "monthly"
	BillingAnnual  = "annual"
)

// Claim ties a user to a Listing and carries the subscription state.
type Claim struct {
	ID           string
	ListingID    int64
	UserID       string
	OwnerName    string
	Email        string
	Phone        string
	Status       string
	Plan         string
	BillingCycle string
	PeriodStart  *time.Time
	PeriodEnd    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GrantsPremium reports whether an active claim on this plan unlocks premium edits.
func (c Claim) GrantsPremium() bool {
	return c.Status == ClaimActive && (c.Plan == PlanPremium || c.Plan == PlanFeatured)
}

func (c Claim) GrantsFeatured() bool {
	return c.Status == ClaimActive && c.Plan == PlanFeatured
}

// Promotion is the listing state a claim implies.
type Promotion struct {
	ClaimedBy *string
	Premium   bool
	Featured  bool
}

func (c Claim) Promotion() Promotion {
	p := Promotion{Premium: c.GrantsPremium(), Featured: c.GrantsFeatured()}
	if c.Status == ClaimActive {
		owner := c.UserID
		p.ClaimedBy = &owner
	}
	return p
}

// ClaimUpdate is a subscription-management action. Empty fields are left untouched.
type ClaimUpdate struct {
	Status       string
	Plan         string
	BillingCycle string
}
