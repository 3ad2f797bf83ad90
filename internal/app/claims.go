package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

// ClaimRequest is a business owner's claim on a listing.
type ClaimRequest struct {
	ListingID    int64
	UserID       string
	OwnerName    string
	Email        string
	Phone        string
	Plan         string
	BillingCycle string
}

// ClaimService handles claim submission, subscription changes and premium edits. Every
// write that changes what a listing looks like evicts its cache entries.
type ClaimService struct {
	listings domain.ListingRepository
	claims   domain.ClaimRepository
	cache    domain.Cache
	city     domain.City
	now      func() time.Time
}

func NewClaimService(l domain.ListingRepository, c domain.ClaimRepository, cache domain.Cache, city domain.City) *ClaimService {
	return &ClaimService{listings: l, claims: c, cache: cache, city: city, now: time.Now}
}

func (s *ClaimService) Submit(ctx context.Context, req ClaimRequest) (domain.Claim, error) {
	l, err := s.listings.GetListing(ctx, req.ListingID)
	if err != nil {
		return domain.Claim{}, err
	}
	if l.ClaimedBy != nil {
		return domain.Claim{}, fmt.Errorf("%w: listing %d is already claimed", domain.ErrConflict, l.ID)
	}

	now := s.now().UTC()
	c := domain.Claim{
		ID:           uuid.NewString(),
		ListingID:    l.ID,
		UserID:       req.UserID,
		OwnerName:    strings.TrimSpace(req.OwnerName),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Status:       domain.ClaimPending,
		Plan:         orDefault(req.Plan, domain.PlanBasic),
		BillingCycle: orDefault(req.BillingCycle, domain.BillingMonthly),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.claims.CreateClaim(ctx, c); err != nil {
		return domain.Claim{}, err
	}
	log.Info().Str("claim_id", c.ID).Int64("listing_id", l.ID).Str("plan", c.Plan).Msg("claim submitted")
	return c, nil
}

// Update applies a subscription action. Activation promotes the listing according to the
// plan; cancellation demotes it. A canceled claim cannot be changed again.
func (s *ClaimService) Update(ctx context.Context, id string, u domain.ClaimUpdate) (domain.Claim, error) {
	c, err := s.claims.GetClaim(ctx, id)
	if err != nil {
		return domain.Claim{}, err
	}
	if c.Status == domain.ClaimCanceled {
		return domain.Claim{}, fmt.Errorf("%w: claim %s is canceled", domain.ErrConflict, id)
	}

	wasActive := c.Status == domain.ClaimActive
	if u.Plan != "" {
		c.Plan = u.Plan
	}
	if u.BillingCycle != "" {
		c.BillingCycle = u.BillingCycle
	}
	if u.Status != "" {
		c.Status = u.Status
	}

	now := s.now().UTC()
	c.UpdatedAt = now
	if c.Status == domain.ClaimActive && (!wasActive || u.BillingCycle != "") {
		start := now
		end := periodEnd(start, c.BillingCycle)
		c.PeriodStart, c.PeriodEnd = &start, &end
	}

	if err := s.claims.UpdateClaim(ctx, c, c.Promotion()); err != nil {
		return domain.Claim{}, fmt.Errorf("update claim %s: %w", c.ID, err)
	}
	s.evict(ctx, c.ListingID)

	log.Info().Str("claim_id", c.ID).Str("status", c.Status).Str("plan", c.Plan).Msg("claim updated")
	return c, nil
}

// UpdatePremiumFeatures edits a premium listing. userID, when set, must own the active claim.
func (s *ClaimService) UpdatePremiumFeatures(ctx context.Context, listingID int64, userID string, pf domain.PremiumFeatures) (domain.Listing, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}

	featured := l.IsFeatured
	c, err := s.claims.ActiveClaim(ctx, listingID)
	switch {
	case err == nil:
		if !c.GrantsPremium() {
			return domain.Listing{}, fmt.Errorf("%w: plan %q does not include premium features", domain.ErrForbidden, c.Plan)
		}
		if userID != "" && c.UserID != userID {
			return domain.Listing{}, fmt.Errorf("%w: listing is claimed by another user", domain.ErrForbidden)
		}
		featured = c.GrantsFeatured()
	case errors.Is(err, domain.ErrNotFound):
		if !l.IsPremium {
			return domain.Listing{}, fmt.Errorf("%w: listing %d is not premium", domain.ErrForbidden, listingID)
		}
	default:
		return domain.Listing{}, err
	}

	if pf.IsFeatured != nil && *pf.IsFeatured && !featured {
		return domain.Listing{}, fmt.Errorf("%w: featured placement requires the featured plan", domain.ErrForbidden)
	}
	if pf.Hours != nil {
		h := strings.TrimSpace(*pf.Hours)
		pf.Hours = &h
	}

	out, err := s.listings.UpdatePremiumFeatures(ctx, listingID, pf)
	if err != nil {
		return domain.Listing{}, err
	}
	s.evict(ctx, listingID)
	return out, nil
}

func (s *ClaimService) evict(ctx context.Context, listingID int64) {
	if s.cache == nil {
		return
	}
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		_ = s.cache.Del(ctx, listingKey(listingID))
		return
	}
	invalidateListing(ctx, s.cache, s.city, l)
}

func periodEnd(start time.Time, cycle string) time.Time {
	if cycle == domain.BillingAnnual {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return strings.ToLower(s)
	}
	return def
}
