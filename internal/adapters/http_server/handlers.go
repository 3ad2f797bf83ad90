package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/listingapi"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/observability"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/app"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

const (
	defaultRadius = 25.0
	maxRadius     = 100.0
	maxBody       = 1 << 20
)

type Handlers struct {
	Q        *app.QueryService
	Claims   *app.ClaimService
	Resolver *app.LocationResolver
	Cascade  *app.SearchCascade

	now      func() time.Time
	validate *validator.Validate
}

func NewHandlers(q *app.QueryService, c *app.ClaimService, r *app.LocationResolver, sc *app.SearchCascade) *Handlers {
	return &Handlers{
		Q:        q,
		Claims:   c,
		Resolver: r,
		Cascade:  sc,
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Retry  bool   `json:"retry,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/listings", h.listListings)
	s.mux.Get("/listings/default-city", h.defaultCity)
	s.mux.Get("/listings/{id}", h.getListing)
	s.mux.Put("/listings/{id}/premium-features", h.updatePremium)

	s.mux.Post("/business/claim", h.submitClaim)
	s.mux.Put("/business/claims/{id}", h.updateClaim)

	s.mux.Get("/search", h.search)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors to problem responses. Domain errors carry their own
// message as detail; anything else gets the generic fallback.
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalid):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrExhausted):
		writeProblemBody(w, problem{
			Type: "about:blank", Title: "Service Unavailable", Status: http.StatusServiceUnavailable,
			Detail: "couldn't load listings", Retry: true,
		})
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", fallback)
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

// writeCached writes v as JSON with a weak ETag, answering 304 when the client has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Validation Failed", validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return 0, false
	}
	return id, true
}

// ---- listings ----

func (h *Handlers) listListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if c, ok := app.CoordsFromQuery(q); ok {
		radius := defaultRadius
		if s := q.Get("radius"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v <= 0 {
				writeProblem(w, http.StatusBadRequest, "Invalid radius", "radius must be a positive number of miles")
				return
			}
			radius = min(v, maxRadius)
		}
		ls, err := h.Q.Nearby(r.Context(), c, radius)
		if err != nil {
			writeError(w, err, "couldn't load nearby listings")
			return
		}
		writeCached(w, r, listingapi.FromDomainList(ls))
		return
	}

	if st := q.Get("state"); st != "" {
		ls, err := h.Q.ByState(r.Context(), st)
		if err != nil {
			writeError(w, err, "couldn't load listings for state")
			return
		}
		writeCached(w, r, listingapi.FromDomainList(ls))
		return
	}

	writeProblem(w, http.StatusBadRequest, "Bad Request", "either lat and lng, or state, is required")
}

func (h *Handlers) defaultCity(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Q.DefaultCity(r.Context())
	if err != nil {
		writeError(w, err, "couldn't load listings")
		return
	}
	writeCached(w, r, listingapi.FromDomainList(ls))
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.Q.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err, "couldn't load listing")
		return
	}
	writeCached(w, r, listingapi.FromDomain(l))
}

// ---- search ----

type locationJSON struct {
	Display string  `json:"display"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	State   string  `json:"state,omitempty"`
	Radius  float64 `json:"radius"`
	Source  string  `json:"source"`
}

type centerJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type searchResponse struct {
	Location locationJSON            `json:"location"`
	Tier     string                  `json:"tier"`
	Center   centerJSON              `json:"center"`
	Listings []listingapi.ListingJSON `json:"listings"`
	Count    int                     `json:"count"`
	Total    int                     `json:"total"`
}

// search runs one page load: resolve the location, run the cascade, apply the filter.
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	res := h.Resolver.Resolve(ctx, app.ResolveInput{
		Query:    q,
		ClientIP: remoteIP(r),
		Store:    cookieStore{r: r, w: w},
	})
	observability.ObserveLocation(res.Source)

	out, err := h.Cascade.Search(ctx, app.SearchQuery{Coords: res.Coords, Radius: res.Radius, StateCode: res.StateCode})
	if err != nil {
		writeError(w, err, "couldn't load listings")
		return
	}

	filtered := app.ApplyFilter(out.Listings, app.ParseFilter(q.Get), res.Coords, h.now())
	body := listingapi.FromDomainList(filtered)

	writeJSON(w, http.StatusOK, searchResponse{
		Location: locationJSON{
			Display: res.Display,
			Lat:     res.Coords.Lat,
			Lng:     res.Coords.Lng,
			State:   res.StateCode,
			Radius:  res.Radius,
			Source:  res.Source,
		},
		Tier:     out.Tier,
		Center:   centerJSON{Lat: out.Center.Lat, Lng: out.Center.Lng},
		Listings: body.Listings,
		Count:    body.Count,
		Total:    len(out.Listings),
	})
}

// ---- claims & premium ----

type claimRequest struct {
	ListingID    int64  `json:"listingId" validate:"required,gt=0"`
	UserID       string `json:"userId" validate:"required,max=64"`
	OwnerName    string `json:"ownerName" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email,max=255"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	Plan         string `json:"plan" validate:"omitempty,oneof=basic premium featured"`
	BillingCycle string `json:"billingCycle" validate:"omitempty,oneof=monthly annual"`
}

type claimUpdateRequest struct {
	Status       string `json:"status" validate:"required_without_all=Plan BillingCycle,omitempty,oneof=active canceled"`
	Plan         string `json:"plan" validate:"omitempty,oneof=basic premium featured"`
	BillingCycle string `json:"billingCycle" validate:"omitempty,oneof=monthly annual"`
}

type claimJSON struct {
	ID           string     `json:"id"`
	ListingID    int64      `json:"listingId"`
	UserID       string     `json:"userId"`
	OwnerName    string     `json:"ownerName"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Status       string     `json:"status"`
	Plan         string     `json:"plan"`
	BillingCycle string     `json:"billingCycle"`
	PeriodStart  *time.Time `json:"periodStart,omitempty"`
	PeriodEnd    *time.Time `json:"periodEnd,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func toClaimJSON(c domain.Claim) claimJSON {
	return claimJSON{
		ID: c.ID, ListingID: c.ListingID, UserID: c.UserID, OwnerName: c.OwnerName,
		Email: c.Email, Phone: c.Phone, Status: c.Status, Plan: c.Plan,
		BillingCycle: c.BillingCycle, PeriodStart: c.PeriodStart, PeriodEnd: c.PeriodEnd,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func (h *Handlers) submitClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Claims.Submit(r.Context(), app.ClaimRequest{
		ListingID:    req.ListingID,
		UserID:       req.UserID,
		OwnerName:    req.OwnerName,
		Email:        req.Email,
		Phone:        req.Phone,
		Plan:         req.Plan,
		BillingCycle: req.BillingCycle,
	})
	if err != nil {
		writeError(w, err, "failed to submit claim")
		return
	}
	writeJSON(w, http.StatusCreated, toClaimJSON(c))
}

func (h *Handlers) updateClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req claimUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Claims.Update(r.Context(), id, domain.ClaimUpdate{
		Status:       req.Status,
		Plan:         req.Plan,
		BillingCycle: req.BillingCycle,
	})
	if err != nil {
		writeError(w, err, "failed to update subscription")
		return
	}
	writeJSON(w, http.StatusOK, toClaimJSON(c))
}

type premiumRequest struct {
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Website     *string  `json:"website" validate:"omitempty,url,max=512"`
	Phone       *string  `json:"phone" validate:"omitempty,max=32"`
	Hours       *string  `json:"hours" validate:"omitempty,max=500"`
	Services    []string `json:"services" validate:"omitempty,max=50,dive,min=1,max=64"`
	IsFeatured  *bool    `json:"isFeatured"`
}

// updatePremium takes the acting user from X-User-ID; authentication happens upstream.
func (h *Handlers) updatePremium(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req premiumRequest
	if !h.decode(w, r, &req) {
		return
	}
	l, err := h.Claims.UpdatePremiumFeatures(r.Context(), id, r.Header.Get("X-User-ID"), domain.PremiumFeatures{
		Description: req.Description,
		Website:     req.Website,
		Phone:       req.Phone,
		Hours:       req.Hours,
		Services:    req.Services,
		IsFeatured:  req.IsFeatured,
	})
	if err != nil {
		writeError(w, err, "failed to update listing")
		return
	}
	writeJSON(w, http.StatusOK, listingapi.FromDomain(l))
}
