package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/filestore"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/geocode"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/listingapi"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/observability"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/app"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/shared"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
		apiBase    = flag.String("api", "", "Listing API base URL (overrides LISTING_API_BASE)")
		lat        = flag.String("lat", "", "latitude")
		lng        = flag.String("lng", "", "longitude")
		radius     = flag.String("radius", "", "search radius in miles (max 100)")
		storePath  = flag.String("store", "", "last-location file (default: user config dir)")
		noGeo      = flag.Bool("no-geo", false, "skip IP geolocation and reverse geocoding")
		openNow    = flag.Bool("open-now", false, "only listings open right now")
		minRating  = flag.String("min-rating", "", "minimum rating, e.g. 4.0")
		services   = flag.String("services", "", "comma-separated required services")
		sortBy     = flag.String("sort", "", "distance|rating|name|services")
	)
	flag.Parse()

	cfg, err := shared.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	// stdout carries the results
	log.Logger = observability.NewLogger(os.Stderr, cfg.App.Env, cfg.App.LogLevel)

	if *apiBase == "" {
		*apiBase = cfg.ListingAPI.Base
	}
	client, err := listingapi.New(*apiBase, cfg.ListingAPI.Key, cfg.ListingAPI.RPS)
	if err != nil {
		log.Fatal().Err(err).Msg("listing API client")
	}

	if *storePath == "" {
		if *storePath, err = filestore.DefaultPath(); err != nil {
			log.Fatal().Err(err).Msg("no config dir; pass -store")
		}
	}
	store := filestore.New(*storePath)

	var (
		locator domain.GeolocationProvider
		reverse domain.ReverseGeocoder
	)
	if cfg.Geocode.Enabled && !*noGeo {
		locator = geocode.NewIPLocator(cfg.Geocode.IPBase, cfg.Geocode.Timeout)
		reverse = geocode.NewReverse(cfg.Geocode.ReverseBase, cfg.Geocode.Timeout)
	}
	city := cfg.Location.City()
	resolver := app.NewLocationResolver(locator, reverse, city, cfg.Location.DefaultRadius)
	cascade := app.NewSearchCascade(client, cfg.Location.FallbackState, city)
	cascade.OnAttempt = func(a app.Attempt) {
		log.Debug().Str("tier", a.Tier).Int("count", a.Count).AnErr("error", a.Err).Msg("search tier")
	}

	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("lat", *lat)
	set("lng", *lng)
	set("radius", *radius)
	set("open_now", strconv.FormatBool(*openNow))
	set("min_rating", *minRating)
	set("services", *services)
	set("sort", *sortBy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// empty client IP: the provider locates the caller
	res := resolver.Resolve(ctx, app.ResolveInput{Query: q, Store: store})

	out, err := cascade.Search(ctx, app.SearchQuery{Coords: res.Coords, Radius: res.Radius, StateCode: res.StateCode})
	if err != nil {
		log.Error().Err(err).Msg("couldn't load listings")
		os.Exit(1)
	}
	listings := app.ApplyFilter(out.Listings, app.ParseFilter(q.Get), res.Coords, time.Now())

	render(os.Stdout, res, out, listings)
}

func render(w io.Writer, res domain.Resolution, out app.SearchResult, ls []domain.Listing) {
	fmt.Fprintf(w, "Location: %s (%s, %.0f mi)\n", res.Display, res.Source, res.Radius)
	switch out.Tier {
	case app.TierState:
		fmt.Fprintln(w, "Nothing nearby; showing listings across the state.")
	case app.TierDefaultCity:
		fmt.Fprintln(w, "Nothing nearby or in the state; showing the default city.")
	}
	if len(ls) == 0 {
		fmt.Fprintln(w, "No laundromats match.")
		return
	}

	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRATING\tDIST\tOPEN")
	for _, l := range ls {
		dist := "-"
		if l.Distance != nil {
			dist = fmt.Sprintf("%.1f mi", *l.Distance)
		}
		open := "closed"
		if l.Schedule.IsOpen(now) {
			open = "open"
		}
		fmt.Fprintf(tw, "%s\t%s, %s, %s\t%s\t%s\t%s\n",
			l.Name, l.Address, l.City, l.State, domain.FormatDecimal(l.Rating), dist, open)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d of %d shown\n", len(ls), len(out.Listings))
}
