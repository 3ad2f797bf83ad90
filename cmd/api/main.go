package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/geocode"
	server "github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/http_server"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/observability"
	redisad "github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/redis"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/app"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/shared"
	mysqlrepo "github.com/Andrew-L1x/LaundryLocator-sub004/internal/storage/mysql"
)

func main() {
	cfg, err := shared.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(os.Stdout, cfg.App.Env, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := mysqlrepo.Open(ctx, cfg.MySQL.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql connect failed")
	}
	defer db.Close()
	log.Info().Msg("database connection ok")

	rdb, err := redisad.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connect failed")
	}
	defer rdb.Close()

	// deps
	city := cfg.Location.City()
	repo := mysqlrepo.New(db)
	cache := redisad.New(rdb, cfg.Redis.KeyPrefix)
	geo := redisad.NewGeoIndex(rdb, cfg.Redis.GeoKey)

	q := app.NewQueryService(repo, geo, cache, cfg.Redis.CacheTTL, city, cfg.Location.ListLimit)
	claims := app.NewClaimService(repo, repo, cache, city)

	var (
		locator domain.GeolocationProvider
		reverse domain.ReverseGeocoder
	)
	if cfg.Geocode.Enabled {
		locator = geocode.NewIPLocator(cfg.Geocode.IPBase, cfg.Geocode.Timeout)
		reverse = geocode.NewReverse(cfg.Geocode.ReverseBase, cfg.Geocode.Timeout)
	}
	resolver := app.NewLocationResolver(locator, reverse, city, cfg.Location.DefaultRadius)

	cascade := app.NewSearchCascade(q, cfg.Location.FallbackState, city)
	cascade.OnAttempt = func(a app.Attempt) {
		observability.ObserveTier(a.Tier, a.Count, a.Err)
		log.Debug().Str("tier", a.Tier).Int("count", a.Count).AnErr("error", a.Err).Msg("search tier")
	}

	if cfg.Import.RebuildGeoOnStart {
		n, err := app.NewImportService(repo, geo, cache, city).RebuildGeoIndex(ctx, 1000)
		if err != nil {
			log.Fatal().Err(err).Msg("geo index rebuild failed")
		}
		log.Info().Int("indexed", n).Msg("geo index rebuilt")
	}

	// http
	var rl *server.RateLimiter
	if cfg.RateLimit.PerMinute > 0 {
		rl = server.NewRateLimiter(rdb, cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	}
	srv := server.New(cfg.HTTP.RequestTimeout, rl)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(server.NewHandlers(q, claims, resolver, cascade))

	httpSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: srv.Mux()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpSrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
