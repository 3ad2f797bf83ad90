package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/observability"
	redisad "github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/redis"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/adapters/rowfile"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/app"
	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/shared"
	mysqlrepo "github.com/Andrew-L1x/LaundryLocator-sub004/internal/storage/mysql"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	workers := flag.Int("workers", 0, "concurrent rows (overrides IMPORT_WORKERS)")
	rebuild := flag.Bool("rebuild-geo", false, "re-add every stored listing to the geo index and exit")
	flag.Parse()

	cfg, err := shared.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(os.Stdout, cfg.App.Env, cfg.App.LogLevel)

	if *workers <= 0 {
		*workers = cfg.Import.Workers
	}
	files := flag.Args()
	if len(files) == 0 && !*rebuild {
		log.Fatal().Msg("usage: importer [-workers N] file.csv|file.json ... | importer -rebuild-geo")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mysqlrepo.Open(ctx, cfg.MySQL.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql connect failed")
	}
	defer db.Close()
	log.Info().Msg("db ping ok")

	rdb, err := redisad.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer rdb.Close()

	svc := app.NewImportService(
		mysqlrepo.New(db),
		redisad.NewGeoIndex(rdb, cfg.Redis.GeoKey),
		redisad.New(rdb, cfg.Redis.KeyPrefix),
		cfg.Location.City(),
	)
	svc.ProgressEvery = cfg.Import.ProgressEvery

	if *rebuild {
		n, err := svc.RebuildGeoIndex(ctx, 1000)
		if err != nil {
			log.Fatal().Err(err).Int("indexed", n).Msg("geo index rebuild failed")
		}
		log.Info().Int("indexed", n).Msg("geo index rebuilt")
		return
	}

	log.Info().Strs("files", files).Int("workers", *workers).Msg("importer starting")

	var sum app.ImportReport
	for _, path := range files {
		rows, err := rowfile.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("read failed")
			continue
		}

		source := filepath.Base(path)
		rep, err := svc.Import(ctx, source, rows, *workers)
		log.Info().
			Str("file", source).
			Int("total", rep.Total).
			Int("imported", rep.Imported).
			Int("skipped", rep.Skipped).
			Int("failed", rep.Failed).
			Msg("file imported")

		sum.Total += rep.Total
		sum.Imported += rep.Imported
		sum.Skipped += rep.Skipped
		sum.Failed += rep.Failed
		if err != nil {
			log.Error().Err(err).Msg("import interrupted")
			break
		}
	}

	log.Info().
		Int("total", sum.Total).
		Int("imported", sum.Imported).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Msg("import completed")
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
