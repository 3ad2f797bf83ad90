package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

type Config struct {
	App        AppConfig        `koanf:"app"`
	HTTP       HTTPConfig       `koanf:"http"`
	MySQL      MySQLConfig      `koanf:"mysql"`
	Redis      RedisConfig      `koanf:"redis"`
	Location   LocationConfig   `koanf:"location"`
	Geocode    GeocodeConfig    `koanf:"geocode"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Import     ImportConfig     `koanf:"import"`
	ListingAPI ListingAPIConfig `koanf:"listing_api"`
}

type AppConfig struct {
	Env      string `koanf:"env"`
	LogLevel string `koanf:"log_level"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type MySQLConfig struct {
	DSN string `koanf:"dsn"`
}

type RedisConfig struct {
	Addr      string        `koanf:"addr"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db"`
	KeyPrefix string        `koanf:"key_prefix"`
	GeoKey    string        `koanf:"geo_key"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

type LocationConfig struct {
	DefaultCity   string  `koanf:"default_city"`
	DefaultState  string  `koanf:"default_state"`
	DefaultLat    float64 `koanf:"default_lat"`
	DefaultLng    float64 `koanf:"default_lng"`
	DefaultRadius float64 `koanf:"default_radius"`
	FallbackState string  `koanf:"fallback_state"`
	ListLimit     int     `koanf:"list_limit"`
}

// City is the configured terminal fallback.
func (l LocationConfig) City() domain.City {
	return domain.City{
		Name:   l.DefaultCity,
		State:  domain.NormalizeState(l.DefaultState),
		Coords: domain.Coords{Lat: l.DefaultLat, Lng: l.DefaultLng},
	}
}

type GeocodeConfig struct {
	Enabled     bool          `koanf:"enabled"`
	IPBase      string        `koanf:"ip_base"`
	ReverseBase string        `koanf:"reverse_base"`
	Timeout     time.Duration `koanf:"timeout"`
}

type RateLimitConfig struct {
	PerMinute int `koanf:"per_minute"`
	Burst     int `koanf:"burst"`
}

type ImportConfig struct {
	Workers           int  `koanf:"workers"`
	ProgressEvery     int  `koanf:"progress_every"`
	RebuildGeoOnStart bool `koanf:"rebuild_geo_on_start"`
}

type ListingAPIConfig struct {
	Base string `koanf:"base"`
	Key  string `koanf:"key"`
	RPS  int    `koanf:"rps"`
}

// Load reads .env (if present), then defaults, then the optional YAML file at path, then
// the environment. Later sources win.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env could not be read")
	}

	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return Config{}, fmt.Errorf("load env vars: %w", err)
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(c); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.env":       "prod",
		"app.log_level": "info",

		"http.addr":             ":8080",
		"http.request_timeout":  "15s",
		"http.shutdown_timeout": "10s",

		"mysql.dsn": "root:root@tcp(localhost:3306)/laundry?parseTime=true&charset=utf8mb4&loc=UTC",

		"redis.addr":       "localhost:6379",
		"redis.db":         0,
		"redis.key_prefix": "laundry:",
		"redis.geo_key":    "geo:listings",
		"redis.cache_ttl":  "15m",

		"location.default_city":   "Denver",
		"location.default_state":  "CO",
		"location.default_lat":    39.7392,
		"location.default_lng":    -104.9903,
		"location.default_radius": 25,
		"location.fallback_state": "CO",
		"location.list_limit":     200,

		"geocode.enabled":      true,
		"geocode.ip_base":      "http://ip-api.com",
		"geocode.reverse_base": "https://nominatim.openstreetmap.org",
		"geocode.timeout":      "3s",

		"rate_limit.per_minute": 120,
		"rate_limit.burst":      30,

		"import.workers":              1,
		"import.progress_every":       100,
		"import.rebuild_geo_on_start": false,

		"listing_api.base": "http://localhost:8080",
		"listing_api.rps":  5,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

var envKeyMap = map[string]string{
	"APP_ENV":              "app.env",
	"LOG_LEVEL":            "app.log_level",
	"HTTP_ADDR":            "http.addr",
	"REQUEST_TIMEOUT":      "http.request_timeout",
	"SHUTDOWN_TIMEOUT":     "http.shutdown_timeout",
	"MYSQL_DSN":            "mysql.dsn",
	"REDIS_ADDR":           "redis.addr",
	"REDIS_PASSWORD":       "redis.password",
	"REDIS_DB":             "redis.db",
	"REDIS_KEY_PREFIX":     "redis.key_prefix",
	"REDIS_GEO_KEY":        "redis.geo_key",
	"CACHE_TTL":            "redis.cache_ttl",
	"DEFAULT_CITY":         "location.default_city",
	"DEFAULT_STATE":        "location.default_state",
	"DEFAULT_LAT":          "location.default_lat",
	"DEFAULT_LNG":          "location.default_lng",
	"DEFAULT_RADIUS":       "location.default_radius",
	"FALLBACK_STATE":       "location.fallback_state",
	"LIST_LIMIT":           "location.list_limit",
	"GEOCODE_ENABLED":      "geocode.enabled",
	"GEOIP_BASE_URL":       "geocode.ip_base",
	"REVERSE_GEO_BASE_URL": "geocode.reverse_base",
	"GEOCODE_TIMEOUT":      "geocode.timeout",
	"RATE_LIMIT_PER_MIN":   "rate_limit.per_minute",
	"RATE_LIMIT_BURST":     "rate_limit.burst",
	"IMPORT_WORKERS":       "import.workers",
	"IMPORT_PROGRESS":      "import.progress_every",
	"REBUILD_GEO_ON_START": "import.rebuild_geo_on_start",
	"LISTING_API_BASE":     "listing_api.base",
	"LISTING_API_KEY":      "listing_api.key",
	"LISTING_API_RPS":      "listing_api.rps",
}

func envKeyReplacer(s string) string {
	return envKeyMap[s]
}

func validate(c Config) error {
	city := c.Location.City()
	if city.Name == "" || city.State == "" {
		return fmt.Errorf("default city needs a name and a known state, got %q, %q", c.Location.DefaultCity, c.Location.DefaultState)
	}
	if !city.Coords.Valid() {
		return fmt.Errorf("default city coordinates out of range: %v", city.Coords)
	}
	if c.Location.FallbackState != "" && domain.NormalizeState(c.Location.FallbackState) == "" {
		return fmt.Errorf("unknown FALLBACK_STATE %q", c.Location.FallbackState)
	}
	if c.Location.DefaultRadius <= 0 {
		return fmt.Errorf("location.default_radius must be positive")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http.request_timeout must be positive")
	}
	if c.Import.Workers < 1 {
		return fmt.Errorf("IMPORT_WORKERS must be at least 1")
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}
