package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver   string // mongo|memory
	MongoURI      string
	MongoDatabase string

	MySQLDSN  string // import journal; empty disables
	RedisAddr string // empty disables the cache
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	ImportWorkers int
	ImportSource  string
	AWSRegion     string

	CatalogBaseURL   string
	CatalogStateFile string
}

// Load reads the environment, after merging an optional .env file from the
// working directory (real environment variables win).
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),

		StoreDriver:   env("STORE_DRIVER", "mongo"),
		MongoURI:      env("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: env("MONGODB_DATABASE", "realty"),

		MySQLDSN:  os.Getenv("MYSQL_DSN"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisDB:   atoi("REDIS_DB", 0),
		RedisPass: env("REDIS_PASSWORD", ""),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		ImportWorkers: atoi("IMPORT_WORKERS", 8),
		ImportSource:  os.Getenv("IMPORT_SOURCE"),
		AWSRegion:     os.Getenv("AWS_REGION"),

		CatalogBaseURL:   env("CATALOG_BASE_URL", "http://localhost:8080"),
		CatalogStateFile: env("CATALOG_STATE_FILE", defaultStateFile()),
	}
	if c.StoreDriver != "mongo" && c.StoreDriver != "memory" {
		log.Warn().Str("driver", c.StoreDriver).Msg("unknown STORE_DRIVER, using mongo")
		c.StoreDriver = "mongo"
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".realty-browse.json"
	}
	return dir + "/realty-catalog/browse.json"
}
