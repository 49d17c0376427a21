package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	SiteURL       string // public base URL used in the sitemap
	DatabaseFile  string
	SessionSecret string
	SiteTimezone  string
	CacheDir      string
	CacheTTL      time.Duration
	MediaDir      string
	LoginRate     float64 // attempts per second per client
	LoginBurst    int
	SecureCookies bool
}

var ErrMissingSessionSecret = errors.New("SESSION_SECRET environment variable not set")

// Load reads an optional .env file and the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		SiteURL:       strings.TrimSuffix(getEnv("SITE_URL", ""), "/"),
		DatabaseFile:  getEnv("SQLITE_DB", "captain.db"),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SiteTimezone:  getEnv("SITE_TIMEZONE", "UTC"),
		CacheDir:      getEnv("CACHE_DIR", "cache"),
		CacheTTL:      getDuration("CACHE_TTL", 10*time.Minute),
		MediaDir:      getEnv("MEDIA_DIR", "uploads"),
		LoginRate:     getFloat("LOGIN_RATE", 5.0/60.0),
		LoginBurst:    getInt("LOGIN_BURST", 5),
		SecureCookies: getBool("SECURE_COOKIES", false),
	}
}

// Validate checks the settings required to serve.
func (c Config) Validate() error {
	if c.SessionSecret == "" {
		return ErrMissingSessionSecret
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		log.Printf("config: invalid %s=%q, using %g", key, raw, fallback)
		return fallback
	}
	return f
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
