// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Config holds the application configuration. It is constructed once at
// process start and passed by reference into the components that need it.
type Config struct {
	TelegramBotToken string
	TriggerSecret    string

	ListingURL string
	PageSize   int
	PageParam  string
	Collection string

	MinAgeMonths   int
	ExcludeGrouped bool
	MaxNotify      int
	FallbackChatID int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabasePath string
	ListenAddr   string
	LogLevel     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	secret := os.Getenv("TRIGGER_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("TRIGGER_SECRET is required")
	}

	listingURL := os.Getenv("LISTING_URL")
	if listingURL == "" {
		return nil, fmt.Errorf("LISTING_URL is required")
	}
	if u, err := url.Parse(listingURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("LISTING_URL %q is not an absolute URL", listingURL)
	}

	pageSize, err := getenvInt("PAGE_SIZE", 16)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be positive, got %d", pageSize)
	}

	minAge, err := getenvInt("MIN_AGE_MONTHS", 6)
	if err != nil {
		return nil, err
	}

	maxNotify, err := getenvInt("MAX_NOTIFY", 30)
	if err != nil {
		return nil, err
	}

	redisDB, err := getenvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	excludeGrouped, err := getenvBool("EXCLUDE_GROUPED", true)
	if err != nil {
		return nil, err
	}

	fallbackChat, err := getenvInt64("FALLBACK_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramBotToken: token,
		TriggerSecret:    secret,
		ListingURL:       listingURL,
		PageSize:         pageSize,
		PageParam:        getenv("PAGE_PARAM", "page"),
		Collection:       getenv("COLLECTION", "cats"),
		MinAgeMonths:     minAge,
		ExcludeGrouped:   excludeGrouped,
		MaxNotify:        maxNotify,
		FallbackChatID:   fallbackChat,
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,
		DatabasePath:     getenv("DATABASE_PATH", "./data/catwatch.db"),
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q for %s: %w", v, key, err)
	}
	return i, nil
}

func getenvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q for %s: %w", v, key, err)
	}
	return i, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q for %s: %w", v, key, err)
	}
	return b, nil
}
