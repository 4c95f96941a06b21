package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"meal-planner/internal/calendar"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the application.
type Config struct {
	APIURL           string        `yaml:"api_url"`
	TokenPath        string        `yaml:"token_path"`
	DBPath           string        `yaml:"db_path"`
	WeekStartsOn     string        `yaml:"week_starts_on"`
	RateLimit        float64       `yaml:"rate_limit"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	ProactiveRefresh time.Duration `yaml:"proactive_refresh"`
	DiscoverCount    int           `yaml:"discover_count"`
	Servings         int           `yaml:"servings"`

	// Telegram Config
	TelegramBotToken       string        `yaml:"telegram_bot_token"`
	TelegramWebhookURL     string        `yaml:"telegram_webhook_url"`
	TelegramAllowedUserIDs []int64       `yaml:"telegram_allowed_user_ids"`
	TelegramPendingTTL     time.Duration `yaml:"telegram_pending_ttl"`
	Port                   string        `yaml:"port"`

	// FirstDay is WeekStartsOn parsed.
	FirstDay time.Weekday `yaml:"-"`
}

// Default returns the configuration used before the YAML file and the
// environment are applied.
func Default() *Config {
	return &Config{
		TokenPath:          defaultTokenPath(),
		DBPath:             filepath.Join("data", "meal-planner.db"),
		WeekStartsOn:       "monday",
		RateLimit:          10,
		RequestTimeout:     30 * time.Second,
		ProactiveRefresh:   time.Minute,
		DiscoverCount:      20,
		Servings:           2,
		TelegramPendingTTL: 30 * time.Minute,
		Port:               "8080",
		FirstDay:           time.Monday,
	}
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".meal-planner", "tokens.json")
	}
	return filepath.Join(dir, "meal-planner", "tokens.json")
}

// LoadDotEnv loads variables from a .env file into the environment. Variables
// that are already set win. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		log.Printf("Loaded environment from %s", p)
	}
	return nil
}

// NewFromEnv creates a new Config object from environment variables. When
// MEALPLAN_CONFIG names a YAML file, its values become the defaults.
func NewFromEnv() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("MEALPLAN_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.APIURL == "" {
		return nil, fmt.Errorf("MEALPLAN_API_URL environment variable not set")
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	firstDay, err := calendar.ParseWeekday(cfg.WeekStartsOn)
	if err != nil {
		return nil, fmt.Errorf("MEALPLAN_WEEK_STARTS_ON: %w", err)
	}
	cfg.FirstDay = firstDay

	if cfg.DiscoverCount < 1 || cfg.DiscoverCount > 50 {
		return nil, fmt.Errorf("MEALPLAN_DISCOVER_COUNT must be between 1 and 50, got %d", cfg.DiscoverCount)
	}
	if cfg.Servings < 1 {
		return nil, fmt.Errorf("MEALPLAN_SERVINGS must be positive, got %d", cfg.Servings)
	}

	return cfg, nil
}

// RequireTelegram reports an error when the bot settings are missing.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if len(c.TelegramAllowedUserIDs) == 0 {
		return fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS environment variable not set")
	}
	return nil
}

// IsAllowedUser reports whether a Telegram user may talk to the bot.
func (c *Config) IsAllowedUser(id int64) bool {
	for _, allowed := range c.TelegramAllowedUserIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setString("MEALPLAN_API_URL", &c.APIURL)
	setString("MEALPLAN_TOKEN_PATH", &c.TokenPath)
	setString("MEALPLAN_DB_PATH", &c.DBPath)
	setString("MEALPLAN_WEEK_STARTS_ON", &c.WeekStartsOn)
	setString("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	setString("TELEGRAM_WEBHOOK_URL", &c.TelegramWebhookURL)
	setString("PORT", &c.Port)

	if v := os.Getenv("MEALPLAN_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MEALPLAN_RATE_LIMIT %q: %w", v, err)
		}
		c.RateLimit = f
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"MEALPLAN_REQUEST_TIMEOUT", &c.RequestTimeout},
		{"MEALPLAN_PROACTIVE_REFRESH", &c.ProactiveRefresh},
		{"TELEGRAM_PENDING_TTL", &c.TelegramPendingTTL},
	}
	for _, d := range durations {
		v := os.Getenv(d.name)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, v, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"MEALPLAN_DISCOVER_COUNT", &c.DiscoverCount},
		{"MEALPLAN_SERVINGS", &c.Servings},
	}
	for _, i := range ints {
		v := os.Getenv(i.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", i.name, v, err)
		}
		*i.dst = n
	}

	if v := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); v != "" {
		ids, err := parseIDs(v)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
		}
		c.TelegramAllowedUserIDs = ids
	}
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a user id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
