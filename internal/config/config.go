package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tournament-bot/internal/util"
)

type Config struct {
	TelegramToken string `yaml:"telegram_bot_token"`
	TelegramDebug bool   `yaml:"telegram_debug"`
	AdminID       int64  `yaml:"admin_id"`

	RequiredChannels []string `yaml:"required_channels"`

	SpreadsheetID            string `yaml:"google_sheets_spreadsheet_id"`
	Worksheet                string `yaml:"google_sheets_worksheet"`
	GoogleServiceAccountJSON string `yaml:"google_service_account_json"`
	SheetCSVURL              string `yaml:"sheet_csv_url"`
	RatingSheetURL           string `yaml:"rating_sheet_url"`
	LocalCachePath           string `yaml:"local_cache_path"`
	CacheSyncCron            string `yaml:"cache_sync_cron"`

	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ExportSecret   string   `yaml:"export_secret"`

	RosterCapacity     int           `yaml:"roster_capacity"`
	ReceiptPromptDelay time.Duration `yaml:"receipt_prompt_delay"`
	LobbySendInterval  time.Duration `yaml:"lobby_send_interval"`
	BridgeTimeout      time.Duration `yaml:"bridge_timeout"`
	DuplicatePolicy    string        `yaml:"duplicate_policy"`

	PaymentCard  string `yaml:"payment_card"`
	EntryFee     string `yaml:"entry_fee"`
	AdminContact string `yaml:"admin_contact"`

	Timezone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`

	Location *time.Location `yaml:"-"`
}

func Defaults() Config {
	return Config{
		Worksheet:          "Sheet1",
		LocalCachePath:     "data/registrants.db",
		CacheSyncCron:      "@every 5m",
		HTTPAddr:           ":5000",
		AllowedOrigins:     []string{"*"},
		RosterCapacity:     100,
		ReceiptPromptDelay: 5 * time.Second,
		LobbySendInterval:  100 * time.Millisecond,
		BridgeTimeout:      30 * time.Second,
		DuplicatePolicy:    "allow",
		EntryFee:           "10 000 UZS",
		Timezone:           "Local",
		LogLevel:           "info",
	}
}

// Load applies defaults, then the optional YAML file, then the environment.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

// FromEnv is Load without a file.
func FromEnv() (Config, error) {
	return load("", os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	c := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&c, lookup); err != nil {
		return c, err
	}
	return c, c.finalize()
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := env(key); ok {
			*dst = splitList(v)
		}
	}

	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("TELEGRAM_BOT_TOKEN", &c.TelegramToken)
	if v, ok := env("TELEGRAM_DEBUG"); ok {
		c.TelegramDebug = util.ParseBool(v)
	}
	if v, ok := env("ADMIN_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_ID: %w", err))
		} else {
			c.AdminID = id
		}
	}
	list("REQUIRED_CHANNELS", &c.RequiredChannels)

	str("GOOGLE_SHEETS_SPREADSHEET_ID", &c.SpreadsheetID)
	str("GOOGLE_SHEETS_WORKSHEET", &c.Worksheet)
	str("GOOGLE_SERVICE_ACCOUNT_JSON", &c.GoogleServiceAccountJSON)
	str("SHEET_CSV_URL", &c.SheetCSVURL)
	str("RATING_SHEET_URL", &c.RatingSheetURL)
	str("LOCAL_CACHE_PATH", &c.LocalCachePath)
	str("CACHE_SYNC_CRON", &c.CacheSyncCron)

	str("HTTP_ADDR", &c.HTTPAddr)
	list("ALLOWED_ORIGINS", &c.AllowedOrigins)
	str("EXPORT_SECRET", &c.ExportSecret)

	if v, ok := env("ROSTER_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ROSTER_CAPACITY: %w", err))
		} else {
			c.RosterCapacity = n
		}
	}
	dur("RECEIPT_PROMPT_DELAY", &c.ReceiptPromptDelay)
	dur("LOBBY_SEND_INTERVAL", &c.LobbySendInterval)
	dur("BRIDGE_TIMEOUT", &c.BridgeTimeout)
	str("DUPLICATE_POLICY", &c.DuplicatePolicy)

	str("PAYMENT_CARD", &c.PaymentCard)
	str("ENTRY_FEE", &c.EntryFee)
	str("ADMIN_CONTACT", &c.AdminContact)
	str("TIMEZONE", &c.Timezone)
	str("LOG_LEVEL", &c.LogLevel)

	return errors.Join(errs...)
}

func (c *Config) finalize() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	if c.AdminID == 0 {
		return fmt.Errorf("ADMIN_ID is empty")
	}
	if c.RosterCapacity <= 0 {
		return fmt.Errorf("ROSTER_CAPACITY must be positive, got %d", c.RosterCapacity)
	}
	if c.ReceiptPromptDelay < 0 || c.LobbySendInterval < 0 || c.BridgeTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	c.DuplicatePolicy = strings.ToLower(c.DuplicatePolicy)
	switch c.DuplicatePolicy {
	case "allow", "reject":
	default:
		return fmt.Errorf("DUPLICATE_POLICY must be allow or reject, got %q", c.DuplicatePolicy)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	c.Location = loc

	// export tokens are never signed with an empty key
	if c.ExportSecret == "" {
		c.ExportSecret = c.TelegramToken
	}
	return nil
}

// SheetsEnabled reports whether the spreadsheet API is configured.
func (c Config) SheetsEnabled() bool {
	return c.SpreadsheetID != "" && c.GoogleServiceAccountJSON != ""
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
