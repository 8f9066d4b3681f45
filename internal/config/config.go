// Package config provides persistent configuration for the prayer-times CLI.
//
// Configuration is stored as JSON at ~/.config/prayer-times/config.json
// (XDG-compliant). Values from the environment (PRAYER_*, optionally loaded
// from a .env file) override the file. The merge priority is:
// CLI flags > environment > config file > defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
	"github.com/smokyabdulrahman/prayer-companion/internal/prayer"
	"github.com/smokyabdulrahman/prayer-companion/internal/schedule"
)

const (
	configDirName  = "prayer-times"
	configFileName = "config.json"
)

// Solver backends.
const (
	SolverLocal   = "local"
	SolverAladhan = "aladhan"
)

// Store backends.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Off disables a reminder.
const Off = "off"

// ValidKeys lists all config keys that can be set via `config set`.
var ValidKeys = []string{
	"city", "country",
	"latitude", "longitude",
	"timezone", "auto_detect",
	"method", "madhab", "high_latitude_rule",
	"solver",
	"time_format",
	"prayers",
	"cache_dir", "store", "redis_addr",
	"notify_permitted", "notify_prayers",
	"adhkar_morning", "adhkar_evening", "surah_kahf",
	"sound", "notify_db",
	"mqtt_broker", "mqtt_prefix",
	"listen_addr", "log_level",
}

// Config holds all user-configurable settings.
// Zero values mean "not set" (use defaults or auto-detect).
type Config struct {
	City       string   `json:"city,omitempty"`
	Country    string   `json:"country,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"` // pointer so 0 is a valid coordinate
	Longitude  *float64 `json:"longitude,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`
	AutoDetect *bool    `json:"auto_detect,omitempty"`

	Method           string `json:"method,omitempty"`
	Madhab           string `json:"madhab,omitempty"`
	HighLatitudeRule string `json:"high_latitude_rule,omitempty"`
	Solver           string `json:"solver,omitempty"` // "local" or "aladhan"

	TimeFormat string `json:"time_format,omitempty"` // "12h" or "24h"
	Prayers    string `json:"prayers,omitempty"`     // comma-separated list

	CacheDir  string `json:"cache_dir,omitempty"`
	Store     string `json:"store,omitempty"` // "file" or "redis"
	RedisAddr string `json:"redis_addr,omitempty"`

	NotifyPermitted *bool  `json:"notify_permitted,omitempty"`
	Sound           string `json:"sound,omitempty"`
	NotifyDB        string `json:"notify_db,omitempty"`
	MQTTBroker      string `json:"mqtt_broker,omitempty"`
	MQTTPrefix      string `json:"mqtt_prefix,omitempty"`

	// Comma-separated prayer names.
	NotifyPrayers string `json:"notify_prayers,omitempty"`

	// Reminder times, "HH:MM" or "off".
	AdhkarMorning string `json:"adhkar_morning,omitempty"`
	AdhkarEvening string `json:"adhkar_evening,omitempty"`
	SurahKahf     string `json:"surah_kahf,omitempty"`

	ListenAddr string `json:"listen_addr,omitempty"`
	LogLevel   string `json:"log_level,omitempty"`
}

// Defaults returns a Config with all default values applied.
func Defaults() Config {
	d := prayer.DefaultSettings()
	autoDetect := true
	permitted := true
	return Config{
		AutoDetect:       &autoDetect,
		Method:           d.Method.String(),
		Madhab:           d.Madhab.String(),
		HighLatitudeRule: d.HighLatitudeRule.String(),
		Solver:           SolverLocal,
		TimeFormat:       "24h",
		Store:            StoreFile,
		NotifyPermitted:  &permitted,
		NotifyPrayers:    strings.Join(prayer.DefaultPrayerNames, ","),
		AdhkarMorning:    "06:00",
		AdhkarEvening:    "17:00",
		SurahKahf:        "10:00",
		Sound:            "default",
		MQTTPrefix:       "prayer-times",
		ListenAddr:       "127.0.0.1:8787",
		LogLevel:         "warn",
	}
}

// Dir returns the config directory path.
// It respects $XDG_CONFIG_HOME if set, otherwise uses ~/.config/.
func Dir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file from disk.
// If the file does not exist, it returns an empty Config (not an error).
// If the file exists but is invalid JSON, it returns an error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	return LoadFrom(path)
}

// LoadFrom reads the config from a specific file path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Config{}
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the config to disk, creating the directory if needed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}

	return c.SaveTo(path)
}

// SaveTo writes the config to a specific file path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Reset deletes the config file.
func Reset() error {
	path, err := Path()
	if err != nil {
		return err
	}

	return ResetAt(path)
}

// ResetAt deletes the config file at a specific path.
func ResetAt(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// Set sets a config key to the given value.
// It validates the key name and parses the value into the correct type.
func (c *Config) Set(key, value string) error {
	switch key {
	case "city":
		c.City = value
	case "country":
		c.Country = value
	case "latitude":
		v, err := parseCoordinate("latitude", value, 90)
		if err != nil {
			return err
		}
		c.Latitude = &v
	case "longitude":
		v, err := parseCoordinate("longitude", value, 180)
		if err != nil {
			return err
		}
		c.Longitude = &v
	case "timezone":
		if _, err := time.LoadLocation(value); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", value, err)
		}
		c.Timezone = value
	case "auto_detect":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid auto_detect %q: must be true or false", value)
		}
		c.AutoDetect = &v
	case "method":
		m, err := prayer.ParseMethod(value)
		if err != nil {
			return err
		}
		c.Method = m.String()
	case "madhab":
		m, err := prayer.ParseMadhab(value)
		if err != nil {
			return err
		}
		c.Madhab = m.String()
	case "high_latitude_rule":
		r, err := prayer.ParseHighLatitudeRule(value)
		if err != nil {
			return err
		}
		c.HighLatitudeRule = r.String()
	case "solver":
		if value != SolverLocal && value != SolverAladhan {
			return fmt.Errorf("invalid solver %q: must be %q or %q", value, SolverLocal, SolverAladhan)
		}
		c.Solver = value
	case "time_format":
		if value != "12h" && value != "24h" {
			return fmt.Errorf("invalid time_format %q: must be \"12h\" or \"24h\"", value)
		}
		c.TimeFormat = value
	case "prayers":
		if err := validatePrayerList(value, true); err != nil {
			return err
		}
		c.Prayers = value
	case "cache_dir":
		c.CacheDir = value
	case "store":
		if value != StoreFile && value != StoreRedis {
			return fmt.Errorf("invalid store %q: must be %q or %q", value, StoreFile, StoreRedis)
		}
		c.Store = value
	case "redis_addr":
		c.RedisAddr = value
	case "notify_permitted":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid notify_permitted %q: must be true or false", value)
		}
		c.NotifyPermitted = &v
	case "notify_prayers":
		if value != "" {
			if err := validatePrayerList(value, false); err != nil {
				return err
			}
		}
		c.NotifyPrayers = value
	case "adhkar_morning":
		if err := validateReminder(key, value); err != nil {
			return err
		}
		c.AdhkarMorning = value
	case "adhkar_evening":
		if err := validateReminder(key, value); err != nil {
			return err
		}
		c.AdhkarEvening = value
	case "surah_kahf":
		if err := validateReminder(key, value); err != nil {
			return err
		}
		c.SurahKahf = value
	case "sound":
		c.Sound = value
	case "notify_db":
		c.NotifyDB = value
	case "mqtt_broker":
		c.MQTTBroker = value
	case "mqtt_prefix":
		c.MQTTPrefix = value
	case "listen_addr":
		c.ListenAddr = value
	case "log_level":
		c.LogLevel = value
	default:
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys, ", "))
	}

	return nil
}

// Get returns the string value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "city":
		return c.City, nil
	case "country":
		return c.Country, nil
	case "latitude":
		return formatFloatPtr(c.Latitude), nil
	case "longitude":
		return formatFloatPtr(c.Longitude), nil
	case "timezone":
		return c.Timezone, nil
	case "auto_detect":
		return formatBoolPtr(c.AutoDetect), nil
	case "method":
		return c.Method, nil
	case "madhab":
		return c.Madhab, nil
	case "high_latitude_rule":
		return c.HighLatitudeRule, nil
	case "solver":
		return c.Solver, nil
	case "time_format":
		return c.TimeFormat, nil
	case "prayers":
		return c.Prayers, nil
	case "cache_dir":
		return c.CacheDir, nil
	case "store":
		return c.Store, nil
	case "redis_addr":
		return c.RedisAddr, nil
	case "notify_permitted":
		return formatBoolPtr(c.NotifyPermitted), nil
	case "notify_prayers":
		return c.NotifyPrayers, nil
	case "adhkar_morning":
		return c.AdhkarMorning, nil
	case "adhkar_evening":
		return c.AdhkarEvening, nil
	case "surah_kahf":
		return c.SurahKahf, nil
	case "sound":
		return c.Sound, nil
	case "notify_db":
		return c.NotifyDB, nil
	case "mqtt_broker":
		return c.MQTTBroker, nil
	case "mqtt_prefix":
		return c.MQTTPrefix, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "log_level":
		return c.LogLevel, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// Merge returns c with every unset field taken from base.
func (c Config) Merge(base Config) Config {
	out := base
	for _, key := range ValidKeys {
		v, _ := c.Get(key)
		if v != "" {
			_ = out.Set(key, v)
		}
	}
	return out
}

func parseCoordinate(name, value string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a number", name, value)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("invalid %s %q: must be between %v and %v", name, value, -limit, limit)
	}
	return v, nil
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatBoolPtr(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func validatePrayerList(value string, allowSunrise bool) error {
	for _, n := range strings.Split(value, ",") {
		n = strings.TrimSpace(n)
		if !prayer.IsValidName(n) || (!allowSunrise && n == prayer.Sunrise) {
			return fmt.Errorf("invalid prayer name %q in prayers list", n)
		}
	}
	return nil
}

func validateReminder(key, value string) error {
	if value == Off {
		return nil
	}
	if _, _, err := schedule.ParseTimeOfDay(value); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Derived settings
// ---------------------------------------------------------------------------

// Point returns the configured coordinates, or nil unless both are set.
func (c *Config) Point() *geo.GeoPoint {
	if c.Latitude == nil || c.Longitude == nil {
		return nil
	}
	return &geo.GeoPoint{Latitude: *c.Latitude, Longitude: *c.Longitude}
}

// AutoDetectEnabled reports whether IP detection may be used.
func (c *Config) AutoDetectEnabled() bool {
	return c.AutoDetect == nil || *c.AutoDetect
}

// CalculationSettings parses the method, madhab and high-latitude rule.
// Unset values take their defaults.
func (c *Config) CalculationSettings() (prayer.Settings, error) {
	s := prayer.DefaultSettings()
	var err error
	if c.Method != "" {
		if s.Method, err = prayer.ParseMethod(c.Method); err != nil {
			return s, err
		}
	}
	if c.Madhab != "" {
		if s.Madhab, err = prayer.ParseMadhab(c.Madhab); err != nil {
			return s, err
		}
	}
	if c.HighLatitudeRule != "" {
		if s.HighLatitudeRule, err = prayer.ParseHighLatitudeRule(c.HighLatitudeRule); err != nil {
			return s, err
		}
	}
	return s, nil
}

// PrayerNames returns the configured display list, or nil for the default.
func (c *Config) PrayerNames() []string {
	return splitList(c.Prayers)
}

// NotificationSettings builds the reminder settings in loc.
func (c *Config) NotificationSettings(loc *time.Location) schedule.Settings {
	s := schedule.DefaultSettings()
	s.Location = loc

	if c.NotifyPrayers != "" {
		enabled := map[string]bool{}
		for _, n := range splitList(c.NotifyPrayers) {
			if n != prayer.Sunrise {
				enabled[n] = true
			}
		}
		s.Prayers = enabled
	}

	apply := func(r *schedule.Reminder, v string) {
		switch v {
		case "":
		case Off:
			r.Enabled = false
		default:
			r.Enabled = true
			r.TimeOfDay = v
		}
	}
	apply(&s.AdhkarMorning, c.AdhkarMorning)
	apply(&s.AdhkarEvening, c.AdhkarEvening)
	apply(&s.SurahKahf, c.SurahKahf)

	if c.Sound != "" {
		s.Sound = c.Sound
	}
	return s
}

// NotificationsPermitted reports the stored permission grant.
func (c *Config) NotificationsPermitted() bool {
	return c.NotifyPermitted == nil || *c.NotifyPermitted
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, n := range strings.Split(v, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
