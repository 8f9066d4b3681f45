package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Env holds PRAYER_* overrides. Empty fields are unset.
type Env struct {
	City             string `env:"PRAYER_CITY"`
	Country          string `env:"PRAYER_COUNTRY"`
	Latitude         string `env:"PRAYER_LATITUDE"`
	Longitude        string `env:"PRAYER_LONGITUDE"`
	Timezone         string `env:"PRAYER_TIMEZONE"`
	AutoDetect       string `env:"PRAYER_AUTO_DETECT"`
	Method           string `env:"PRAYER_METHOD"`
	Madhab           string `env:"PRAYER_MADHAB"`
	HighLatitudeRule string `env:"PRAYER_HIGH_LATITUDE_RULE"`
	Solver           string `env:"PRAYER_SOLVER"`
	TimeFormat       string `env:"PRAYER_TIME_FORMAT"`
	Prayers          string `env:"PRAYER_PRAYERS"`
	CacheDir         string `env:"PRAYER_CACHE_DIR"`
	Store            string `env:"PRAYER_STORE"`
	RedisAddr        string `env:"PRAYER_REDIS_ADDR"`
	NotifyPermitted  string `env:"PRAYER_NOTIFY_PERMITTED"`
	NotifyPrayers    string `env:"PRAYER_NOTIFY_PRAYERS"`
	AdhkarMorning    string `env:"PRAYER_ADHKAR_MORNING"`
	AdhkarEvening    string `env:"PRAYER_ADHKAR_EVENING"`
	SurahKahf        string `env:"PRAYER_SURAH_KAHF"`
	Sound            string `env:"PRAYER_SOUND"`
	NotifyDB         string `env:"PRAYER_NOTIFY_DB"`
	MQTTBroker       string `env:"PRAYER_MQTT_BROKER"`
	MQTTPrefix       string `env:"PRAYER_MQTT_PREFIX"`
	ListenAddr       string `env:"PRAYER_LISTEN_ADDR"`
	LogLevel         string `env:"PRAYER_LOG_LEVEL"`
}

func (e Env) pairs() [][2]string {
	return [][2]string{
		{"city", e.City},
		{"country", e.Country},
		{"latitude", e.Latitude},
		{"longitude", e.Longitude},
		{"timezone", e.Timezone},
		{"auto_detect", e.AutoDetect},
		{"method", e.Method},
		{"madhab", e.Madhab},
		{"high_latitude_rule", e.HighLatitudeRule},
		{"solver", e.Solver},
		{"time_format", e.TimeFormat},
		{"prayers", e.Prayers},
		{"cache_dir", e.CacheDir},
		{"store", e.Store},
		{"redis_addr", e.RedisAddr},
		{"notify_permitted", e.NotifyPermitted},
		{"notify_prayers", e.NotifyPrayers},
		{"adhkar_morning", e.AdhkarMorning},
		{"adhkar_evening", e.AdhkarEvening},
		{"surah_kahf", e.SurahKahf},
		{"sound", e.Sound},
		{"notify_db", e.NotifyDB},
		{"mqtt_broker", e.MQTTBroker},
		{"mqtt_prefix", e.MQTTPrefix},
		{"listen_addr", e.ListenAddr},
		{"log_level", e.LogLevel},
	}
}

// ApplyEnv overrides c with any PRAYER_* variables from the process
// environment. Invalid values are reported with the variable's key.
func (c *Config) ApplyEnv(ctx context.Context) error {
	return c.applyEnv(ctx, envconfig.OsLookuper())
}

func (c *Config) applyEnv(ctx context.Context, l envconfig.Lookuper) error {
	var e Env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &e, Lookuper: l}); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	for _, kv := range e.pairs() {
		if kv[1] == "" {
			continue
		}
		if err := c.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("environment override %s: %w", kv[0], err)
		}
	}
	return nil
}

// LoadDotEnv loads variables from the given files (".env" when none) into
// the process environment. Existing variables win; missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}
