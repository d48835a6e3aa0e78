package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"demo-gateway/gateway/democonvert/infra"

	"github.com/go-playground/validator/v10"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type config struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	UpstreamURL     string        `mapstructure:"upstream_url"     validate:"required,url"`
	DemoAPIKey      string        `mapstructure:"demo_api_key"     validate:"required"`
	APIKeyHeader    string        `mapstructure:"api_key_header"   validate:"required"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout" validate:"gt=0"`
	MaxPDFBytes     int64         `mapstructure:"max_pdf_bytes"    validate:"gt=0"`

	DailyLimit        int           `mapstructure:"daily_limit"         validate:"gte=1"`
	QuotaTimezone     string        `mapstructure:"quota_timezone"      validate:"required"`
	QuotaCleanupEvery time.Duration `mapstructure:"quota_cleanup_every" validate:"gte=0"`
	QuotaMaxClients   int           `mapstructure:"quota_max_clients"   validate:"gte=0"`
	PDFFilename       string        `mapstructure:"pdf_filename"        validate:"required"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"      validate:"gt=0"`

	RateEnabled bool          `mapstructure:"rate_enabled"`
	RateRPS     float64       `mapstructure:"rate_rps"     validate:"gt=0"`
	RateBurst   int           `mapstructure:"rate_burst"   validate:"gte=1"`
	RetryAfter  time.Duration `mapstructure:"retry_after"  validate:"gte=0"`
	AddHeaders  bool          `mapstructure:"add_ratelimit_headers"`

	ConcurrencyMax     int           `mapstructure:"concurrency_max"     validate:"gte=0"`
	ConcurrencyTimeout time.Duration `mapstructure:"concurrency_timeout" validate:"gte=0"`

	StatsEnabled       bool          `mapstructure:"stats_enabled"`
	StatsRedisAddr     string        `mapstructure:"stats_redis_addr"     validate:"required_if=StatsEnabled true"`
	StatsRedisPassword string        `mapstructure:"stats_redis_password"`
	StatsRedisDB       int           `mapstructure:"stats_redis_db"       validate:"gte=0"`
	StatsPrefix        string        `mapstructure:"stats_prefix"`
	StatsTTL           time.Duration `mapstructure:"stats_ttl"            validate:"gte=0"`
	StatsBucket        string        `mapstructure:"stats_bucket"         validate:"oneof=minute none"`
	StatsTrackKeys     bool          `mapstructure:"stats_track_keys"`

	CanonicalHostFrom string `mapstructure:"canonical_host_from"`
	CanonicalHostTo   string `mapstructure:"canonical_host_to" validate:"required_with=CanonicalHostFrom"`

	LogLevel  string `mapstructure:"log_level"  validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json text"`
}

var defaults = map[string]any{
	"listen_addr": ":8080",

	"upstream_url":     "https://api.fileslap.com/api/convert",
	"demo_api_key":     infra.DefaultAPIKey,
	"api_key_header":   infra.DefaultAPIKeyHeader,
	"upstream_timeout": 15 * time.Second,
	"max_pdf_bytes":    50 << 20,

	"daily_limit":         3,
	"quota_timezone":      "UTC",
	"quota_cleanup_every": 10 * time.Minute,
	"quota_max_clients":   0,
	"pdf_filename":        "fileslap-demo.pdf",
	"max_body_bytes":      1 << 20,

	// IMPORTANTE: o throttle só segura rajadas; a quota diária é quem limita de fato.
	"rate_enabled":          true,
	"rate_rps":              1.0,
	"rate_burst":            5,
	"retry_after":           time.Second,
	"add_ratelimit_headers": false,

	"concurrency_max":     32,
	"concurrency_timeout": 2 * time.Second,

	"stats_enabled":        false,
	"stats_redis_addr":     "",
	"stats_redis_password": "",
	"stats_redis_db":       0,
	"stats_prefix":         "demo:stats",
	"stats_ttl":            24 * time.Hour,
	"stats_bucket":         "minute",
	"stats_track_keys":     false,

	"canonical_host_from": "",
	"canonical_host_to":   "",

	"log_level":  "info",
	"log_format": "json",
}

// readConfig junta defaults, arquivo YAML opcional (--config), variáveis de
// ambiente (LISTEN_ADDR, DEMO_API_KEY, ...) e flags, nessa ordem de precedência crescente.
func readConfig(args []string, lookupEnv func(string) (string, bool)) (config, error) {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.String("listen", "", "listen address (overrides LISTEN_ADDR)")
	fs.String("upstream", "", "conversion service URL (overrides UPSTREAM_URL)")
	fs.String("log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	vip := viper.New()
	for k, v := range defaults {
		vip.SetDefault(k, v)
	}

	if *configPath != "" {
		vip.SetConfigFile(*configPath)
		vip.SetConfigType("yaml")
		if err := vip.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	// env vence o arquivo; flags vencem o env. Lido via lookupEnv (e não
	// AutomaticEnv) para os testes não dependerem do ambiente do processo.
	for k := range defaults {
		if ev, ok := lookupEnv(strings.ToUpper(k)); ok && ev != "" {
			vip.Set(k, ev)
		}
	}
	for flagName, key := range map[string]string{"listen": "listen_addr", "upstream": "upstream_url", "log-level": "log_level"} {
		if f := fs.Lookup(flagName); f != nil && f.Changed {
			vip.Set(key, f.Value.String())
		}
	}

	var cfg config
	if err := vip.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.StatsBucket = strings.ToLower(strings.TrimSpace(cfg.StatsBucket))

	if err := validator.New().Struct(&cfg); err != nil {
		return config{}, fmt.Errorf("config validation: %w", err)
	}
	if _, err := time.LoadLocation(cfg.QuotaTimezone); err != nil {
		return config{}, errors.New("QUOTA_TIMEZONE must be a valid IANA timezone")
	}
	return cfg, nil
}
