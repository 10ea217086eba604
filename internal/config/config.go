// Package config provides functionality for managing configuration options
// for the application using command-line flags, an optional JSON file and
// environment variables, applied in that order.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinSecretKeyLen is the shortest accepted token signing secret.
const MinSecretKeyLen = 32

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// SecretKey signs access tokens.
	SecretKey string `json:"secret_key"`
	// TokenTTL is the access token lifetime. Zero issues tokens without expiry.
	TokenTTL Duration `json:"token_ttl"`
	// HashIterations is the PBKDF2 work factor for new password hashes.
	HashIterations int `json:"hash_iterations"`

	GeminiAPIKey string `json:"gemini_api_key"`
	GeminiModel  string `json:"gemini_model"`

	S3Bucket    string `json:"s3_bucket"`
	S3Region    string `json:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key"`
	S3PublicURL string `json:"s3_public_url"`

	// RedisAddr selects the shared rate limiter. Empty uses an in-process one.
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	// RateLimit is the number of login/register attempts per IP and window.
	RateLimit       int      `json:"rate_limit"`
	RateLimitWindow Duration `json:"rate_limit_window"`

	CORSOrigins []string `json:"cors_origins"`
	LogLevel    string   `json:"log_level"`

	// TrustedProxies lists reverse proxy IPs or CIDR ranges whose
	// X-Forwarded-For / X-Real-IP headers are believed.
	TrustedProxies []string `json:"trusted_proxies"`

	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// PurgeInterval and PurgeRetention drive the soft-delete cleaner.
	PurgeInterval  Duration `json:"purge_interval"`
	PurgeRetention Duration `json:"purge_retention"`
}

// Duration is a time.Duration that reads "90s"-style strings or integer
// nanoseconds from JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Default returns the built-in configuration.
func Default() *Options {
	return &Options{
		Port:            "localhost:8000",
		Config:          "config.json",
		TokenTTL:        Duration{24 * time.Hour},
		HashIterations:  30000,
		GeminiModel:     "gemini-2.0-flash",
		S3Region:        "us-east-1",
		RateLimit:       10,
		RateLimitWindow: Duration{time.Minute},
		CORSOrigins:     []string{"http://localhost:5173"},
		LogLevel:        "info",
		PurgeInterval:   Duration{time.Hour},
		PurgeRetention:  Duration{30 * 24 * time.Hour},
	}
}

// Parse builds Options from args (without the program name), the JSON file
// selected by -c/-config or CONFIG, and the environment.
func Parse(args []string) (*Options, error) {
	options := Default()

	fs := flag.NewFlagSet("agritracker", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", options.Port, "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", options.DatabaseDSN, "db address")
	fs.StringVar(&options.Config, "config", options.Config, "path to config file")
	fs.StringVar(&options.Config, "c", options.Config, "path to config file (shorthand)")
	fs.StringVar(&options.LogLevel, "l", options.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if err := loadFile(options.Config, options); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(options); err != nil {
		return nil, err
	}
	return options, nil
}

func loadFile(path string, options *Options) error {
	if _, err := os.Stat(path); err != nil {
		// A missing file is not an error; the defaults apply.
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, options); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

func applyEnv(o *Options) error {
	str := map[string]*string{
		"SERVER_ADDRESS": &o.Port,
		"DATABASE_DSN":   &o.DatabaseDSN,
		"SECRET_KEY":     &o.SecretKey,
		"GEMINI_API_KEY": &o.GeminiAPIKey,
		"GEMINI_MODEL":   &o.GeminiModel,
		"S3_BUCKET":      &o.S3Bucket,
		"S3_REGION":      &o.S3Region,
		"S3_ENDPOINT":    &o.S3Endpoint,
		"S3_ACCESS_KEY":  &o.S3AccessKey,
		"S3_SECRET_KEY":  &o.S3SecretKey,
		"S3_PUBLIC_URL":  &o.S3PublicURL,
		"REDIS_ADDR":     &o.RedisAddr,
		"REDIS_PASSWORD": &o.RedisPassword,
		"LOG_LEVEL":      &o.LogLevel,
		"TLS_CERT":       &o.TLSCert,
		"TLS_KEY":        &o.TLSKey,
	}
	for name, dst := range str {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"HASH_ITERATIONS": &o.HashIterations,
		"REDIS_DB":        &o.RedisDB,
		"RATE_LIMIT":      &o.RateLimit,
	}
	for name, dst := range ints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*Duration{
		"TOKEN_TTL":         &o.TokenTTL,
		"RATE_LIMIT_WINDOW": &o.RateLimitWindow,
		"PURGE_INTERVAL":    &o.PurgeInterval,
		"PURGE_RETENTION":   &o.PurgeRetention,
	}
	for name, dst := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			dst.Duration = d
		}
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		o.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		o.TrustedProxies = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate reports settings the server cannot start with.
func (o *Options) Validate() error {
	var errs []error
	if o.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if len(o.SecretKey) < MinSecretKeyLen {
		errs = append(errs, fmt.Errorf("secret key must be at least %d bytes", MinSecretKeyLen))
	}
	if o.TokenTTL.Duration < 0 {
		errs = append(errs, errors.New("token ttl must not be negative"))
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		errs = append(errs, errors.New("tls cert and key must be set together"))
	}
	if o.PurgeInterval.Duration <= 0 {
		errs = append(errs, errors.New("purge interval must be positive"))
	}
	if o.PurgeRetention.Duration < 0 {
		errs = append(errs, errors.New("purge retention must not be negative"))
	}
	if o.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if o.RateLimit > 0 && o.RateLimitWindow.Duration <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	for _, proxy := range o.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			errs = append(errs, fmt.Errorf("trusted proxy %q is not an IP or CIDR", proxy))
		}
	}
	return errors.Join(errs...)
}

// StorageEnabled reports whether an image bucket is configured.
func (o *Options) StorageEnabled() bool {
	return o.S3Bucket != ""
}

// TLSEnabled reports whether the server should serve HTTPS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}
