package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from an optional
// YAML file (PROFILE_CONFIG_FILE) and are then overridden by environment
// variables.
type Config struct {
	Server        Server          `yaml:"server"`
	Log           Log             `yaml:"log"`
	Redis         Redis           `yaml:"redis"`
	Cache         Cache           `yaml:"cache"`
	Business      Business        `yaml:"business"`
	Weights       Weights         `yaml:"weights"`
	Collaborators Collaborators   `yaml:"collaborators"`
	Mirror        Mirror          `yaml:"mirror"`
	Audit         Audit           `yaml:"audit"`
	RateLimits    map[string]Rule `yaml:"rate_limits"`
	Metrics       Metrics         `yaml:"metrics"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Redis configures the shared client. An empty URL disables Redis.
type Redis struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Cache struct {
	Backend      string        `yaml:"backend"`
	ProfileTTL   time.Duration `yaml:"profile_ttl"`
	AddressesTTL time.Duration `yaml:"addresses_ttl"`
	KYCTTL       time.Duration `yaml:"kyc_ttl"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Business struct {
	MaxAddresses         int                 `yaml:"max_addresses"`
	KYCValidityDays      int                 `yaml:"kyc_validity_days"`
	KYCRenewalWarning    time.Duration       `yaml:"kyc_renewal_warning"`
	KYCExpirySweep       time.Duration       `yaml:"kyc_expiry_sweep"`
	MakerCheckerSLA      time.Duration       `yaml:"maker_checker_sla"`
	MandatoryConsents    []string            `yaml:"mandatory_consents"`
	DocumentDownloadBase string              `yaml:"document_download_base"`
	KYCRequirements      map[string][]string `yaml:"kyc_requirements"`
}

// Weights are the completeness section weights in percent.
type Weights struct {
	PersonalInfo  float64 `yaml:"personal_info"`
	AddressInfo   float64 `yaml:"address_info"`
	KYCInfo       float64 `yaml:"kyc_info"`
	DocumentsInfo float64 `yaml:"documents_info"`
}

func (w Weights) Sum() float64 {
	return w.PersonalInfo + w.AddressInfo + w.KYCInfo + w.DocumentsInfo
}

type Collaborators struct {
	AuthzURL    string        `yaml:"authz_url"`
	DocumentURL string        `yaml:"document_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    int           `yaml:"attempts"`
}

// Mirror configures Postgres replication. An empty DSN disables it.
type Mirror struct {
	DSN string `yaml:"dsn"`
}

// Audit configures the Kafka exporter. No brokers disables it.
type Audit struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
	BufferSize        int      `yaml:"buffer_size"`
}

// Rule is a sliding-window limit for one action.
type Rule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr: ":8080",
			// Use a default for development - should be overridden in production
			JWTSigningKey:   "dev-secret-key-change-in-production",
			JWTIssuer:       "profile-service",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{Level: "info", Format: "json"},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache: Cache{
			Backend:      CacheBackendMemory,
			ProfileTTL:   300 * time.Second,
			AddressesTTL: 600 * time.Second,
			KYCTTL:       120 * time.Second,
		},
		Business: Business{
			MaxAddresses:         10,
			KYCValidityDays:      365,
			KYCRenewalWarning:    30 * 24 * time.Hour,
			KYCExpirySweep:       time.Hour,
			MakerCheckerSLA:      24 * time.Hour,
			MandatoryConsents:    []string{"terms_and_conditions", "data_usage"},
			DocumentDownloadBase: "http://localhost:8080/documents",
		},
		Weights: Weights{PersonalInfo: 50, AddressInfo: 20, KYCInfo: 20, DocumentsInfo: 10},
		Collaborators: Collaborators{
			Timeout:  5 * time.Second,
			Attempts: 3,
		},
		Audit: Audit{
			Topic:             "profile.audit",
			Partitions:        3,
			ReplicationFactor: 1,
			BufferSize:        1024,
		},
		Metrics: Metrics{Enabled: true},
	}
}

// FromEnv loads .env if present, then the YAML file named by
// PROFILE_CONFIG_FILE (if any), then environment overrides.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()
	return Load(os.Getenv("PROFILE_CONFIG_FILE"))
}

// Load reads path over the defaults (an empty path skips the file), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if math.Abs(c.Weights.Sum()-100) > 0.001 {
		errs = append(errs, fmt.Errorf("completeness weights must sum to 100, got %.2f", c.Weights.Sum()))
	}
	if c.Cache.ProfileTTL <= 0 || c.Cache.AddressesTTL <= 0 || c.Cache.KYCTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis cache backend requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Server.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT signing key is required"))
	}
	if c.Business.MaxAddresses <= 0 {
		errs = append(errs, errors.New("max addresses must be positive"))
	}
	if c.Business.KYCValidityDays <= 0 {
		errs = append(errs, errors.New("KYC validity must be positive"))
	}
	if c.Collaborators.Attempts < 1 {
		errs = append(errs, errors.New("collaborator attempts must be at least 1"))
	}
	for action, rule := range c.RateLimits {
		if rule.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit %q needs a positive window", action))
		}
	}
	return errors.Join(errs...)
}

// KYCValidity converts the validity period to a duration.
func (c *Config) KYCValidity() time.Duration {
	return time.Duration(c.Business.KYCValidityDays) * 24 * time.Hour
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("PROFILE_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_KEY"); ok {
		c.Server.JWTSigningKey = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.Server.JWTIssuer = v
	}
	if v, ok := getEnvDur("REQUEST_TIMEOUT"); ok {
		c.Server.RequestTimeout = v
	}

	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}

	if v, ok := getEnvStr("REDIS_URL"); ok {
		c.Redis.URL = v
	}
	if v, ok := getEnvInt("REDIS_POOL_SIZE"); ok {
		c.Redis.PoolSize = v
	}

	if v, ok := getEnvStr("CACHE_BACKEND"); ok {
		c.Cache.Backend = strings.ToLower(v)
	}
	if v, ok := getEnvDur("CACHE_TTL_PROFILE"); ok {
		c.Cache.ProfileTTL = v
	}
	if v, ok := getEnvDur("CACHE_TTL_ADDRESSES"); ok {
		c.Cache.AddressesTTL = v
	}
	if v, ok := getEnvDur("CACHE_TTL_KYC"); ok {
		c.Cache.KYCTTL = v
	}

	if v, ok := getEnvInt("MAX_ADDRESSES"); ok {
		c.Business.MaxAddresses = v
	}
	if v, ok := getEnvInt("KYC_VALIDITY_DAYS"); ok {
		c.Business.KYCValidityDays = v
	}
	if v, ok := getEnvDur("KYC_EXPIRY_SWEEP"); ok {
		c.Business.KYCExpirySweep = v
	}
	if v, ok := getEnvDur("MAKER_CHECKER_SLA"); ok {
		c.Business.MakerCheckerSLA = v
	}

	if v, ok := getEnvStr("DOCUMENT_DOWNLOAD_BASE"); ok {
		c.Business.DocumentDownloadBase = v
	}

	if v, ok := getEnvStr("AUTHZ_SERVICE_URL"); ok {
		c.Collaborators.AuthzURL = v
	}
	if v, ok := getEnvStr("DOCUMENT_SERVICE_URL"); ok {
		c.Collaborators.DocumentURL = v
	}
	if v, ok := getEnvDur("COLLABORATOR_TIMEOUT"); ok {
		c.Collaborators.Timeout = v
	}
	if v, ok := getEnvInt("COLLABORATOR_ATTEMPTS"); ok {
		c.Collaborators.Attempts = v
	}

	if v, ok := getEnvStr("MIRROR_DSN"); ok {
		c.Mirror.DSN = v
	}

	if v, ok := getEnvCSV("AUDIT_KAFKA_BROKERS"); ok {
		c.Audit.Brokers = v
	}
	if v, ok := getEnvStr("AUDIT_KAFKA_TOPIC"); ok {
		c.Audit.Topic = v
	}

	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
