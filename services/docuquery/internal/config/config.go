package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file. DOCUQUERY_CONFIG overrides it.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port              string   `yaml:"port"`
	LogLevel          string   `yaml:"logLevel"`
	JWTSecret         string   `yaml:"jwtSecret"`
	SessionTTL        string   `yaml:"sessionTTL"`
	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	DatabaseURL       string   `yaml:"databaseURL"`
	DataDir           string   `yaml:"dataDir"`
	MinioEndpoint     string   `yaml:"minioEndpoint"`
	MinioAccessKey    string   `yaml:"minioAccessKey"`
	MinioSecretKey    string   `yaml:"minioSecretKey"`
	MinioBucket       string   `yaml:"minioBucket"`
	MinioUseSSL       bool     `yaml:"minioUseSSL"`
	LatencyMin        string   `yaml:"latencyMin"`
	LatencyMax        string   `yaml:"latencyMax"`
	TickInterval      string   `yaml:"tickInterval"`
	PagesPerTick      int      `yaml:"pagesPerTick"`
	FailureRate       float64  `yaml:"failureRate"`
	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	Seed              *bool    `yaml:"seed"`
}

// Path returns the config path to load, honouring DOCUQUERY_CONFIG.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("DOCUQUERY_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// Load reads config from path (defaults to config.yaml), applies env
// overrides and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("DOCUQUERY_PORT", &cfg.Port)
	setString("DOCUQUERY_LOG_LEVEL", &cfg.LogLevel)
	setString("DOCUQUERY_JWT_SECRET", &cfg.JWTSecret)
	setString("DOCUQUERY_SESSION_TTL", &cfg.SessionTTL)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("DOCUQUERY_DATA_DIR", &cfg.DataDir)
	setString("MINIO_ENDPOINT", &cfg.MinioEndpoint)
	setString("MINIO_ACCESS_KEY", &cfg.MinioAccessKey)
	setString("MINIO_SECRET_KEY", &cfg.MinioSecretKey)
	setString("MINIO_BUCKET", &cfg.MinioBucket)
	setString("DOCUQUERY_LATENCY_MIN", &cfg.LatencyMin)
	setString("DOCUQUERY_LATENCY_MAX", &cfg.LatencyMax)
	setString("DOCUQUERY_TICK_INTERVAL", &cfg.TickInterval)

	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("DOCUQUERY_PAGES_PER_TICK"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.PagesPerTick = n
		}
	}
	if v := os.Getenv("DOCUQUERY_FAILURE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.FailureRate = f
		}
	}
	if v := os.Getenv("DOCUQUERY_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("DOCUQUERY_ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitCSV(v)
	}
	if v := os.Getenv("DOCUQUERY_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("DOCUQUERY_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("DOCUQUERY_SEED"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Seed = &b
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or DOCUQUERY_PORT)")
	}
	if len(strings.TrimSpace(cfg.JWTSecret)) < 16 {
		return errors.New("config: jwtSecret must be at least 16 characters (set in config.yaml or DOCUQUERY_JWT_SECRET)")
	}
	for name, value := range map[string]string{
		"sessionTTL":   cfg.SessionTTL,
		"latencyMin":   cfg.LatencyMin,
		"latencyMax":   cfg.LatencyMax,
		"tickInterval": cfg.TickInterval,
	} {
		if _, err := ParseDuration(name, value); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	minLatency, _ := ParseDuration("latencyMin", cfg.LatencyMin)
	maxLatency, _ := ParseDuration("latencyMax", cfg.LatencyMax)
	if maxLatency != 0 && maxLatency < minLatency {
		return errors.New("config: latencyMax must be >= latencyMin")
	}
	if cfg.PagesPerTick < 0 {
		return errors.New("config: pagesPerTick must be >= 0")
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return errors.New("config: failureRate must be within [0, 1]")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "") {
		return errors.New("config: minioAccessKey, minioSecretKey and minioBucket are required with minioEndpoint")
	}
	return nil
}

// SeedEnabled reports whether demo data should be loaded. Defaults to true.
func (c FileConfig) SeedEnabled() bool {
	return c.Seed == nil || *c.Seed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseDuration parses an optional duration setting. Empty means zero.
func ParseDuration(name, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return dur, nil
}
