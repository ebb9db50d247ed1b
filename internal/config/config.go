// Package config loads the service configuration from YAML with environment overrides.
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

// ConfigPath is the default config file, overridable with CAMPUSMART_CONFIG.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`
	SessionTTL  string `yaml:"sessionTTL"`
	BridgeTTL   string `yaml:"bridgeTTL"`

	CASURL         string   `yaml:"casURL"`
	CASProtocol    string   `yaml:"casProtocol"`
	CASServiceURLs []string `yaml:"casServiceURLs"`

	AdminEmails         []string `yaml:"adminEmails"`
	AllowedEmailDomains []string `yaml:"allowedEmailDomains"`
	DefaultEmailDomain  string   `yaml:"defaultEmailDomain"`

	AllowedOrigins    []string `yaml:"allowedOrigins"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`

	CASRateLimitPerMinute       int `yaml:"casRateLimitPerMinute"`
	AssistantRateLimitPerMinute int `yaml:"assistantRateLimitPerMinute"`
	SupportRateLimitPerMinute   int `yaml:"supportRateLimitPerMinute"`
	UploadRateLimitPerMinute    int `yaml:"uploadRateLimitPerMinute"`
	OTPVerifyRateLimitPerMinute int `yaml:"otpVerifyRateLimitPerMinute"`

	// AIProvider is gemini, ollama or openai-compat; empty disables the LLM fallback.
	AIProvider string `yaml:"aiProvider"`
	AIAPIKey   string `yaml:"aiApiKey"`
	AIBaseURL  string `yaml:"aiBaseURL"`
	AIModel    string `yaml:"aiModel"`

	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MinioPublicBaseURL string `yaml:"minioPublicBaseURL"`

	RazorpayKeyID     string `yaml:"razorpayKeyId"`
	RazorpayKeySecret string `yaml:"razorpayKeySecret"`
	RazorpayBaseURL   string `yaml:"razorpayBaseURL"`

	SendGridAPIKey    string `yaml:"sendgridApiKey"`
	SendGridFromEmail string `yaml:"sendgridFromEmail"`
	SendGridFromName  string `yaml:"sendgridFromName"`
	SupportInbox      string `yaml:"supportInbox"`

	SupportQueueConcurrency int `yaml:"supportQueueConcurrency"`
	SupportQueueMaxRetries  int `yaml:"supportQueueMaxRetries"`
}

// Durations are the parsed token lifetimes.
type Durations struct {
	Session time.Duration
	Bridge  time.Duration
	Leeway  time.Duration
}

// Load reads config from path, falling back to CAMPUSMART_CONFIG and then
// config.yaml. A missing file is fine when the environment supplies everything.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = os.Getenv("CAMPUSMART_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")

	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.JWTLeeway, "JWT_LEEWAY")
	setString(&cfg.SessionTTL, "SESSION_TTL")
	setString(&cfg.BridgeTTL, "BRIDGE_TTL")

	setString(&cfg.CASURL, "CAS_URL")
	setString(&cfg.CASProtocol, "CAS_PROTOCOL")
	setList(&cfg.CASServiceURLs, "CAS_SERVICE_URL")
	setList(&cfg.AdminEmails, "ADMIN_EMAILS")
	setList(&cfg.AllowedEmailDomains, "ALLOWED_EMAIL_DOMAINS")
	setString(&cfg.DefaultEmailDomain, "DEFAULT_EMAIL_DOMAIN")
	setList(&cfg.AllowedOrigins, "ALLOWED_ORIGINS")
	setList(&cfg.TrustedProxyCIDRs, "TRUSTED_PROXY_CIDRS")

	setInt(&cfg.CASRateLimitPerMinute, "CAS_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.AssistantRateLimitPerMinute, "ASSISTANT_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.SupportRateLimitPerMinute, "SUPPORT_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.UploadRateLimitPerMinute, "UPLOAD_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.OTPVerifyRateLimitPerMinute, "OTP_VERIFY_RATE_LIMIT_PER_MINUTE")

	// GEMINI_* is kept as a shorthand for the default provider.
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		cfg.AIProvider = "gemini"
		cfg.AIAPIKey = v
	}
	setString(&cfg.AIModel, "GEMINI_MODEL")
	setString(&cfg.AIProvider, "AI_PROVIDER")
	setString(&cfg.AIAPIKey, "AI_API_KEY")
	setString(&cfg.AIBaseURL, "AI_BASE_URL")
	setString(&cfg.AIModel, "AI_MODEL")

	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	setBool(&cfg.MinioUseSSL, "MINIO_USE_SSL")
	setString(&cfg.MinioPublicBaseURL, "MINIO_PUBLIC_BASE_URL")

	setString(&cfg.RazorpayKeyID, "RAZORPAY_KEY_ID")
	setString(&cfg.RazorpayKeySecret, "RAZORPAY_KEY_SECRET")
	setString(&cfg.RazorpayBaseURL, "RAZORPAY_BASE_URL")

	setString(&cfg.SendGridAPIKey, "SENDGRID_API_KEY")
	setString(&cfg.SendGridFromEmail, "SENDGRID_FROM_EMAIL")
	setString(&cfg.SendGridFromName, "SENDGRID_FROM_NAME")
	setString(&cfg.SupportInbox, "SUPPORT_INBOX")
	setInt(&cfg.SupportQueueConcurrency, "SUPPORT_QUEUE_CONCURRENCY")
	setInt(&cfg.SupportQueueMaxRetries, "SUPPORT_QUEUE_MAX_RETRIES")
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "4000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "1h"
	}
	if cfg.BridgeTTL == "" {
		cfg.BridgeTTL = "10m"
	}
	if cfg.SupportQueueConcurrency <= 0 {
		cfg.SupportQueueConcurrency = 2
	}
	cfg.AIProvider = strings.ToLower(strings.TrimSpace(cfg.AIProvider))
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for rate limiting and token revocation")
	}
	if len(strings.TrimSpace(cfg.JWTSecret)) < 32 {
		return errors.New("config: jwtSecret is required and must be at least 32 characters")
	}
	if strings.TrimSpace(cfg.CASURL) == "" {
		return errors.New("config: casURL is required (set in config.yaml or CAS_URL)")
	}
	switch cfg.CASProtocol {
	case "", "1.0", "3.0":
	default:
		return fmt.Errorf("config: casProtocol must be 1.0 or 3.0, got %q", cfg.CASProtocol)
	}
	if _, err := cfg.ParseDurations(); err != nil {
		return err
	}
	if cfg.CASRateLimitPerMinute < 0 || cfg.AssistantRateLimitPerMinute < 0 || cfg.SupportRateLimitPerMinute < 0 ||
		cfg.UploadRateLimitPerMinute < 0 || cfg.OTPVerifyRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	switch cfg.AIProvider {
	case "", "gemini", "ollama", "openai", "openai-compat", "openai_compat":
	default:
		return fmt.Errorf("config: unsupported aiProvider %q", cfg.AIProvider)
	}
	if cfg.AIProvider == "gemini" && strings.TrimSpace(cfg.AIAPIKey) == "" {
		return errors.New("config: aiApiKey is required for the gemini provider")
	}
	if cfg.MinioEndpoint != "" && cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	if (cfg.RazorpayKeyID == "") != (cfg.RazorpayKeySecret == "") {
		return errors.New("config: razorpayKeyId and razorpayKeySecret must be set together")
	}
	if cfg.SendGridAPIKey != "" && (cfg.SupportInbox == "" || cfg.SendGridFromEmail == "") {
		return errors.New("config: supportInbox and sendgridFromEmail are required with sendgridApiKey")
	}
	if cfg.SupportQueueMaxRetries < 0 {
		return errors.New("config: supportQueueMaxRetries must be >= 0")
	}
	return nil
}

// ParseDurations parses the token lifetimes and JWT leeway.
func (cfg FileConfig) ParseDurations() (Durations, error) {
	var d Durations
	var err error
	if d.Session, err = parseDuration("sessionTTL", cfg.SessionTTL); err != nil {
		return d, err
	}
	if d.Bridge, err = parseDuration("bridgeTTL", cfg.BridgeTTL); err != nil {
		return d, err
	}
	if d.Leeway, err = parseDuration("jwtLeeway", cfg.JWTLeeway); err != nil {
		return d, err
	}
	return d, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", field, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", field)
	}
	return dur, nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		*dst = splitCSV(v)
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
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
