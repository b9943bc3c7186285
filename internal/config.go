package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m"`
	BCryptCost          int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
	CookieName          string        `mapstructure:"cookie_name"`
	CookieSecure        bool          `mapstructure:"cookie_secure"`
	LoginRatePerMinute  int           `mapstructure:"login_rate_per_minute"`
	LoginBurst          int           `mapstructure:"login_burst"`
}

type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Timezone           string `mapstructure:"timezone"`
	ReminderSpec       string `mapstructure:"reminder_spec"`
	PurgeSpec          string `mapstructure:"purge_spec"`
	DailySummarySpec   string `mapstructure:"daily_summary_spec"`
	WeeklySummarySpec  string `mapstructure:"weekly_summary_spec"`
	InactivitySpec     string `mapstructure:"inactivity_spec"`
	MilestoneSpec      string `mapstructure:"milestone_spec"`
	Milestones         []int  `mapstructure:"milestones"`
	MilestoneTolerance int    `mapstructure:"milestone_tolerance"`
	InactivityDays     int    `mapstructure:"inactivity_days"`
}

// ArchiveConfig enables copying purged activity logs to S3 before deletion.
type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name" validate:"required_if=Enabled true"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"min=0,max=1"`
	Endpoint     string  `mapstructure:"endpoint" validate:"required_if=Enabled true,url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

var DefaultMilestones = []int{100, 250, 500, 1000, 2500, 5000, 10000}

// ApplyDefaults fills every optional setting left empty by the config source.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Security.CookieName == "" {
		c.Security.CookieName = "survey_token"
	}
	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Security.LoginRatePerMinute == 0 {
		c.Security.LoginRatePerMinute = 10
	}
	if c.Security.LoginBurst == 0 {
		c.Security.LoginBurst = 5
	}

	s := &c.Scheduler
	if s.Timezone == "" {
		s.Timezone = "Asia/Colombo"
	}
	if s.ReminderSpec == "" {
		s.ReminderSpec = "0 9 25 * *"
	}
	if s.PurgeSpec == "" {
		s.PurgeSpec = "55 23 * * *"
	}
	if s.DailySummarySpec == "" {
		s.DailySummarySpec = "0 20 * * *"
	}
	if s.WeeklySummarySpec == "" {
		s.WeeklySummarySpec = "0 9 * * 1"
	}
	if s.InactivitySpec == "" {
		s.InactivitySpec = "0 10 * * 1"
	}
	if s.MilestoneSpec == "" {
		s.MilestoneSpec = "0 21 * * *"
	}
	if len(s.Milestones) == 0 {
		s.Milestones = append([]int(nil), DefaultMilestones...)
	}
	if s.MilestoneTolerance == 0 {
		s.MilestoneTolerance = 5
	}
	if s.InactivityDays == 0 {
		s.InactivityDays = 30
	}

	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "activity-logs"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// LoadConfigFromEnv builds the configuration purely from environment variables.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTSecret:           getEnv("JWT_SECRET", ""),
			AccessTokenDuration: getEnvAsDuration("ACCESS_TOKEN_DURATION", 24*time.Hour),
			BCryptCost:          getEnvAsInt("BCRYPT_COST", 12),
			CookieName:          getEnv("COOKIE_NAME", "survey_token"),
			CookieSecure:        getEnvAsBool("COOKIE_SECURE", true),
			LoginRatePerMinute:  getEnvAsInt("LOGIN_RATE_PER_MINUTE", 10),
			LoginBurst:          getEnvAsInt("LOGIN_BURST", 5),
		},
		Scheduler: SchedulerConfig{
			Enabled:            getEnvAsBool("SCHEDULER_ENABLED", true),
			Timezone:           getEnv("SCHEDULER_TIMEZONE", ""),
			ReminderSpec:       getEnv("SCHEDULER_REMINDER_SPEC", ""),
			PurgeSpec:          getEnv("SCHEDULER_PURGE_SPEC", ""),
			DailySummarySpec:   getEnv("SCHEDULER_DAILY_SUMMARY_SPEC", ""),
			WeeklySummarySpec:  getEnv("SCHEDULER_WEEKLY_SUMMARY_SPEC", ""),
			InactivitySpec:     getEnv("SCHEDULER_INACTIVITY_SPEC", ""),
			MilestoneSpec:      getEnv("SCHEDULER_MILESTONE_SPEC", ""),
			Milestones:         getEnvAsIntSlice("SCHEDULER_MILESTONES"),
			MilestoneTolerance: getEnvAsInt("SCHEDULER_MILESTONE_TOLERANCE", 0),
			InactivityDays:     getEnvAsInt("SCHEDULER_INACTIVITY_DAYS", 0),
		},
		Archive: ArchiveConfig{
			Enabled:  getEnvAsBool("ARCHIVE_ENABLED", false),
			Bucket:   getEnv("ARCHIVE_BUCKET", ""),
			Prefix:   getEnv("ARCHIVE_PREFIX", ""),
			Region:   getEnv("ARCHIVE_REGION", ""),
			Endpoint: getEnv("ARCHIVE_ENDPOINT", ""),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnvAsBool("METRICS_ENABLED", true),
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Tracing: TracingConfig{
				Enabled:      getEnvAsBool("TRACING_ENABLED", false),
				ServiceName:  getEnv("TRACING_SERVICE_NAME", "survey-management"),
				SamplingRate: getEnvAsFloat("TRACING_SAMPLING_RATE", 0.1),
				Endpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsIntSlice(key string) []int {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler config: %v", err))
	}

	if err := c.Archive.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("archive config: %v", err))
	}

	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("observability config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		for _, origin := range c.Origins() {
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// Origins splits the comma separated allow-list.
func (c *ServerConfig) Origins() []string {
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.AccessTokenDuration < time.Minute {
		return errors.New("access_token_duration must be at least 1m")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	if c.LoginRatePerMinute < 1 {
		return errors.New("login_rate_per_minute must be positive")
	}
	return nil
}

func (c *SchedulerConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	specs := map[string]string{
		"reminder_spec":       c.ReminderSpec,
		"purge_spec":          c.PurgeSpec,
		"daily_summary_spec":  c.DailySummarySpec,
		"weekly_summary_spec": c.WeeklySummarySpec,
		"inactivity_spec":     c.InactivitySpec,
		"milestone_spec":      c.MilestoneSpec,
	}
	for name, spec := range specs {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}
	for _, m := range c.Milestones {
		if m <= 0 {
			return fmt.Errorf("milestone %d must be positive", m)
		}
	}
	if c.MilestoneTolerance < 0 {
		return errors.New("milestone_tolerance cannot be negative")
	}
	if c.InactivityDays < 1 {
		return errors.New("inactivity_days must be positive")
	}
	return nil
}

func (c *ArchiveConfig) Validate() error {
	if c.Enabled && c.Bucket == "" {
		return errors.New("bucket is required when archive is enabled")
	}
	return nil
}

func (c *ObservabilityConfig) Validate() error {
	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			return errors.New("tracing endpoint is required when tracing is enabled")
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return errors.New("tracing sampling_rate must be between 0 and 1")
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	return nil
}
