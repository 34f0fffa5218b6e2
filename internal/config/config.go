// Package config
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DRIVETEMP"

type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Source   SourceConfig   `yaml:"source"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PipelineConfig struct {
	Mapping             string `yaml:"mapping" validate:"omitempty,oneof=flat hri"`
	TargetType          string `yaml:"target_type"`
	HRISuffix           string `yaml:"hri_suffix"`
	TimestampResolution string `yaml:"timestamp_resolution" validate:"omitempty,oneof=ns us ms s"`
	Workers             int    `yaml:"workers" validate:"min=0,max=256"`
	Strict              bool   `yaml:"strict"`
}

type SourceConfig struct {
	Kind string    `yaml:"kind" validate:"omitempty,oneof=file stdin ssh"`
	Path string    `yaml:"path"`
	SSH  SSHConfig `yaml:"ssh"`
}

type SSHConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"min=0,max=65535"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	PrivateKeyFile string `yaml:"private_key_file"`
	KnownHostsFile string `yaml:"known_hosts_file"`
	Command        string `yaml:"command"`
	TimeoutMS      int    `yaml:"timeout_ms" validate:"min=0"`
}

type OutputConfig struct {
	Path   string `yaml:"path"`
	Header bool   `yaml:"header"`
	Debug  bool   `yaml:"debug"`
}

// PoolConfig defines connection pool settings
type PoolConfig struct {
	MaxConns                 int `yaml:"max_conns" validate:"min=0"`
	MinConns                 int `yaml:"min_conns" validate:"min=0"`
	MaxConnLifetimeMinutes   int `yaml:"max_conn_lifetime_minutes" validate:"min=0"`
	MaxConnIdleTimeMinutes   int `yaml:"max_conn_idle_time_minutes" validate:"min=0"`
	HealthCheckPeriodSeconds int `yaml:"health_check_period_seconds" validate:"min=0"`
}

type DatabaseConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Host     string     `yaml:"host" validate:"required_if=Enabled true"`
	Port     int        `yaml:"port" validate:"min=0,max=65535"`
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	DBName   string     `yaml:"dbname" validate:"required_if=Enabled true"`
	SSLMode  string     `yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	Table    string     `yaml:"table"`
	Pool     PoolConfig `yaml:"pool"`
}

type AlertsConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Target           string   `yaml:"target" validate:"required_if=Enabled true"`
	Port             int      `yaml:"port" validate:"min=0,max=65535"`
	Community        string   `yaml:"community"`
	EnterpriseOID    string   `yaml:"enterprise_oid"`
	NormalSeverities []string `yaml:"normal_severities"`
	TimeoutMS        int      `yaml:"timeout_ms" validate:"min=0"`
	Retries          int      `yaml:"retries" validate:"min=0"`
}

type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
	Namespace    string `yaml:"namespace"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"min=0,max=65535"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms" validate:"min=0"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms" validate:"min=0"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes" validate:"min=0"`
}

type AuthConfig struct {
	AdminUsername  string `yaml:"admin_username"`
	AdminPassword  string `yaml:"admin_password"`
	JWTSecret      string `yaml:"jwt_secret" validate:"omitempty,min=32"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours" validate:"min=0"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format" validate:"omitempty,oneof=json text"`
	Output   string `yaml:"output" validate:"omitempty,oneof=stdout stderr file"`
	FilePath string `yaml:"file_path" validate:"required_if=Output file"`
}

// Load reads configuration from file and applies environment variable
// overrides. An empty path starts from the defaults alone.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	if c.Pipeline.Mapping == "" {
		c.Pipeline.Mapping = "flat"
	}
	if c.Pipeline.TargetType == "" {
		c.Pipeline.TargetType = "Drive"
	}
	if c.Pipeline.TimestampResolution == "" {
		c.Pipeline.TimestampResolution = "ns"
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 1
	}

	if c.Source.Kind == "" {
		switch {
		case c.Source.SSH.Host != "":
			c.Source.Kind = "ssh"
		case c.Source.Path == "" || c.Source.Path == "-":
			c.Source.Kind = "stdin"
		default:
			c.Source.Kind = "file"
		}
	}
	if c.Source.SSH.Port == 0 {
		c.Source.SSH.Port = 22
	}
	if c.Source.SSH.TimeoutMS == 0 {
		c.Source.SSH.TimeoutMS = 30000
	}

	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Table == "" {
		c.Database.Table = "drive_temperatures"
	}
	c.Database.Pool.ApplyDefaults()

	if c.Alerts.Port == 0 {
		c.Alerts.Port = 162
	}
	if c.Alerts.Community == "" {
		c.Alerts.Community = "public"
	}
	if c.Alerts.EnterpriseOID == "" {
		c.Alerts.EnterpriseOID = "1.3.6.1.4.1.8072.9999.9999"
	}
	if len(c.Alerts.NormalSeverities) == 0 {
		c.Alerts.NormalSeverities = []string{"Normal", "OK", "Informational"}
	}
	if c.Alerts.TimeoutMS == 0 {
		c.Alerts.TimeoutMS = 2000
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "drivetemp"
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = 30000
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = 30000
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 64 << 20
	}

	if c.Auth.AdminUsername == "" {
		c.Auth.AdminUsername = "admin"
	}
	if c.Auth.JWTExpiryHours == 0 {
		c.Auth.JWTExpiryHours = 24
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
}

// ApplyDefaults sets default values for pool configuration
func (p *PoolConfig) ApplyDefaults() {
	if p.MaxConns == 0 {
		p.MaxConns = 4
	}
	if p.MinConns == 0 {
		p.MinConns = 1
	}
	if p.MaxConnLifetimeMinutes == 0 {
		p.MaxConnLifetimeMinutes = 60
	}
	if p.MaxConnIdleTimeMinutes == 0 {
		p.MaxConnIdleTimeMinutes = 10
	}
	if p.HealthCheckPeriodSeconds == 0 {
		p.HealthCheckPeriodSeconds = 45
	}
}

// applyEnvOverrides checks for environment variables with the DRIVETEMP_ prefix
func applyEnvOverrides(cfg *Config) {
	// Pipeline overrides
	envString("PIPELINE_MAPPING", &cfg.Pipeline.Mapping)
	envString("PIPELINE_TARGET_TYPE", &cfg.Pipeline.TargetType)
	envString("PIPELINE_TIMESTAMP_RESOLUTION", &cfg.Pipeline.TimestampResolution)
	envInt("PIPELINE_WORKERS", &cfg.Pipeline.Workers)
	envBool("PIPELINE_STRICT", &cfg.Pipeline.Strict)

	// Source overrides
	envString("SOURCE_KIND", &cfg.Source.Kind)
	envString("SOURCE_PATH", &cfg.Source.Path)
	envString("SOURCE_SSH_HOST", &cfg.Source.SSH.Host)
	envInt("SOURCE_SSH_PORT", &cfg.Source.SSH.Port)
	envString("SOURCE_SSH_USERNAME", &cfg.Source.SSH.Username)
	envString("SOURCE_SSH_PASSWORD", &cfg.Source.SSH.Password)
	envString("SOURCE_SSH_PRIVATE_KEY_FILE", &cfg.Source.SSH.PrivateKeyFile)
	envString("SOURCE_SSH_COMMAND", &cfg.Source.SSH.Command)

	// Output overrides
	envString("OUTPUT_PATH", &cfg.Output.Path)
	envBool("OUTPUT_HEADER", &cfg.Output.Header)

	// Database overrides
	envBool("DATABASE_ENABLED", &cfg.Database.Enabled)
	envString("DATABASE_HOST", &cfg.Database.Host)
	envInt("DATABASE_PORT", &cfg.Database.Port)
	envString("DATABASE_USER", &cfg.Database.User)
	envString("DATABASE_PASSWORD", &cfg.Database.Password)
	envString("DATABASE_DBNAME", &cfg.Database.DBName)

	// Alert overrides
	envBool("ALERTS_ENABLED", &cfg.Alerts.Enabled)
	envString("ALERTS_TARGET", &cfg.Alerts.Target)
	envString("ALERTS_COMMUNITY", &cfg.Alerts.Community)

	// Metrics overrides
	envString("METRICS_TEXTFILE_PATH", &cfg.Metrics.TextfilePath)

	// Server and auth overrides
	envInt("SERVER_PORT", &cfg.Server.Port)
	envString("AUTH_ADMIN_PASSWORD", &cfg.Auth.AdminPassword)
	envString("AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)

	// Logging overrides
	envString("LOGGING_LEVEL", &cfg.Logging.Level)
	envString("LOGGING_FORMAT", &cfg.Logging.Format)
}

func envString(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + "_" + key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(EnvPrefix + "_" + key); v != "" {
		fmt.Sscanf(v, "%d", dst)
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(EnvPrefix + "_" + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Timeout returns the SSH dial and command timeout.
func (s *SSHConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// Addr returns host:port.
func (s *SSHConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ReadTimeout returns the read timeout as a duration
func (s *ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the write timeout as a duration
func (s *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ConnString returns the PostgreSQL connection string in postgres:// URL format
func (d *DatabaseConfig) ConnString() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}

	query := url.Values{}
	if d.SSLMode != "" {
		query.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// MaxConnLifetime returns the max connection lifetime as a duration
func (p *PoolConfig) MaxConnLifetime() time.Duration {
	return time.Duration(p.MaxConnLifetimeMinutes) * time.Minute
}

// MaxConnIdleTime returns the max connection idle time as a duration
func (p *PoolConfig) MaxConnIdleTime() time.Duration {
	return time.Duration(p.MaxConnIdleTimeMinutes) * time.Minute
}

// HealthCheckPeriod returns the health check period as a duration
func (p *PoolConfig) HealthCheckPeriod() time.Duration {
	return time.Duration(p.HealthCheckPeriodSeconds) * time.Second
}

// Timeout returns the trap send timeout.
func (a *AlertsConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

// IsNormal reports whether severity needs no alert.
func (a *AlertsConfig) IsNormal(severity string) bool {
	return slices.ContainsFunc(a.NormalSeverities, func(s string) bool {
		return strings.EqualFold(s, severity)
	})
}

// JWTExpiry returns JWT expiry as duration
func (a *AuthConfig) JWTExpiry() time.Duration {
	return time.Duration(a.JWTExpiryHours) * time.Hour
}

// IsLogLevelValid checks if the log level is valid
func (l *LoggingConfig) IsLogLevelValid() bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	return slices.Contains(validLevels, strings.ToLower(l.Level))
}
