package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drivetemp.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	if cfg.Pipeline.Mapping != "flat" {
		t.Errorf("mapping = %q, want flat", cfg.Pipeline.Mapping)
	}
	if cfg.Pipeline.TimestampResolution != "ns" {
		t.Errorf("resolution = %q, want ns", cfg.Pipeline.TimestampResolution)
	}
	if cfg.Source.Kind != "stdin" {
		t.Errorf("source kind = %q, want stdin", cfg.Source.Kind)
	}
	if cfg.Database.Table != "drive_temperatures" {
		t.Errorf("table = %q", cfg.Database.Table)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("log output = %q, want stderr", cfg.Logging.Output)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  mapping: hri
  timestamp_resolution: ms
  workers: 4
source:
  path: /tmp/health.json
database:
  enabled: true
  host: db
  dbname: metrics
  user: writer
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.Mapping != "hri" || cfg.Pipeline.Workers != 4 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Source.Kind != "file" {
		t.Errorf("source kind = %q, want file", cfg.Source.Kind)
	}
	if got, want := cfg.Database.ConnString(), "postgres://writer:@db:5432/metrics?sslmode=disable"; got != want {
		t.Errorf("ConnString() = %q, want %q", got, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DRIVETEMP_PIPELINE_MAPPING", "hri")
	t.Setenv("DRIVETEMP_PIPELINE_WORKERS", "8")
	t.Setenv("DRIVETEMP_OUTPUT_HEADER", "true")
	t.Setenv("DRIVETEMP_DATABASE_PORT", "6543")

	cfg, err := Load(writeConfig(t, "pipeline:\n  mapping: flat\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.Mapping != "hri" {
		t.Errorf("mapping = %q, want env override hri", cfg.Pipeline.Mapping)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Pipeline.Workers)
	}
	if !cfg.Output.Header {
		t.Error("header should be enabled by env")
	}
	if cfg.Database.Port != 6543 {
		t.Errorf("port = %d, want 6543", cfg.Database.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad mapping", func(c *Config) { c.Pipeline.Mapping = "xml" }, "pipeline.mapping"},
		{"bad resolution", func(c *Config) { c.Pipeline.TimestampResolution = "fortnight" }, "pipeline.timestamp_resolution"},
		{"too many workers", func(c *Config) { c.Pipeline.Workers = 1000 }, "pipeline.workers"},
		{"database without host", func(c *Config) { c.Database.Enabled = true; c.Database.DBName = "x" }, "database.host"},
		{"alerts without target", func(c *Config) { c.Alerts.Enabled = true }, "alerts.target"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short"; c.Auth.AdminPassword = "pw" }, "auth.jwt_secret"},
		{"jwt without password", func(c *Config) { c.Auth.JWTSecret = strings.Repeat("s", 32) }, "auth.admin_password"},
		{"ssh without host", func(c *Config) { c.Source.Kind = "ssh" }, "source.ssh.host"},
		{"file without path", func(c *Config) { c.Source.Kind = "file" }, "source.path"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log file without path", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verrs *ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error type = %T, want *ValidationErrors", err)
			}
			found := false
			for _, e := range verrs.Errors {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s in %v", tt.field, err)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestDumpExampleConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := DumpExampleConfig(&buf); err != nil {
		t.Fatalf("DumpExampleConfig() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "# ====") {
		t.Error("missing header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(buf.Bytes(), &cfg); err != nil {
		t.Fatalf("example is not valid YAML: %v", err)
	}
	if cfg.Source.SSH.Command == "" || cfg.Database.Table == "" {
		t.Errorf("example lost fields: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("example does not validate: %v", err)
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "index", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, `"index":3`) {
		t.Errorf("json output = %q", out)
	}
}

func TestLogWriter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	w, closeFn, err := LogWriter(LoggingConfig{Output: "stdout"}, &stdout, &stderr)
	if err != nil || w != &stdout {
		t.Fatalf("stdout writer = %v, %v", w, err)
	}
	_ = closeFn()

	path := filepath.Join(t.TempDir(), "drivetemp.log")
	w, closeFn, err = LogWriter(LoggingConfig{Output: "file", FilePath: path}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("file writer error = %v", err)
	}
	NewLogger(LoggingConfig{}, w).Info("to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file content = %q", data)
	}
}
