package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DumpExampleConfig writes an example configuration to the provided writer
func DumpExampleConfig(w io.Writer) error {
	example := &Config{
		Pipeline: PipelineConfig{
			Mapping:             "flat",
			TargetType:          "Drive",
			HRISuffix:           "/temperature",
			TimestampResolution: "ns",
			Workers:             1,
		},
		Source: SourceConfig{
			Kind: "file",
			Path: "./health.json",
			SSH: SSHConfig{
				Host:           "appliance.example.com",
				Port:           22,
				Username:       "monitor",
				PrivateKeyFile: "~/.ssh/id_ed25519",
				KnownHostsFile: "~/.ssh/known_hosts",
				Command:        "health dump --json",
				TimeoutMS:      30000,
			},
		},
		Output: OutputConfig{
			Path:   "",
			Header: false,
		},
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5432,
			User:     "drivetemp",
			Password: "changeme",
			DBName:   "drivetemp",
			SSLMode:  "disable",
			Table:    "drive_temperatures",
			Pool: PoolConfig{
				MaxConns:                 4,
				MinConns:                 1,
				MaxConnLifetimeMinutes:   60,
				MaxConnIdleTimeMinutes:   10,
				HealthCheckPeriodSeconds: 45,
			},
		},
		Alerts: AlertsConfig{
			Enabled:          false,
			Target:           "nms.example.com",
			Port:             162,
			Community:        "public",
			EnterpriseOID:    "1.3.6.1.4.1.8072.9999.9999",
			NormalSeverities: []string{"Normal", "OK", "Informational"},
			TimeoutMS:        2000,
			Retries:          1,
		},
		Metrics: MetricsConfig{
			TextfilePath: "/var/lib/node_exporter/textfile/drivetemp.prom",
			Namespace:    "drivetemp",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeoutMS:  30000,
			WriteTimeoutMS: 30000,
			MaxBodyBytes:   64 << 20,
		},
		Auth: AuthConfig{
			AdminUsername:  "admin",
			AdminPassword:  "changeme",
			JWTSecret:      "your-secret-key-minimum-32-chars-required",
			JWTExpiryHours: 24,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: "/var/log/drivetemp/drivetemp.log",
		},
	}

	// Create a YAML node for custom formatting with comments
	var node yaml.Node
	if err := node.Encode(example); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	header := `# =============================================================================
# drivetemp Example Configuration
# =============================================================================
# Copy this file to drivetemp.yaml and modify it according to your needs.
#
# Environment variable overrides follow the pattern: DRIVETEMP_<SECTION>_<KEY>
# Example: DRIVETEMP_SOURCE_PATH, DRIVETEMP_DATABASE_PASSWORD
# Command line flags take precedence over both.
# =============================================================================

`
	if _, err := fmt.Fprint(w, header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}

	footer := `
# =============================================================================
# Notes:
# =============================================================================
#
# 1. Timestamps:
#    - timestamp_resolution is the unit of raw numeric collection times
#      (ns, us, ms or s). Confirm it against the appliance before changing it.
#
# 2. Output:
#    - CSV goes to stdout unless output.path is set. Logs go to stderr.
#
# 3. Database and alerts:
#    - Run "drivetemp migrate" once before enabling database.enabled
#    - Traps are only sent for severities outside alerts.normal_severities
#
# 4. Security:
#    - Set DRIVETEMP_AUTH_JWT_SECRET (min 32 chars) to protect /api/v1/convert
#    - Change all default passwords before deploying
# =============================================================================
`
	if _, err := fmt.Fprint(w, footer); err != nil {
		return fmt.Errorf("failed to write footer: %w", err)
	}

	return nil
}
