// Package cli wires configuration, sources, the pipeline and sinks into the
// drivetemp command.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nmslite/drivetemp/internal/config"
)

// app carries what every subcommand shares.
type app struct {
	cfgFile string
	v       *viper.Viper

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Execute runs the root command against the process streams.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	rootCmd := &cobra.Command{
		Use:   "drivetemp",
		Short: "Extract drive temperatures from appliance health dumps",
		Long: `drivetemp reads a JSON health dump, keeps the drive temperature
elements and writes them as canonical CSV lines. It can also store the rows in
PostgreSQL, forward abnormal drives as SNMP traps and serve conversions over
HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")

	a.v.SetEnvPrefix(config.EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	a.v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(newConvertCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	return rootCmd
}

// loadConfig reads the config file named by --config or DRIVETEMP_CONFIG.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// logger builds the configured logger. The returned function closes a log
// file if one was opened.
func (a *app) logger(cfg *config.Config) (*slog.Logger, func() error, error) {
	w, closeFn, err := config.LogWriter(cfg.Logging, a.stdout, a.stderr)
	if err != nil {
		return nil, closeFn, err
	}
	return config.NewLogger(cfg.Logging, w), closeFn, nil
}
