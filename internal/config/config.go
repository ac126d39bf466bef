// Package config defines the dispatcher's command-line flags and their
// environment-variable equivalents.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every flag's env-var equivalent, e.g.
// --max-concurrent becomes DISPATCHER_MAX_CONCURRENT.
const EnvPrefix = "DISPATCHER"

// Config holds every value accepted via flag or environment variable, as
// described in spec.md §6.
type Config struct {
	Filter           string
	FromFile         string
	Port             uint16
	MaxConcurrentSet bool
	MaxConcurrent    uint16
	KeepExitedSet    bool
	KeepExitedFor    uint32
	UpkeepInterval   uint16
	Transport        string
	Namespace        string
	LogLevel         string
}

// BindFlags registers every flag (with its default) on cmd.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("from-file", "", "read the filter source from this path, instead of the positional argument")
	flags.Uint16P("port", "p", 8000, "TCP port to listen on")
	flags.Uint16("max-concurrent", 0, "maximum number of concurrently-running containers; unset means unlimited")
	flags.Uint32("keep-exited-for", 0, "seconds to retain exited containers before removal; unset means retain indefinitely")
	flags.Uint16("upkeep-interval", 3, "tick interval, in seconds, for the scheduler and cleaner loops")
	flags.String("transport", "socket", "connection to the container engine: http, tls, or socket")
	flags.String("namespace", "default", "grouping-label value applied to every container this instance manages")
	flags.String("log-level", "info", "log level: debug, info, warn, or error")
}

// Load reads flags and their environment-variable equivalents (prefixed
// with EnvPrefix) into a Config. args[0], if present, is the positional
// filter source argument.
func Load(cmd *cobra.Command, args []string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("config: binding flags: %w", err)
	}

	cfg := &Config{
		FromFile:       v.GetString("from-file"),
		Port:           uint16(v.GetUint32("port")),
		UpkeepInterval: uint16(v.GetUint32("upkeep-interval")),
		Transport:      v.GetString("transport"),
		Namespace:      v.GetString("namespace"),
		LogLevel:       v.GetString("log-level"),
	}
	if len(args) > 0 {
		cfg.Filter = args[0]
	}

	if cmd.Flags().Changed("max-concurrent") || os.Getenv(EnvPrefix+"_MAX_CONCURRENT") != "" {
		cfg.MaxConcurrentSet = true
		cfg.MaxConcurrent = uint16(v.GetUint32("max-concurrent"))
	}
	if cmd.Flags().Changed("keep-exited-for") || os.Getenv(EnvPrefix+"_KEEP_EXITED_FOR") != "" {
		cfg.KeepExitedSet = true
		cfg.KeepExitedFor = v.GetUint32("keep-exited-for")
	}
	if cfg.UpkeepInterval < 1 {
		cfg.UpkeepInterval = 3
	}

	return cfg, nil
}
