package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/neuraadapt/engage/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Engage configuration file and ENGAGE_* environment for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	source := configPath
	if source == "" {
		source = "(defaults and environment)"
	}
	green := color.New(color.FgGreen, color.Bold)
	_, _ = green.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", source)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// findUnknownKeys reads the config file and returns keys the loader ignores.
func findUnknownKeys(configPath string) ([]string, error) {
	if configPath == "" {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := getValidKeys()
	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys
func getValidKeys() map[string]bool {
	return map[string]bool{
		// Analysis
		"analysis.endpoint": true,
		"analysis.path":     true,
		"analysis.field":    true,
		"analysis.timeout":  true,

		// Camera
		"camera.enabled": true,
		"camera.device":  true,

		// Playback
		"playback.bind_address":   true,
		"playback.port":           true,
		"playback.autoplay":       true,
		"playback.player_command": true,

		// Report
		"report.heatmap_cap": true,
		"report.format":      true,

		// Storage
		"storage.type":                 true,
		"storage.cache_size":           true,
		"storage.bolt.path":            true,
		"storage.redis.host":           true,
		"storage.redis.port":           true,
		"storage.redis.password":       true,
		"storage.redis.db":             true,
		"storage.redis.pool_size":      true,
		"storage.redis.min_idle_conns": true,
		"storage.redis.dial_timeout":   true,
		"storage.redis.read_timeout":   true,
		"storage.redis.write_timeout":  true,
		"storage.redis.record_ttl":     true,

		// Logging
		"logging.level":  true,
		"logging.format": true,

		// Metrics
		"metrics.enabled": true,
		"metrics.address": true,
	}
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Println("\n[analysis]")
	dumpField("  endpoint", cfg.Analysis.Endpoint, defaultCfg.Analysis.Endpoint, yellow, green)
	dumpField("  path", cfg.Analysis.Path, defaultCfg.Analysis.Path, yellow, green)
	dumpField("  field", cfg.Analysis.Field, defaultCfg.Analysis.Field, yellow, green)
	dumpField("  timeout", cfg.Analysis.Timeout, defaultCfg.Analysis.Timeout, yellow, green)

	_, _ = cyan.Println("\n[camera]")
	dumpField("  enabled", cfg.Camera.Enabled, defaultCfg.Camera.Enabled, yellow, green)
	dumpField("  device", cfg.Camera.Device, defaultCfg.Camera.Device, yellow, green)

	_, _ = cyan.Println("\n[playback]")
	dumpField("  bind_address", cfg.Playback.BindAddress, defaultCfg.Playback.BindAddress, yellow, green)
	dumpField("  port", cfg.Playback.Port, defaultCfg.Playback.Port, yellow, green)
	dumpField("  autoplay", cfg.Playback.Autoplay, defaultCfg.Playback.Autoplay, yellow, green)
	dumpField("  player_command", cfg.Playback.PlayerCommand, defaultCfg.Playback.PlayerCommand, yellow, green)

	_, _ = cyan.Println("\n[report]")
	dumpField("  heatmap_cap", cfg.Report.HeatmapCap, defaultCfg.Report.HeatmapCap, yellow, green)
	dumpField("  format", cfg.Report.Format, defaultCfg.Report.Format, yellow, green)

	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  cache_size", cfg.Storage.CacheSize, defaultCfg.Storage.CacheSize, yellow, green)
	_, _ = cyan.Println("  [storage.bolt]")
	dumpField("    path", cfg.Storage.Bolt.Path, defaultCfg.Storage.Bolt.Path, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)
	dumpField("    record_ttl", cfg.Storage.Redis.RecordTTL, defaultCfg.Storage.Redis.RecordTTL, yellow, green)

	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	_, _ = cyan.Println("\n[metrics]")
	dumpField("  enabled", cfg.Metrics.Enabled, defaultCfg.Metrics.Enabled, yellow, green)
	dumpField("  address", cfg.Metrics.Address, defaultCfg.Metrics.Address, yellow, green)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
