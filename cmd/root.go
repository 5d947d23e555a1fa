package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"threadscope/internal/config"
	"threadscope/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	appCfg  config.Config
)

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "threadscope",
	Short: "Threadscope CLI",
	Long:  "Read-only Reddit viewer: listings, comment trees and categories from the public JSON API.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json, console)")
	_ = viper.BindPFlag("app.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("app.log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error reading .env: %v\n", err)
	}

	v := viper.GetViper()
	v.SetEnvPrefix("THREADSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env vars for keys viper already knows about.
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/threadscope")
		v.AddConfigPath("configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
			os.Exit(1)
		}
	}

	if err := v.Unmarshal(&appCfg); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing config: %v\n", err)
		os.Exit(1)
	}

	appCfg.FillDefaults()

	if err := logging.Setup(os.Stderr, appCfg.App.LogLevel, appCfg.App.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error configuring logging: %v\n", err)
		os.Exit(1)
	}
	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("using config file", "path", used)
	}
}

var envKeys = []string{
	"app.log_level", "app.log_format",
	"reddit.base_host", "reddit.listing_suffix", "reddit.user_agent", "reddit.timeout",
	"reddit.requests_per_minute", "reddit.burst",
	"viewer.debounce", "viewer.refresh_interval",
	"cache.backend", "cache.ttl",
	"redis.addr", "redis.username", "redis.password", "redis.db",
	"openai.api_key", "openai.base_url", "openai.model", "openai.language",
	"retry.max_retries", "retry.initial_interval", "retry.max_interval",
	"metrics.addr",
}

// GetConfig exposes the loaded configuration to subcommands.
func GetConfig() config.Config {
	return appCfg
}
