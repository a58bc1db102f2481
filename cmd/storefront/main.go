package main

import (
	"fmt"
	"os"

	"github.com/aq2208/gorder-storefront/configs"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/spf13/cobra"
)

var (
	envName   string
	configDir string
)

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Storefront checkout and order service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}
	rootCmd.PersistentFlags().StringVar(&envName, "env", env, "Config environment (dev, staging, prod); also APP_ENV")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "configs", "Directory holding base.yaml and {env}.yaml")

	rootCmd.AddCommand(serveCmd, migrateCmd, hashPasswordCmd)
}

// loadConfig reads configuration and initialises the global logger from it.
func loadConfig() (configs.Config, error) {
	cfg, err := configs.Load(configDir, envName)
	if err != nil {
		return configs.Config{}, fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Options{
		Component:  cfg.App.Name,
		Level:      cfg.App.LogLevel,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}
