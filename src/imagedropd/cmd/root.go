package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/q-controller/imagedrop/src/pkg/logging"
	"github.com/q-controller/imagedrop/src/pkg/settings"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imagedropd",
	Short: "Stores uploaded images and expires them after a retention window",
}

func Execute() {
	slog.SetDefault(logging.CreateLogger(logging.LevelFromEnv()))
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("failed to execute command", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies its log level unless LOG_LEVEL is set.
func loadConfig(cmd *cobra.Command) (*settings.Config, error) {
	configPath, configPathErr := cmd.Flags().GetString("config")
	if configPathErr != nil {
		return nil, fmt.Errorf("failed to get config: %w", configPathErr)
	}

	config, configErr := settings.Load(configPath)
	if configErr != nil {
		return nil, configErr
	}

	if os.Getenv("LOG_LEVEL") == "" {
		level, _ := logging.ParseLevel(config.LogLevel)
		slog.SetDefault(logging.CreateLogger(level))
	}
	slog.Debug("Read config", "config", config)
	return config, nil
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML config file (defaults are used when omitted)")
}
