package cmd

import (
	"fmt"
	"time"

	"github.com/q-controller/imagedrop/src/pkg/images/storage"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Runs one retention sweep over the upload directory and exits",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, configErr := loadConfig(cmd)
		if configErr != nil {
			return configErr
		}

		store, storeErr := storage.NewLocalFilesystemBackend(config.Storage.UploadDir)
		if storeErr != nil {
			return storeErr
		}

		sweeper, sweeperErr := storage.NewSweeper(store, config.MaxAge())
		if sweeperErr != nil {
			return sweeperErr
		}

		result := sweeper.Sweep(cmd.Context(), time.Now())
		if result.Err != nil {
			return fmt.Errorf("sweep failed: %w", result.Err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d deleted=%d skipped=%d failed=%d\n",
			result.Scanned, result.Deleted, result.Skipped, result.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
