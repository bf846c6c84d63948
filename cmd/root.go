package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lightbox-cli/internal/config"
	"github.com/sells-group/lightbox-cli/pkg/lightbox"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lightbox-cli",
	Short: "LightBox real-estate API client",
	Long:  "Geocodes address spreadsheets in batches and queries LightBox address, parcel, zoning and hazard data.",
	// API errors are reported by the commands; usage only helps with flag errors.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newClient validates the config for mode and builds a LightBox client from it.
func newClient(mode string) (lightbox.Client, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return lightbox.NewClient(cfg.LightBox.Key, clientOptions(cfg.LightBox)...), nil
}

func clientOptions(c config.LightBoxConfig) []lightbox.Option {
	opts := []lightbox.Option{
		lightbox.WithBaseURL(c.BaseURL),
		lightbox.WithTimeout(time.Duration(c.TimeoutSecs) * time.Second),
	}
	if c.Trace {
		opts = append(opts, lightbox.WithTrace(true))
	}
	return opts
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
