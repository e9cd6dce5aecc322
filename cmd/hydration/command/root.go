package command

import (
	"fmt"
	"os"

	"github.com/DataDog/datadog-agent/pkg/util/fxutil"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tidepool-org/hydration/api"
	"github.com/tidepool-org/hydration/config"
	"github.com/tidepool-org/hydration/logger"
	"github.com/tidepool-org/hydration/thresholds"
)

var logLevel string

// Run executes a given function with dependencies supplied by the hydration service DI graph
// `f` must return an error or nothing
// `opts` can be used to supply additional arguments that are not provided by the service
func Run(f interface{}, opts ...fx.Option) error {
	deps := append(opts, api.Dependencies())
	return fxutil.OneShot(f, deps...)
}

// RunOffline is like Run but only provides the engine configuration. It does
// not connect to any database.
func RunOffline(f interface{}, opts ...fx.Option) error {
	deps := append(opts, fx.Provide(
		logger.NewProductionLogger,
		logger.Suggar,
		config.NewConfig,
		config.NewClock,
		thresholds.NewConfig,
	))
	return fxutil.OneShot(f, deps...)
}

var rootCmd = &cobra.Command{
	Use:   "hydration",
	Short: "Helper tool for the hydration status service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Overwrite zap's log level
		return os.Setenv("LOG_LEVEL", logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "v", "error", "Log Level")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
