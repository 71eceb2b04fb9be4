package commands

import (
	"github.com/spf13/cobra"
)

var (
	envFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "confluence",
	Short: "Adaptive price-level confluence engine",
	Long: `Detects swing-derived retracement and extension levels across timeframes,
sizes detection tolerance from recent volatility, scores multi-timeframe
confluence zones and tracks how detected signals play out.

Commands:
• server   HTTP API, WebSocket stream and the background scanner
• analyze  one-off analysis of a bar file or live Binance data
• migrate  create the Postgres signal tables`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")
}
