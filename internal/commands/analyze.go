package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"confluence-backend/internal/config"
	"confluence-backend/internal/domain"
	"confluence-backend/internal/infrastructure/binance"
	"confluence-backend/internal/infrastructure/cache"
)

var (
	analyzeFile       string
	analyzeSymbol     string
	analyzeFetch      bool
	analyzeTimeframe  string
	analyzeLimit      int
	analyzeTolerance  string
	analyzeTimeframes []string
	analyzePretty     bool
)

// analyzeCmd runs a single analysis and prints the result JSON
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyse one symbol and print the result",
	Long: `Run the engine once and print the result as JSON.

The input is either a JSON file holding {"symbol", "bars", "frames", "config"}
or, with --fetch, recent klines from Binance futures.

Examples:
  confluence analyze --file bars.json
  confluence analyze --fetch --symbol BTCUSDT --timeframe 1h --limit 1000
  confluence analyze --file bars.json --tolerance-type WIDE --timeframes 1h,4h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context(), envFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		in, err := loadAnalysisInput(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return runAnalyze(cmd.Context(), cfg.Engine, in, cmd.OutOrStdout(), analyzePretty)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFile, "file", "f", "", "JSON input file")
	f.StringVarP(&analyzeSymbol, "symbol", "s", "", "Symbol (overrides the file's symbol)")
	f.BoolVar(&analyzeFetch, "fetch", false, "Fetch bars from Binance instead of a file")
	f.StringVar(&analyzeTimeframe, "timeframe", "1h", "Base timeframe when fetching")
	f.IntVar(&analyzeLimit, "limit", 1000, "Bars to fetch")
	f.StringVar(&analyzeTolerance, "tolerance-type", "", "TIGHT, STANDARD, WIDE or VERY_WIDE")
	f.StringSliceVar(&analyzeTimeframes, "timeframes", nil, "Timeframes to analyse")
	f.BoolVar(&analyzePretty, "pretty", false, "Indent the output")
}

func loadAnalysisInput(ctx context.Context, cfg *config.Config) (domain.AnalysisInput, error) {
	var in domain.AnalysisInput
	switch {
	case analyzeFetch:
		if analyzeSymbol == "" {
			return in, fmt.Errorf("--symbol is required with --fetch")
		}
		bars, err := binance.NewClient(cfg.Binance).Bars(ctx, analyzeSymbol, analyzeTimeframe, analyzeLimit)
		if err != nil {
			return in, err
		}
		in.Bars = bars
	case analyzeFile != "":
		data, err := os.ReadFile(analyzeFile)
		if err != nil {
			return in, err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("decode %s: %w", analyzeFile, err)
		}
	default:
		return in, fmt.Errorf("either --file or --fetch is required")
	}

	if analyzeSymbol != "" {
		in.Symbol = analyzeSymbol
	}
	if analyzeTolerance != "" {
		tt, err := domain.ParseToleranceType(analyzeTolerance)
		if err != nil {
			return in, err
		}
		in.Config.ToleranceType = tt
	}
	if len(analyzeTimeframes) > 0 {
		in.Config.Timeframes = nil
		for _, tf := range analyzeTimeframes {
			if tf = strings.TrimSpace(tf); tf != "" {
				in.Config.Timeframes = append(in.Config.Timeframes, tf)
			}
		}
	}
	return in, nil
}

func runAnalyze(ctx context.Context, engine config.EngineConfig, in domain.AnalysisInput, out io.Writer, pretty bool) error {
	analyzer, err := newAnalyzer(engine, cache.NewMemoryToleranceCache(0, 0))
	if err != nil {
		return err
	}
	res, err := analyzer.Analyze(ctx, in)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}
