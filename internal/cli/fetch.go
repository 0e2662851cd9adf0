package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"grantlens/adapters/csvsource"
	"grantlens/adapters/healthmetrics"
	"grantlens/domain/core"
	"grantlens/domain/outcomes"
	"grantlens/internal/config"
	geo "grantlens/internal/geo"
	"grantlens/ports"
)

var (
	fetchMetrics []string
	fetchStates  []string
	fetchYears   string
	fetchOut     string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull outcome metrics from the metrics service into a local extract",
	RunE:  runFetchCmd,
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchMetrics, "metrics", nil, "metrics to fetch (default: all)")
	fetchCmd.Flags().StringSliceVar(&fetchStates, "states", nil, "state codes to fetch (default: all)")
	fetchCmd.Flags().StringVar(&fetchYears, "years", "", "year range, e.g. 2015-2021")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "outcomes.json", "output file")

	_ = fetchCmd.MarkFlagRequired("years")

	rootCmd.AddCommand(fetchCmd)
}

func runFetchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.HealthMetrics.BaseURL == "" {
		return fmt.Errorf("fetch requires HEALTH_METRICS_BASE_URL")
	}

	query, err := parseOutcomeQuery(fetchMetrics, fetchStates, fetchYears)
	if err != nil {
		return err
	}

	client := healthmetrics.NewClient(healthmetrics.Config{
		BaseURL:           cfg.HealthMetrics.BaseURL,
		Timeout:           cfg.HealthMetrics.Timeout,
		RequestsPerSecond: cfg.HealthMetrics.RequestsPerSecond,
		Burst:             cfg.HealthMetrics.Burst,
		MaxRetries:        cfg.HealthMetrics.MaxRetries,
		CacheTTL:          cfg.HealthMetrics.CacheTTL,
		UserAgent:         cfg.HealthMetrics.UserAgent,
	})

	raws, err := client.FetchOutcomes(cmd.Context(), query)
	if err != nil {
		return err
	}

	data, err := csvsource.EncodeOutcomes(raws)
	if err != nil {
		return err
	}
	if err := os.WriteFile(fetchOut, data, 0o644); err != nil {
		return fmt.Errorf("write outcome extract: %w", err)
	}
	stage(fmt.Sprintf("wrote %d observations to %s", len(raws), fetchOut))
	return nil
}

// parseOutcomeQuery assembles an outcome pull from CLI inputs. Metrics
// and states default to the full supported sets.
func parseOutcomeQuery(metricNames, stateCodes []string, years string) (ports.OutcomeQuery, error) {
	query := ports.OutcomeQuery{}

	if len(metricNames) == 0 {
		query.Metrics = outcomes.AllMetrics()
	} else {
		for _, name := range metricNames {
			metric, err := outcomes.ParseMetric(name)
			if err != nil {
				return query, err
			}
			query.Metrics = append(query.Metrics, metric)
		}
	}

	if len(stateCodes) == 0 {
		query.States = geo.AllStateCodes()
	} else {
		resolver := geo.NewResolver(0)
		for _, code := range stateCodes {
			g, ok := resolver.Lookup(code)
			if !ok {
				return query, fmt.Errorf("unknown state code %q", code)
			}
			query.States = append(query.States, g.StateCode)
		}
	}

	from, to, err := parseYearRange(years)
	if err != nil {
		return query, err
	}
	query.YearFrom = from
	query.YearTo = to
	return query, nil
}

// parseYearRange accepts "2021" or "2015-2021"
func parseYearRange(s string) (core.FiscalYear, core.FiscalYear, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, fmt.Errorf("a year or year range is required")
	}

	parts := strings.SplitN(s, "-", 2)
	from, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad year %q", parts[0])
	}
	to := from
	if len(parts) == 2 {
		to, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("bad year %q", parts[1])
		}
	}
	if !core.FiscalYear(from).IsValid() || !core.FiscalYear(to).IsValid() || to < from {
		return 0, 0, fmt.Errorf("invalid year range %q", s)
	}
	return core.FiscalYear(from), core.FiscalYear(to), nil
}
