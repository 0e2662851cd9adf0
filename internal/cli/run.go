package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"grantlens/adapters/csvsource"
	"grantlens/adapters/export"
	"grantlens/adapters/healthmetrics"
	"grantlens/adapters/postgres"
	"grantlens/app"
	internal "grantlens/internal"
	"grantlens/internal/config"
	"grantlens/internal/features"
	geo "grantlens/internal/geo"
	"grantlens/internal/inference/engine"
	"grantlens/ports"
)

var (
	runGrantsPath     string
	runPopulationPath string
	runAnalysesPath   string
	runReferencePath  string
	runOutcomesPath   string
	runFetch          bool
	runMetrics        []string
	runStates         []string
	runYears          string
	runKSeed          int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full reconciliation and inference pipeline",
	Long: `Run ingests the grant extract and population reference, pulls outcome
metrics (from the service or a local extract), reconciles everything
into the canonical table, derives equity features, executes the
analysis battery, and writes the run artifacts.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runGrantsPath, "grants", "", "grant extract file (csv or xlsx)")
	runCmd.Flags().StringVar(&runPopulationPath, "population", "", "population reference csv")
	runCmd.Flags().StringVar(&runAnalysesPath, "analyses", "", "analysis battery yaml")
	runCmd.Flags().StringVar(&runReferencePath, "reference", "", "optional reference yaml (tier breakpoints, resolver tuning)")
	runCmd.Flags().StringVar(&runOutcomesPath, "outcomes", "", "local outcome extract json (offline runs)")
	runCmd.Flags().BoolVar(&runFetch, "fetch", false, "fetch outcomes from the metrics service")
	runCmd.Flags().String("out", "", "artifact output directory (overrides EXPORT_DIR)")
	_ = viper.BindPFlag("out", runCmd.Flags().Lookup("out"))
	runCmd.Flags().StringSliceVar(&runMetrics, "metrics", nil, "metrics to fetch (default: all)")
	runCmd.Flags().StringSliceVar(&runStates, "states", nil, "state codes to fetch (default: all)")
	runCmd.Flags().StringVar(&runYears, "years", "", "year range to fetch, e.g. 2015-2021")
	runCmd.Flags().Int64Var(&runKSeed, "k-seed", 0, "k-means initialization seed (0 uses configured seed)")

	_ = runCmd.MarkFlagRequired("grants")
	_ = runCmd.MarkFlagRequired("population")
	_ = runCmd.MarkFlagRequired("analyses")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dir := viper.GetString("out"); dir != "" {
		cfg.Export.Dir = dir
	}
	if runKSeed != 0 {
		cfg.Pipeline.ClusterSeed = runKSeed
	}

	battery, err := config.LoadBattery(runAnalysesPath)
	if err != nil {
		return err
	}

	var reference *config.Reference
	if runReferencePath != "" {
		reference, err = config.LoadReference(runReferencePath)
		if err != nil {
			return err
		}
		if reference.FuzzyMaxDistance != nil {
			cfg.Pipeline.FuzzyMaxDist = *reference.FuzzyMaxDistance
		}
	}

	outcomeSource, query, err := buildOutcomeSource(cfg)
	if err != nil {
		return err
	}

	resolver := geo.NewResolver(cfg.Pipeline.FuzzyMaxDist)

	featureCfg := features.Config{}
	if reference != nil {
		featureCfg.TierBreakpoints = reference.TierBreakpoints
		featureCfg.TierLabels = reference.TierLabels
	}

	var store ports.ArtifactStore
	if cfg.Database.Enabled() {
		db, err := postgres.Connect(cfg.Database.DSN())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(cmd.Context(), db); err != nil {
			return err
		}
		store = postgres.NewArtifactStore(db)
	}

	progress := cfg.Export.ProgressBar && verboseEnabled()
	service := app.NewPipelineService(
		csvsource.NewGrantReader(runGrantsPath, progress),
		outcomeSource,
		csvsource.NewPopulationReader(runPopulationPath, resolver),
		store,
		[]ports.Exporter{export.NewFileExporter(cfg.Export)},
		resolver,
		features.NewEngineer(featureCfg),
		engine.New(engine.Options{
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
			ClusterSeed:    cfg.Pipeline.ClusterSeed,
			MinGroupSize:   cfg.Pipeline.MinGroupSize,
		}),
		internal.DefaultLogger,
	)

	stage("pipeline starting")
	artifacts, err := service.Run(cmd.Context(), app.RunRequest{Battery: battery, Query: query})
	if err != nil {
		return err
	}
	stage(fmt.Sprintf("run %s complete", artifacts.Report.RunID))
	return nil
}

// buildOutcomeSource selects the metrics-service client or the local file
// fallback, with the file taking precedence for offline runs
func buildOutcomeSource(cfg *config.Config) (ports.OutcomeSource, ports.OutcomeQuery, error) {
	// A local extract carries its own scope, so no query is needed
	if runOutcomesPath != "" {
		return csvsource.NewOutcomeFileSource(runOutcomesPath), ports.OutcomeQuery{}, nil
	}
	if !runFetch {
		return nil, ports.OutcomeQuery{}, fmt.Errorf("either --outcomes or --fetch is required")
	}

	query, err := parseOutcomeQuery(runMetrics, runStates, runYears)
	if err != nil {
		return nil, query, err
	}
	if cfg.HealthMetrics.BaseURL == "" {
		return nil, query, fmt.Errorf("--fetch requires HEALTH_METRICS_BASE_URL")
	}
	return healthmetrics.NewClient(healthmetrics.Config{
		BaseURL:           cfg.HealthMetrics.BaseURL,
		Timeout:           cfg.HealthMetrics.Timeout,
		RequestsPerSecond: cfg.HealthMetrics.RequestsPerSecond,
		Burst:             cfg.HealthMetrics.Burst,
		MaxRetries:        cfg.HealthMetrics.MaxRetries,
		CacheTTL:          cfg.HealthMetrics.CacheTTL,
		UserAgent:         cfg.HealthMetrics.UserAgent,
	}), query, nil
}

// stage prints a checkmarked progress line to stderr in verbose mode
func stage(msg string) {
	if verboseEnabled() {
		fmt.Fprintf(os.Stderr, "✓ %s\n", msg)
	}
}
