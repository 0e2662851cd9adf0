package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "grantlens",
	Short: "Grantlens - grant-outcome reconciliation and inference pipeline",
	Long: `Grantlens reconciles federal grant-allocation records with external
public-health outcome metrics into one analytical table keyed by
geography and program, then runs a battery of statistical comparisons,
regressions, and clustering over it to surface equity patterns in
funding versus outcomes.

Every run ends with either a complete result set plus an audit of
exclusions, or a fatal error naming the unmet precondition.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("grantlens v0.3.0")
	},
}

func init() {
	viper.SetEnvPrefix("GRANTLENS")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose progress to stderr")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// verboseEnabled reads the flag through viper so GRANTLENS_VERBOSE works
// the same as --verbose
func verboseEnabled() bool {
	return viper.GetBool("verbose")
}
