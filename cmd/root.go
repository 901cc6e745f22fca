package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sidkik/bak/cmd/bugtool"
	configCmd "github.com/sidkik/bak/cmd/config"
	mountCmd "github.com/sidkik/bak/cmd/mount"
	"github.com/sidkik/bak/cmd/plan"
	syncCmd "github.com/sidkik/bak/cmd/sync"
	"github.com/sidkik/bak/cmd/util"
	"github.com/sidkik/bak/cmd/version"
	"github.com/sidkik/bak/pkg/config"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged regardless of
// --log-level.
const verboseLogKey = "BAK_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	var logLevel string
	rootCmd := &cobra.Command{
		Use:   "bak",
		Short: "Back up directories to removable drives with rsync",
		Long: "bak syncs the paths listed in its config with directories on\n" +
			"removable drives, mounting the drives with pmount when needed.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if err := util.SetupLogging(logLevel, verboseLogKey); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&util.ConfigPath, "config", "c", "",
		"path to the config file (default $"+config.PathEnvKey+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"level of information logged to the terminal (debug, info, warning, error)")

	rootCmd.AddCommand(
		bugtool.New(),
		configCmd.New(),
		mountCmd.New(),
		mountCmd.NewUnmount(),
		plan.New(),
		syncCmd.NewPull(),
		syncCmd.NewPush(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
