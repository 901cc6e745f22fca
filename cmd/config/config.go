package config

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sidkik/bak/cmd/util"
	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
	"github.com/sidkik/bak/pkg/resolve"
)

// Mocked for unit testing.
var (
	stdout     io.Writer = os.Stdout
	loadConfig           = util.LoadConfig
	configPath           = func() (string, error) { return config.ResolvePath(util.ConfigPath) }
)

// New creates a new `config` command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the bak configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the path of the config file",
		Run: func(_ *cobra.Command, _ []string) {
			path, err := configPath()
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "resolve config path"))
			}
			fmt.Fprintln(stdout, path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print it as bak understands it",
		Long: "Parse the config file, expand every sync entry, and print the\n" +
			"normalized config. Errors are reported the same way push and pull\n" +
			"would report them.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := check(); err != nil {
				util.HandleFatalError(err)
			}
		},
	})
	return cmd
}

func check() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	units, err := resolve.Extract(cfg.Sync)
	if err != nil {
		return errors.WithContext(err, "extract")
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	fmt.Fprintf(stdout, "# %s\n%s", cfg.GetPath(), out)
	fmt.Fprintf(stdout, "# mounts: %d, sync entries: %d, units: %d\n",
		len(cfg.Mounts), len(cfg.Sync), len(units))
	return nil
}
