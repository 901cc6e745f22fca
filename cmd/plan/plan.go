package plan

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/buger/goterm"
	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"

	"github.com/sidkik/bak/cmd/util"
	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
	"github.com/sidkik/bak/pkg/resolve"
)

// Mocked out for unit testing.
var (
	loadConfig           = util.LoadConfig
	stdout     io.Writer = os.Stdout
)

// New creates a new `plan` command.
func New() *cobra.Command {
	var pull bool
	var output string
	cmd := &cobra.Command{
		Use:   "plan [prefix] ...",
		Short: "Show what push or pull would sync, without touching anything",
		Long: "Resolve the sync entries under the given prefixes and print the\n" +
			"rsync batches and the mounts they need. Nothing is mounted or copied.",
		Run: func(_ *cobra.Command, prefixes []string) {
			d := resolve.Push
			if pull {
				d = resolve.Pull
			}
			if err := run(d, prefixes, output); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&pull, "pull", false, "plan a pull instead of a push")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or yaml")
	return cmd
}

// Result is the plan along with the mounts it depends on.
type Result struct {
	resolve.Plan
	Mounts []string `json:"mounts"`
}

func run(d resolve.Direction, prefixes []string, output string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	result, err := Make(cfg, d, prefixes)
	if err != nil {
		return err
	}

	switch output {
	case "yaml":
		out, err := yaml.Marshal(result)
		if err != nil {
			return errors.WithContext(err, "marshal")
		}
		_, err = stdout.Write(out)
		return err
	case "text":
		_, err := io.WriteString(stdout, Format(result))
		return err
	default:
		return errors.NewFriendlyError("Unknown output format %q. "+
			"Expected text or yaml.", output)
	}
}

// Make resolves the plan for `prefixes`, falling back to the default mounts
// when none are given.
func Make(cfg config.Config, d resolve.Direction, prefixes []string) (Result, error) {
	if len(prefixes) == 0 {
		prefixes = resolve.DefaultPrefixes(cfg.Mounts)
	}

	p, err := resolve.Resolve(cfg, d, prefixes)
	if err != nil {
		return Result{}, errors.WithContext(err, "resolve")
	}

	result := Result{Plan: p}
	for _, m := range resolve.Relevant(p.RemoteDirs, cfg.Mounts) {
		result.Mounts = append(result.Mounts, m.Path)
	}
	return result, nil
}

// Format renders the result for a terminal.
func Format(result Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", goterm.Bold("Prefixes:"), strings.Join(result.Prefixes, ", "))
	if len(result.Mounts) == 0 {
		fmt.Fprintf(&sb, "%s none\n", goterm.Bold("Mounts:"))
	} else {
		fmt.Fprintf(&sb, "%s %s\n", goterm.Bold("Mounts:"), strings.Join(result.Mounts, ", "))
	}

	if len(result.Batches) == 0 {
		sb.WriteString("Nothing to sync.\n")
		return sb.String()
	}

	for _, batch := range result.Batches {
		fmt.Fprintf(&sb, "\n%s %s\n", result.Direction,
			goterm.Color(batch.Destination, goterm.CYAN))
		for _, source := range batch.Sources {
			fmt.Fprintf(&sb, "  %s\n", source)
		}
	}
	return sb.String()
}
