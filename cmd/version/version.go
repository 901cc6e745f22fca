package version

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/bak/pkg/transfer"
	"github.com/sidkik/bak/pkg/version"
)

// Mocked out for unit testing.
var (
	rsyncVersion           = transfer.Version
	stdout       io.Writer = os.Stdout
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of bak and rsync.",
		Long: "Print the version of bak, and the version of the rsync it runs.\n" +
			"rsync must be at least " + transfer.MinimumVersion + ".",
		Run: func(cmd *cobra.Command, _ []string) {
			run(cmd.Context())
		},
	}
}

func run(ctx context.Context) {
	fmt.Fprintf(stdout, "bak version:   %s\n", version.Get())

	v, err := rsyncVersion(ctx)
	if err != nil {
		log.WithError(err).Debug("Failed to get rsync version")
		fmt.Fprintln(stdout, "rsync version: unknown")
		return
	}
	fmt.Fprintf(stdout, "rsync version: %s\n", v)
}
