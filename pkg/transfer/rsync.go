package transfer

import (
	"context"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
	"github.com/sidkik/bak/pkg/resolve"
)

// MinimumVersion is the oldest rsync that supports every flag we pass.
const MinimumVersion = "3.0.0"

// Mocked out for unit testing.
var execCommand = exec.CommandContext

// Files that are never worth copying between drives.
var defaultExcludes = []string{"lost+found", ".Trash-1000"}

// Options control how a batch is transferred.
type Options struct {
	// DryRun lists what would change without changing anything.
	DryRun bool

	// FAT32 replaces --archive with flags that work on filesystems without
	// permissions or owners, and tolerates their two second timestamps.
	FAT32 bool

	DeleteBefore bool

	// Filters and Excludes are appended to the default rules.
	Filters  []string
	Excludes []string
}

// OptionsFromConfig returns the options set in the `rsync` section of the
// config.
func OptionsFromConfig(cfg config.RsyncOptions) Options {
	return Options{
		FAT32:        cfg.FAT32,
		DeleteBefore: cfg.DeleteBefore,
		Filters:      cfg.Filters,
		Excludes:     cfg.Excludes,
	}
}

// Args returns the rsync arguments that sync the batch's sources into its
// destination.
func Args(batch resolve.Batch, opts Options) []string {
	args := []string{"--progress"}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}

	if opts.FAT32 {
		args = append(args,
			"--recursive",
			"--links",
			"--times",
			"--devices",
			"--specials",
			"--size-only",
			"--modify-window=1")
	} else {
		args = append(args, "--archive")
	}

	args = append(args, "--delete")
	if opts.DeleteBefore {
		args = append(args, "--delete-before")
	}

	args = append(args, "--filter=dir-merge,- .gitignore")
	for _, filter := range opts.Filters {
		args = append(args, "--filter="+filter)
	}
	for _, excludes := range [][]string{defaultExcludes, opts.Excludes} {
		for _, exclude := range excludes {
			args = append(args, "--exclude="+exclude)
		}
	}

	args = append(args, batch.Sources...)
	return append(args, batch.Destination)
}

// Runner runs rsync, streaming its output to Stdout and Stderr.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    log.FieldLogger
}

// NewRunner returns a Runner attached to the process's output.
func NewRunner() Runner {
	return Runner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Log:    log.StandardLogger(),
	}
}

// Sync transfers one batch.
func (r Runner) Sync(ctx context.Context, batch resolve.Batch, opts Options) error {
	args := Args(batch, opts)
	r.Log.WithFields(log.Fields{
		"destination": batch.Destination,
		"dryRun":      opts.DryRun,
	}).Warn("rsync " + strings.Join(args, " "))

	cmd := execCommand(ctx, "rsync", args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return errors.WithContext(err, "rsync to "+batch.Destination)
	}
	return nil
}

var versionPattern = regexp.MustCompile(`version\s+(\S+)`)

// Version returns the version of the installed rsync.
func Version(ctx context.Context) (*version.Version, error) {
	out, err := execCommand(ctx, "rsync", "--version").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, errors.NewFriendlyError("rsync isn't installed. " +
				"Install it with your package manager and try again.")
		}
		return nil, errors.WithContext(err, "run rsync --version")
	}

	match := versionPattern.FindSubmatch(out)
	if match == nil {
		return nil, errors.New("unexpected output from rsync --version: %q",
			firstLine(string(out)))
	}

	v, err := version.NewVersion(string(match[1]))
	if err != nil {
		return nil, errors.WithContext(err, "parse rsync version")
	}
	return v, nil
}

// CheckVersion returns an error if the installed rsync is older than
// MinimumVersion.
func CheckVersion(ctx context.Context) error {
	installed, err := Version(ctx)
	if err != nil {
		return err
	}

	if installed.LessThan(version.Must(version.NewVersion(MinimumVersion))) {
		return errors.NewFriendlyError("rsync %s is too old. "+
			"Please upgrade to at least %s.", installed, MinimumVersion)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
