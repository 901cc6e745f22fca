package sync

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/buger/goterm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/bak/cmd/util"
	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
	"github.com/sidkik/bak/pkg/mount"
	"github.com/sidkik/bak/pkg/resolve"
	"github.com/sidkik/bak/pkg/transfer"
)

type mountManager interface {
	resolve.Liveness
	Mount(context.Context, config.Mount) error
	Unmount(context.Context, config.Mount) error
	WaitForDevice(context.Context, config.Mount, time.Duration) error
}

type syncer interface {
	Sync(context.Context, resolve.Batch, transfer.Options) error
}

// Mocked out for unit testing.
var (
	loadConfig   = util.LoadConfig
	checkVersion = transfer.CheckVersion
	confirm      = util.PromptYesOrNo
	newMounter   = func() mountManager { return mount.New(log.StandardLogger()) }
	newSyncer    = func() syncer { return transfer.NewRunner() }
)

type options struct {
	automount    bool
	yes          bool
	dryRunOnly   bool
	strictMounts bool
	waitDevice   time.Duration
}

// NewPush creates a new `push` command.
func NewPush() *cobra.Command {
	return newCommand(resolve.Push, "push",
		"Sync local files into the remote directories",
		"Copy every configured local path into the remote directories under\n"+
			"the given prefixes. Files deleted locally are deleted remotely.")
}

// NewPull creates a new `pull` command.
func NewPull() *cobra.Command {
	return newCommand(resolve.Pull, "pull",
		"Sync remote copies back into their local directories",
		"Copy the remote copies under the given prefixes back into their local\n"+
			"directories. Files deleted remotely are deleted locally.")
}

func newCommand(d resolve.Direction, use, short, long string) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   use + " [prefix] ...",
		Short: short,
		Long: long + "\n\nIf no prefixes are given, the mounts marked as " +
			"default in the config are used.",
		Run: func(_ *cobra.Command, prefixes []string) {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := run(ctx, d, prefixes, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().BoolVarP(&opts.automount, "automount", "m", false,
		"mount missing devices before syncing, and unmount them afterwards")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false,
		"skip the confirmation after each dry run")
	cmd.Flags().BoolVar(&opts.dryRunOnly, "dry-run-only", false,
		"only show what would be transferred")
	cmd.Flags().BoolVar(&opts.strictMounts, "strict-mounts", false,
		"require every remote directory to be on exactly one configured mount")
	cmd.Flags().DurationVar(&opts.waitDevice, "wait-device", 0,
		"with --automount, how long to wait for a missing device to be plugged in")
	return cmd
}

func run(ctx context.Context, d resolve.Direction, prefixes []string, opts options) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := checkVersion(ctx); err != nil {
		return errors.WithContext(err, "check rsync")
	}

	if len(prefixes) == 0 {
		prefixes = resolve.DefaultPrefixes(cfg.Mounts)
		log.WithField("prefixes", prefixes).Info("No prefixes given, picking defaults.")
		if len(prefixes) == 0 {
			return errors.NewFriendlyError("No prefixes given, and no mount " +
				"in the config is marked as default.")
		}
	}

	plan, err := resolve.Resolve(cfg, d, prefixes)
	if err != nil {
		return errors.WithContext(err, "resolve")
	}
	if len(plan.Batches) == 0 {
		log.WithField("prefixes", prefixes).Warn("Nothing to sync under the given prefixes")
		return nil
	}

	if opts.strictMounts {
		if err := resolve.RequireExactlyOne(plan.RemoteDirs, cfg.Mounts); err != nil {
			return errors.WithContext(err, "check mounts")
		}
	} else {
		logMountCoverage(plan.RemoteDirs, cfg.Mounts)
	}

	mounter := newMounter()
	required, err := resolve.Required(plan.RemoteDirs, cfg.Mounts, mounter)
	if err != nil {
		return errors.WithContext(err, "find required mounts")
	}
	log.Infof("Needed mounts: %s", mountPaths(required))

	if len(required) != 0 && !opts.automount {
		return errors.NewFriendlyError("Not mounted: %s.\n"+
			"Mount them, or rerun with --automount.", mountPaths(required))
	}

	mounted, err := mountAll(ctx, mounter, required, opts.waitDevice)
	defer func() {
		// Unmount even if the context was cancelled, so that the devices
		// can be unplugged.
		if unmountErr := unmountAll(context.Background(), mounter, mounted); unmountErr != nil && err == nil {
			err = unmountErr
		}
	}()
	if err != nil {
		return err
	}

	return syncBatches(ctx, plan, transfer.OptionsFromConfig(cfg.Rsync), opts)
}

// logMountCoverage reports the remote dirs that --strict-mounts would reject.
func logMountCoverage(dirs []string, mounts []config.Mount) {
	for _, dir := range dirs {
		covering := resolve.Covering(dir, mounts)
		switch {
		case len(covering) == 0:
			log.WithField("dir", dir).Info("Not on any configured mount")
		case len(covering) > 1:
			log.WithFields(log.Fields{
				"dir":    dir,
				"mounts": mountPaths(covering),
			}).Info("On more than one configured mount")
		}
	}
}

func mountAll(ctx context.Context, mounter mountManager, mounts []config.Mount,
	waitDevice time.Duration) ([]config.Mount, error) {

	var mounted []config.Mount
	for _, m := range mounts {
		if waitDevice > 0 {
			if err := mounter.WaitForDevice(ctx, m, waitDevice); err != nil {
				return mounted, errors.WithContext(err, "wait for "+m.Path)
			}
		}

		if err := mounter.Mount(ctx, m); err != nil {
			return mounted, errors.WithContext(err, "mount "+m.Path)
		}
		mounted = append(mounted, m)
	}
	return mounted, nil
}

// unmountAll unmounts in reverse order, so nested mounts are detached
// before their parents. Every mount is attempted, and the first error is
// returned.
func unmountAll(ctx context.Context, mounter mountManager, mounts []config.Mount) error {
	var firstErr error
	for i := len(mounts) - 1; i >= 0; i-- {
		if err := mounter.Unmount(ctx, mounts[i]); err != nil {
			log.WithError(err).WithField("mount", mounts[i].Path).Error("Failed to unmount")
			if firstErr == nil {
				firstErr = errors.WithContext(err, "unmount "+mounts[i].Path)
			}
		}
	}
	return firstErr
}

func syncBatches(ctx context.Context, plan resolve.Plan, rsyncOpts transfer.Options,
	opts options) error {

	syncer := newSyncer()
	for i, batch := range plan.Batches {
		fmt.Println(heading(plan.Direction, i, len(plan.Batches), batch))

		dryRun := rsyncOpts
		dryRun.DryRun = true
		if err := syncer.Sync(ctx, batch, dryRun); err != nil {
			return errors.WithContext(err, "dry run")
		}

		if opts.dryRunOnly {
			continue
		}

		if !opts.yes {
			ok, err := confirm(fmt.Sprintf("Sync %d source(s) into %s",
				len(batch.Sources), batch.Destination))
			if err != nil {
				return errors.WithContext(err, "confirm")
			}
			if !ok {
				log.WithField("destination", batch.Destination).Info("Skipped")
				continue
			}
		}

		if err := syncer.Sync(ctx, batch, rsyncOpts); err != nil {
			return err
		}
	}
	return nil
}

func heading(d resolve.Direction, i, total int, batch resolve.Batch) string {
	title := fmt.Sprintf("[%d/%d] %s into %s", i+1, total, d, batch.Destination)
	return goterm.Color(goterm.Bold(title), goterm.CYAN)
}

func mountPaths(mounts []config.Mount) string {
	if len(mounts) == 0 {
		return "none"
	}

	var paths []string
	for _, m := range mounts {
		paths = append(paths, m.Path)
	}
	return strings.Join(paths, ", ")
}
