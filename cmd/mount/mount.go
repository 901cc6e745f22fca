package mount

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/bak/cmd/util"
	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
	"github.com/sidkik/bak/pkg/mount"
)

type mountManager interface {
	IsActive(path string) (bool, error)
	Mount(context.Context, config.Mount) error
	Unmount(context.Context, config.Mount) error
	WaitForDevice(context.Context, config.Mount, time.Duration) error
}

// Mocked out for unit testing.
var (
	loadConfig = util.LoadConfig
	newManager = func() mountManager { return mount.New(log.StandardLogger()) }
)

// New creates a new `mount` command.
func New() *cobra.Command {
	var waitDevice time.Duration
	cmd := &cobra.Command{
		Use:   "mount [dir] ...",
		Short: "Mount configured devices",
		Long: "Mount the configured devices for the given directories with pmount.\n" +
			"If no directories are given, the default mounts are used.",
		Run: func(_ *cobra.Command, dirs []string) {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := runMount(ctx, dirs, waitDevice); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().DurationVar(&waitDevice, "wait-device", 0,
		"how long to wait for a missing device to be plugged in")
	return cmd
}

// NewUnmount creates a new `umount` command.
func NewUnmount() *cobra.Command {
	return &cobra.Command{
		Use:     "umount [dir] ...",
		Aliases: []string{"unmount"},
		Short:   "Unmount configured devices",
		Long: "Unmount the configured devices for the given directories with pumount.\n" +
			"If no directories are given, the default mounts are used.",
		Run: func(_ *cobra.Command, dirs []string) {
			if err := runUnmount(context.Background(), dirs); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func runMount(ctx context.Context, dirs []string, waitDevice time.Duration) error {
	mounts, err := selectMounts(dirs)
	if err != nil {
		return err
	}

	manager := newManager()
	for _, m := range mounts {
		active, err := manager.IsActive(m.Path)
		if err != nil {
			return errors.WithContext(err, "check mount")
		}
		if active {
			log.WithField("mount", m.Path).Info("Already mounted")
			continue
		}

		if waitDevice > 0 {
			if err := manager.WaitForDevice(ctx, m, waitDevice); err != nil {
				return errors.WithContext(err, "wait for "+m.Path)
			}
		}
		if err := manager.Mount(ctx, m); err != nil {
			return errors.WithContext(err, "mount "+m.Path)
		}
	}
	return nil
}

func runUnmount(ctx context.Context, dirs []string) error {
	mounts, err := selectMounts(dirs)
	if err != nil {
		return err
	}

	manager := newManager()
	for i := len(mounts) - 1; i >= 0; i-- {
		m := mounts[i]
		active, err := manager.IsActive(m.Path)
		if err != nil {
			return errors.WithContext(err, "check mount")
		}
		if !active {
			log.WithField("mount", m.Path).Info("Not mounted")
			continue
		}

		if err := manager.Unmount(ctx, m); err != nil {
			return errors.WithContext(err, "unmount "+m.Path)
		}
	}
	return nil
}

// selectMounts returns the configured mounts for `dirs` in config order, or
// the default mounts if `dirs` is empty.
func selectMounts(dirs []string) ([]config.Mount, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if len(dirs) == 0 {
		var defaults []config.Mount
		for _, m := range cfg.Mounts {
			if m.IsDefault {
				defaults = append(defaults, m)
			}
		}
		return defaults, nil
	}

	absDirs := make([]string, len(dirs))
	wanted := map[string]bool{}
	for i, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, errors.WithContext(err, "get absolute path")
		}
		absDirs[i] = abs
		wanted[abs] = false
	}

	var selected []config.Mount
	for _, m := range cfg.Mounts {
		path := filepath.Clean(m.Path)
		if _, ok := wanted[path]; ok {
			wanted[path] = true
			selected = append(selected, m)
		}
	}

	for i, abs := range absDirs {
		if !wanted[abs] {
			return nil, errors.NewFriendlyError("%s isn't a configured mount.", dirs[i])
		}
	}
	return selected, nil
}
