package mount

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/disk"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
)

// Mocked out for unit testing.
var (
	fs          = afero.NewOsFs()
	execCommand = exec.CommandContext
	partitions  = disk.Partitions
	clock       = clockwork.NewRealClock()
	newWatcher  = fsnotify.NewWatcher
	devicePath  = func(m config.Mount) string { return m.DevicePath() }
)

// Manager attaches and detaches the configured devices with pmount.
type Manager struct {
	Log log.FieldLogger
}

// New returns a Manager that logs to `logger`.
func New(logger log.FieldLogger) Manager {
	return Manager{Log: logger}
}

// IsActive returns whether a filesystem is mounted at `path`.
func (m Manager) IsActive(path string) (bool, error) {
	mounted, err := partitions(true)
	if err != nil {
		return false, errors.WithContext(err, "list partitions")
	}

	path = filepath.Clean(path)
	for _, partition := range mounted {
		if filepath.Clean(partition.Mountpoint) == path {
			return true, nil
		}
	}
	return false, nil
}

// Available returns whether the block device for `mount` is plugged in.
func (m Manager) Available(mount config.Mount) (bool, error) {
	fi, err := fs.Stat(devicePath(mount))
	switch {
	case err == nil:
		return fi.Mode()&os.ModeDevice != 0, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.WithContext(err, "stat device")
	}
}

// Mount attaches the device for `mount` at its path, unlocking it with the
// keyfile if one is configured.
func (m Manager) Mount(ctx context.Context, mount config.Mount) error {
	available, err := m.Available(mount)
	if err != nil {
		return errors.WithContext(err, "check device")
	}
	if !available {
		return errors.NewFriendlyError("The device for %s (%s) is not connected.",
			mount.Path, devicePath(mount))
	}

	m.Log.WithField("device", devicePath(mount)).Infof("Mounting %s", mount.Path)
	return run(ctx, "pmount", mountArgs(mount)...)
}

// Unmount detaches the device mounted at `mount.Path`.
func (m Manager) Unmount(ctx context.Context, mount config.Mount) error {
	m.Log.Infof("Unmounting %s", mount.Path)
	return run(ctx, "pumount", mount.Path)
}

func mountArgs(mount config.Mount) []string {
	var args []string
	if mount.Keyfile != "" {
		args = append(args, "-p", mount.Keyfile)
	}
	return append(args, devicePath(mount), mount.Path)
}

func run(ctx context.Context, name string, args ...string) error {
	out, err := execCommand(ctx, name, args...).CombinedOutput()
	if err != nil {
		command := strings.Join(append([]string{name}, args...), " ")
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return errors.WithContext(errors.New("%s: %s", err, msg), command)
		}
		return errors.WithContext(err, command)
	}
	return nil
}

// WaitForDevice blocks until the device for `mount` is connected, `timeout`
// elapses, or `ctx` is cancelled.
func (m Manager) WaitForDevice(ctx context.Context, mount config.Mount, timeout time.Duration) error {
	watcher, err := newWatcher()
	if err != nil {
		return errors.WithContext(err, "create watcher")
	}
	defer watcher.Close()

	// Watch before checking so that a device connected in between isn't
	// missed.
	dir := filepath.Dir(devicePath(mount))
	if err := watcher.Add(dir); err != nil {
		return errors.WithContext(err, "watch "+dir)
	}

	if available, err := m.Available(mount); err != nil {
		return errors.WithContext(err, "check device")
	} else if available {
		return nil
	}

	m.Log.WithField("device", devicePath(mount)).Infof(
		"Waiting up to %s for the device for %s", timeout, mount.Path)
	deadline := clock.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return errors.NewFriendlyError("Timed out after %s waiting for "+
				"the device for %s (%s).", timeout, mount.Path, devicePath(mount))
		case err := <-watcher.Errors:
			return errors.WithContext(err, "watch devices")
		case event := <-watcher.Events:
			if event.Op&fsnotify.Create == 0 || filepath.Base(event.Name) != mount.DeviceID {
				continue
			}

			available, err := m.Available(mount)
			if err != nil {
				return errors.WithContext(err, "check device")
			}
			if available {
				return nil
			}
		}
	}
}
