package resolve

import (
	"strings"

	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
)

// Liveness reports whether a mount point currently has a device attached.
type Liveness interface {
	IsActive(path string) (bool, error)
}

// Relevant returns the mounts that contain at least one of `dirs`. The dirs
// should already be normalized. Mount paths are compared textually, and
// overlapping mounts are all returned.
func Relevant(dirs []string, mounts []config.Mount) []config.Mount {
	var relevant []config.Mount
	for _, mount := range mounts {
		if isAncestor(mount, dirs) {
			relevant = append(relevant, mount)
		}
	}
	return relevant
}

// Required returns the relevant mounts that aren't active.
func Required(dirs []string, mounts []config.Mount, live Liveness) ([]config.Mount, error) {
	var required []config.Mount
	for _, mount := range Relevant(dirs, mounts) {
		active, err := live.IsActive(mount.Path)
		if err != nil {
			return nil, errors.WithContext(err, "check mount "+mount.Path)
		}
		if !active {
			required = append(required, mount)
		}
	}
	return required, nil
}

// Covering returns the mounts that contain `dir`.
func Covering(dir string, mounts []config.Mount) []config.Mount {
	return Relevant([]string{dir}, mounts)
}

// RequireExactlyOne checks that every dir is contained by exactly one mount.
// It returns a NoMountForPathError or AmbiguousMountError for the first dir
// that isn't.
func RequireExactlyOne(dirs []string, mounts []config.Mount) error {
	for _, dir := range dirs {
		covering := Covering(dir, mounts)
		switch len(covering) {
		case 1:
			continue
		case 0:
			return errors.NoMountForPathError{Path: dir}
		default:
			var paths []string
			for _, mount := range covering {
				paths = append(paths, mount.Path)
			}
			return errors.AmbiguousMountError{Path: dir, Mounts: paths}
		}
	}
	return nil
}

func isAncestor(mount config.Mount, dirs []string) bool {
	for _, dir := range dirs {
		if strings.HasPrefix(dir, mount.Path) {
			return true
		}
	}
	return false
}
