package resolve

import (
	"strings"

	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
)

// Filter returns the units whose remote directory is within at least one of
// `prefixes`. Prefixes are normalized as directories, so "/media/sd" selects
// "/media/sd/photos/" but not "/media/sdcard/". An empty list of prefixes
// selects nothing.
func Filter(units []Unit, prefixes []string) ([]Unit, error) {
	normalized, err := NormalizePrefixes(prefixes)
	if err != nil {
		return nil, err
	}

	var selected []Unit
	for _, unit := range units {
		if hasAnyPrefix(unit.RemoteDir, normalized) {
			selected = append(selected, unit)
		}
	}
	return selected, nil
}

// NormalizePrefixes normalizes each prefix as a directory.
func NormalizePrefixes(prefixes []string) ([]string, error) {
	var normalized []string
	for _, prefix := range prefixes {
		path, err := Normalize(withTrailingSeparator(prefix, true))
		if err != nil {
			return nil, errors.WithContext(err, "normalize prefix")
		}
		normalized = append(normalized, path)
	}
	return normalized, nil
}

// DefaultPrefixes returns the paths of the mounts marked as default. It's
// used to select units when the user doesn't give any prefixes.
func DefaultPrefixes(mounts []config.Mount) []string {
	var prefixes []string
	for _, mount := range mounts {
		if mount.IsDefault {
			prefixes = append(prefixes, mount.Path)
		}
	}
	return prefixes
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
