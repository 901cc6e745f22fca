package resolve

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/bak/pkg/errors"
)

// Mocked out for unit testing.
var (
	fs            = afero.NewOsFs()
	homedirExpand = homedir.Expand
	getwd         = os.Getwd
)

// maxSymlinks is the number of symlinks that may be followed while resolving
// a single path before it's considered a loop. It matches Linux's limit.
const maxSymlinks = 40

const separator = string(filepath.Separator)

// Normalize expands a leading `~`, makes `path` absolute, and resolves `.`,
// `..`, and symlinks. The result ends with a separator if and only if `path`
// does.
//
// Components that don't exist are kept as-is, since remote directories are
// often on devices that aren't mounted yet. Symlinks that can't be resolved
// are an error.
func Normalize(path string) (string, error) {
	expanded, err := homedirExpand(path)
	if err != nil {
		return "", errors.PathResolutionError{Path: path, Err: err}
	}

	if !filepath.IsAbs(expanded) {
		wd, err := getwd()
		if err != nil {
			return "", errors.PathResolutionError{Path: path,
				Err: errors.WithContext(err, "get working directory")}
		}
		expanded = wd + separator + expanded
	}

	r := resolver{}
	resolved, err := r.resolve(separator, expanded)
	if err != nil {
		return "", errors.PathResolutionError{Path: path, Err: err}
	}
	return withTrailingSeparator(resolved, hasTrailingSeparator(path)), nil
}

type resolver struct {
	linksFollowed int
}

// resolve resolves `path` relative to `base`, which must already be
// resolved.
func (r *resolver) resolve(base, path string) (string, error) {
	resolved := base
	if filepath.IsAbs(path) {
		resolved = separator
	}

	components := strings.Split(path, separator)
	for i, component := range components {
		switch component {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, component)
		fi, err := lstat(next)
		if err != nil {
			if os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR) {
				// Nothing below a missing component can be a symlink, so the
				// rest of the path is resolved lexically.
				rest := append([]string{next}, components[i+1:]...)
				return filepath.Join(rest...), nil
			}
			return "", errors.WithContext(err, "stat")
		}

		if fi.Mode()&os.ModeSymlink == 0 {
			resolved = next
			continue
		}

		r.linksFollowed++
		if r.linksFollowed > maxSymlinks {
			return "", errors.New("too many levels of symbolic links at %q", next)
		}

		target, err := readlink(next)
		if err != nil {
			return "", errors.WithContext(err, "read link")
		}

		targetPath, err := r.resolve(resolved, target)
		if err != nil {
			return "", err
		}

		if _, err := lstat(targetPath); err != nil {
			if os.IsNotExist(err) {
				return "", errors.New("%q is a dangling symlink to %q", next, target)
			}
			return "", errors.WithContext(err, "stat link target")
		}
		resolved = targetPath
	}
	return resolved, nil
}

func lstat(path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}

func readlink(path string) (string, error) {
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return "", errors.New("filesystem does not support symlinks")
	}
	return reader.ReadlinkIfPossible(path)
}

func hasTrailingSeparator(path string) bool {
	return strings.HasSuffix(path, separator)
}

func withTrailingSeparator(path string, trailing bool) string {
	if trailing && !hasTrailingSeparator(path) {
		return path + separator
	}
	return path
}
