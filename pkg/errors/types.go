package errors

import (
	"fmt"
	"strings"
)

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// ConfigShapeError is returned when a configuration entry has the wrong
// structure, such as a sync target that isn't a string or a list of strings.
type ConfigShapeError struct {
	Section string
	Key     string
	Line    int
	Reason  string
}

func (err ConfigShapeError) Error() string {
	return fmt.Sprintf("%s%s: %s", err.Section, locationSuffix(err.Key, err.Line), err.Reason)
}

// FriendlyMessage implements Friendly.
func (err ConfigShapeError) FriendlyMessage() string {
	return fmt.Sprintf("Invalid configuration in the %q section%s:\n%s",
		err.Section, locationSuffix(err.Key, err.Line), err.Reason)
}

// Side names one end of a sync mapping.
type Side string

const (
	// LocalSide is the key of a sync mapping.
	LocalSide Side = "local"
	// RemoteSide is the value of a sync mapping.
	RemoteSide Side = "remote"
)

// DirectionConventionError is returned when a local pattern denotes the
// contents of a directory, or a remote pattern doesn't denote a directory.
type DirectionConventionError struct {
	Side      Side
	Pattern   string
	Candidate string
	Line      int
}

func (err DirectionConventionError) Error() string {
	return fmt.Sprintf("%s pattern %q%s: %s", err.Side, err.Pattern,
		locationSuffix("", err.Line), err.rule())
}

// FriendlyMessage implements Friendly.
func (err DirectionConventionError) FriendlyMessage() string {
	msg := fmt.Sprintf("The %s pattern %q%s expands to %q, which is not allowed.\n%s.",
		err.Side, err.Pattern, locationSuffix("", err.Line), err.Candidate, err.rule())
	if err.Side == LocalSide {
		return msg + "\nRemove the trailing slash so that the directory itself is synced."
	}
	return msg + "\nAdd a trailing slash to name the directory the files are placed in."
}

func (err DirectionConventionError) rule() string {
	if err.Side == LocalSide {
		return "local paths must not be the contents of a directory"
	}
	return "remote paths must be a directory in which the local path will be placed"
}

// PathResolutionError is returned when a path can't be canonicalized, for
// example because it contains a dangling symlink.
type PathResolutionError struct {
	Path string
	Err  error
}

func (err PathResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %s", err.Path, err.Err)
}

func (err PathResolutionError) Unwrap() error {
	return err.Err
}

// NoMountForPathError is returned in strict mode when no configured mount
// contains a remote directory.
type NoMountForPathError struct {
	Path string
}

func (err NoMountForPathError) Error() string {
	return fmt.Sprintf("no configured mount contains %q", err.Path)
}

// AmbiguousMountError is returned in strict mode when more than one
// configured mount contains a remote directory.
type AmbiguousMountError struct {
	Path   string
	Mounts []string
}

func (err AmbiguousMountError) Error() string {
	return fmt.Sprintf("%q is contained by multiple mounts: %s",
		err.Path, strings.Join(err.Mounts, ", "))
}

func locationSuffix(key string, line int) string {
	var parts []string
	if key != "" {
		parts = append(parts, fmt.Sprintf("entry %q", key))
	}
	if line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", line))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
