package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sidkik/bak/pkg/errors"
)

const (
	// DefaultPath is where the configuration is read from when neither the
	// --config flag nor PathEnvKey is set.
	DefaultPath = "~/.config/bak.yaml"

	// PathEnvKey is the environment variable that overrides DefaultPath.
	PathEnvKey = "BAK_CONFIG"

	// InitialVersion is the first version of the configuration format.
	// Config files that do not specify a version default to this version.
	InitialVersion = "v1"

	// SupportedVersion is the configuration version understood by this
	// binary.
	SupportedVersion = "v1"
)

// parseConfigErrTemplate is a template for when the CLI fails to parse yaml
// configuration files. This can happen for a multitude of reasons, including
// extraneous fields and incorrect field types.
const parseConfigErrTemplate = "Configuration file could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields\n" +
	" - Having extra fields inside the config file\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

// Config is the parsed contents of the configuration file.
type Config struct {
	Version string       `yaml:"version,omitempty"`
	Mounts  []Mount      `yaml:"mount,omitempty"`
	Sync    SyncMap      `yaml:"sync,omitempty"`
	Rsync   RsyncOptions `yaml:"rsync,omitempty"`

	// Only populated by Parse. Never set by the user.
	path string
}

// GetPath returns the file the config was parsed from.
func (c Config) GetPath() string {
	return c.path
}

// Mount is a physical device that sync targets may live on.
type Mount struct {
	// Path is the absolute directory the device is mounted on.
	Path string `yaml:"dir"`

	// DeviceID is the filesystem UUID, as reported by `blkid`.
	DeviceID string `yaml:"uuid"`

	// Keyfile optionally points to the key used to unlock an encrypted
	// device.
	Keyfile string `yaml:"keyfile,omitempty"`

	// IsDefault marks the mount as selected when no prefixes are given.
	IsDefault bool `yaml:"default,omitempty"`
}

// DeviceDir is the directory that contains the device nodes named by UUID.
const DeviceDir = "/dev/disk/by-uuid"

// DevicePath returns the block device node for the mount.
func (m Mount) DevicePath() string {
	return filepath.Join(DeviceDir, m.DeviceID)
}

// RsyncOptions tune how transfers are performed.
type RsyncOptions struct {
	// FAT32 replaces --archive with flags that work on filesystems without
	// permissions or ownership, and compares files by size only.
	FAT32 bool `yaml:"fat32,omitempty"`

	// DeleteBefore removes extraneous files before transferring, which
	// helps on nearly full devices.
	DeleteBefore bool `yaml:"deleteBefore,omitempty"`

	// Filters are extra rsync --filter rules, applied after the .gitignore
	// merge rule.
	Filters []string `yaml:"filters,omitempty"`

	// Excludes are extra rsync --exclude patterns.
	Excludes []string `yaml:"excludes,omitempty"`
}

type versionOnly struct {
	Version string `yaml:"version"`
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The configuration file %q is incompatible "+
		"with this version of bak.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

// Mocked out for unit testing.
var (
	fs            = afero.NewOsFs()
	homedirExpand = homedir.Expand
)

// ResolvePath returns the path to the configuration file, expanded so that
// it can be passed directly to file operations. An explicit path takes
// precedence over PathEnvKey, which takes precedence over DefaultPath.
func ResolvePath(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(PathEnvKey)
	}
	if path == "" {
		path = DefaultPath
	}
	return homedirExpand(path)
}

// Parse reads and validates the configuration file at `path`.
func Parse(path string) (Config, error) {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.FileNotFound{Path: path}
		}
		return Config{}, errors.WithContext(err, "read file")
	}

	// Check the version before doing a strict parse so that users get a
	// version error rather than an error about fields that were added in a
	// newer version.
	var version versionOnly
	if err := yaml.Unmarshal(configBytes, &version); err != nil {
		return Config{}, errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	if version.Version == "" {
		version.Version = InitialVersion
	}
	if version.Version != SupportedVersion {
		return Config{}, incompatibleVersionError{path, SupportedVersion, version.Version}
	}

	cfg := Config{Version: InitialVersion, path: path}
	dec := yaml.NewDecoder(bytes.NewReader(configBytes))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		var shapeErr errors.ConfigShapeError
		if errors.As(err, &shapeErr) {
			return Config{}, shapeErr
		}
		return Config{}, errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	for i, mount := range cfg.Mounts {
		validated, err := validateMount(i, mount)
		if err != nil {
			return Config{}, err
		}
		cfg.Mounts[i] = validated
	}
	return cfg, nil
}

func validateMount(i int, mount Mount) (Mount, error) {
	key := fmt.Sprintf("#%d", i+1)
	if mount.Path == "" {
		return Mount{}, errors.ConfigShapeError{Section: "mount", Key: key,
			Reason: errors.MissingFieldError{Field: "dir"}.Error()}
	}
	if mount.DeviceID == "" {
		return Mount{}, errors.ConfigShapeError{Section: "mount", Key: key,
			Reason: errors.MissingFieldError{Field: "uuid"}.Error()}
	}
	if !filepath.IsAbs(mount.Path) {
		return Mount{}, errors.ConfigShapeError{Section: "mount", Key: key,
			Reason: fmt.Sprintf("dir %q must be an absolute path", mount.Path)}
	}

	if mount.Keyfile != "" {
		keyfile, err := homedirExpand(mount.Keyfile)
		if err != nil {
			return Mount{}, errors.WithContext(err, "expand keyfile")
		}
		mount.Keyfile = keyfile
	}
	return mount, nil
}
