package util

import (
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
)

// ConfigPath is set by the persistent --config flag. When it's empty, the
// path comes from the environment or the default location.
var ConfigPath string

// LoadConfig parses the configuration file selected by ConfigPath.
func LoadConfig() (config.Config, error) {
	path, err := config.ResolvePath(ConfigPath)
	if err != nil {
		return config.Config{}, errors.WithContext(err, "resolve config path")
	}

	log.WithField("path", path).Debug("Parsing config")
	cfg, err := config.Parse(path)
	if err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return config.Config{}, errors.NewFriendlyError(
				"No configuration file found at %s.\n"+
					"Create one, or point to it with --config or $%s.",
				path, config.PathEnvKey)
		}
		return config.Config{}, errors.WithContext(err, "parse config")
	}
	return cfg, nil
}
