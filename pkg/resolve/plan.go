package resolve

import (
	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
)

// Plan is the result of resolving the configuration for one run.
type Plan struct {
	Direction Direction `json:"direction"`
	Prefixes  []string  `json:"prefixes"`

	// Units are the units selected by Prefixes, before grouping.
	Units []Unit `json:"units"`

	Batches []Batch `json:"batches"`

	// RemoteDirs are the distinct remote directories of Units, in the order
	// they were found. They decide which mounts are needed.
	RemoteDirs []string `json:"remoteDirs"`
}

// Resolve extracts the units from the sync mapping, keeps those selected by
// `prefixes`, and groups them for `d`. Empty `prefixes` select nothing;
// callers that want the default mounts should pass DefaultPrefixes.
func Resolve(cfg config.Config, d Direction, prefixes []string) (Plan, error) {
	units, err := Extract(cfg.Sync)
	if err != nil {
		return Plan{}, errors.WithContext(err, "extract")
	}

	selected, err := Filter(units, prefixes)
	if err != nil {
		return Plan{}, errors.WithContext(err, "filter")
	}

	return Plan{
		Direction:  d,
		Prefixes:   prefixes,
		Units:      selected,
		Batches:    Group(d, selected),
		RemoteDirs: remoteDirs(selected),
	}, nil
}

func remoteDirs(units []Unit) []string {
	var dirs []string
	seen := map[string]struct{}{}
	for _, unit := range units {
		if _, ok := seen[unit.RemoteDir]; ok {
			continue
		}
		seen[unit.RemoteDir] = struct{}{}
		dirs = append(dirs, unit.RemoteDir)
	}
	return dirs
}
