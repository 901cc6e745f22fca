package resolve

import (
	"fmt"
	"strings"
)

// Direction is whether local files are sent to the remote directories, or
// fetched from them.
type Direction int

const (
	// Push syncs local entries into their remote directories.
	Push Direction = iota
	// Pull syncs remote entries back into their local directories.
	Pull
)

func (d Direction) String() string {
	switch d {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses the output of Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "push":
		return Push, nil
	case "pull":
		return Pull, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// roles returns the directory the unit's entry is read from, and the
// directory it's written into.
func (d Direction) roles(u Unit) (sourceDir, destination string) {
	if d == Pull {
		return u.RemoteDir, u.LocalDir
	}
	return u.LocalDir, u.RemoteDir
}

// Batch is a set of sources that are synced into the same destination
// directory with a single rsync invocation.
type Batch struct {
	Destination string   `json:"destination"`
	Sources     []string `json:"sources"`
}

// Group partitions the units into batches by destination directory.
// Batches are ordered by when their destination is first seen, and sources
// keep the order of the units. Units that produce the same source are kept,
// since they were requested by different sync entries.
func Group(d Direction, units []Unit) []Batch {
	var batches []Batch
	index := map[string]int{}
	for _, unit := range units {
		sourceDir, destination := d.roles(unit)
		i, ok := index[destination]
		if !ok {
			i = len(batches)
			index[destination] = i
			batches = append(batches, Batch{Destination: destination})
		}
		batches[i].Sources = append(batches[i].Sources, sourceDir+unit.FileName)
	}
	return batches
}

// Swap exchanges the local and remote directories of each unit, so that
// grouping the swapped units for a Push gives the same batches as grouping
// the originals for a Pull.
func Swap(units []Unit) []Unit {
	swapped := make([]Unit, 0, len(units))
	for _, unit := range units {
		swapped = append(swapped, Unit{
			LocalDir:  unit.RemoteDir,
			FileName:  unit.FileName,
			RemoteDir: unit.LocalDir,
		})
	}
	return swapped
}
