package resolve

import (
	"path/filepath"

	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
)

// Unit is a single file or directory that is synced into a remote directory.
type Unit struct {
	// LocalDir is the directory containing FileName. It's absolute,
	// normalized, and ends with a separator.
	LocalDir string `json:"localDir"`

	// FileName is the name of the synced entry within LocalDir.
	FileName string `json:"fileName"`

	// RemoteDir is the directory FileName is placed in. It's absolute,
	// normalized, and ends with a separator.
	RemoteDir string `json:"remoteDir"`
}

// LocalPath returns the full path of the local entry.
func (u Unit) LocalPath() string {
	return u.LocalDir + u.FileName
}

// RemotePath returns the full path of the entry once it's been synced into
// RemoteDir.
func (u Unit) RemotePath() string {
	return u.RemoteDir + u.FileName
}

// Extract expands every entry of the sync mapping into units. Units are
// returned in the order of the entries, then local candidates, then remote
// candidates.
func Extract(entries []config.SyncEntry) ([]Unit, error) {
	var units []Unit
	for _, entry := range entries {
		entryUnits, err := extractEntry(entry)
		if err != nil {
			return nil, err
		}
		units = append(units, entryUnits...)
	}
	return units, nil
}

func extractEntry(entry config.SyncEntry) ([]Unit, error) {
	locals := Expand(entry.Local)

	type remoteCandidate struct {
		pattern, path string
	}
	var remotes []remoteCandidate
	for _, pattern := range entry.Remotes {
		for _, path := range Expand(pattern) {
			remotes = append(remotes, remoteCandidate{pattern, path})
		}
	}

	var units []Unit
	for _, local := range locals {
		if hasTrailingSeparator(local) {
			return nil, errors.DirectionConventionError{
				Side:      errors.LocalSide,
				Pattern:   entry.Local,
				Candidate: local,
				Line:      entry.Line,
			}
		}

		for _, remote := range remotes {
			if !hasTrailingSeparator(remote.path) {
				return nil, errors.DirectionConventionError{
					Side:      errors.RemoteSide,
					Pattern:   remote.pattern,
					Candidate: remote.path,
					Line:      entry.Line,
				}
			}

			unit, err := newUnit(local, remote.path)
			if err != nil {
				return nil, err
			}
			units = append(units, unit)
		}
	}
	return units, nil
}

func newUnit(local, remote string) (Unit, error) {
	localPath, err := Normalize(local)
	if err != nil {
		return Unit{}, errors.WithContext(err, "normalize local path")
	}

	remoteDir, err := Normalize(remote)
	if err != nil {
		return Unit{}, errors.WithContext(err, "normalize remote path")
	}

	localDir, fileName := filepath.Split(localPath)
	return Unit{
		LocalDir:  withTrailingSeparator(localDir, true),
		FileName:  fileName,
		RemoteDir: remoteDir,
	}, nil
}
