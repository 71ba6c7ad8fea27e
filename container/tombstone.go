// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/pacwrap/pacwrap/lib/codec"
	"github.com/pacwrap/pacwrap/liberror"
)

// Tombstones records paths the operator deleted from a container that
// exist in an ancestor, so the dedup engine will not reintroduce
// them. Paths are slash-separated and relative to the root.
type Tombstones struct {
	paths map[string]struct{}
}

// NewTombstones returns an empty tombstone set.
func NewTombstones() *Tombstones {
	return &Tombstones{paths: make(map[string]struct{})}
}

// LoadTombstones reads the tombstone file. A missing file yields an
// empty set: an empty list and an omitted list are equivalent.
func LoadTombstones(filePath string) (*Tombstones, error) {
	set := NewTombstones()
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, liberror.Wrap(liberror.IO, err, "reading tombstones %s", filePath)
	}
	var list []string
	if err := codec.Unmarshal(data, &list); err != nil {
		return nil, liberror.Wrap(liberror.Config, err, "decoding tombstones %s", filePath)
	}
	for _, p := range list {
		set.Add(p)
	}
	return set, nil
}

// Save writes the tombstone set. An empty set removes the file, so
// "no tombstones" has a single on-disk representation.
func (t *Tombstones) Save(filePath string) error {
	if t.Len() == 0 {
		if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return liberror.Wrap(liberror.IO, err, "removing tombstones %s", filePath)
		}
		return nil
	}
	data, err := codec.Marshal(t.Paths())
	if err != nil {
		return liberror.Wrap(liberror.Internal, err, "encoding tombstones")
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return liberror.Wrap(liberror.IO, err, "writing tombstones %s", filePath)
	}
	return nil
}

// Add records a deletion. The path is cleaned; absolute paths are
// made root-relative.
func (t *Tombstones) Add(relPath string) {
	cleaned := path.Clean("/" + relPath)[1:]
	if cleaned == "" || cleaned == "." {
		return
	}
	t.paths[cleaned] = struct{}{}
}

// Remove drops a recorded deletion.
func (t *Tombstones) Remove(relPath string) {
	cleaned := path.Clean("/" + relPath)[1:]
	delete(t.paths, cleaned)
}

// Contains reports whether relPath or any of its ancestors is
// tombstoned. Deleting a directory tombstones everything under it.
func (t *Tombstones) Contains(relPath string) bool {
	cleaned := path.Clean("/" + relPath)[1:]
	for cleaned != "" && cleaned != "." {
		if _, ok := t.paths[cleaned]; ok {
			return true
		}
		cleaned = path.Dir(cleaned)
		if cleaned == "." {
			break
		}
	}
	return false
}

// Len returns the number of recorded deletions.
func (t *Tombstones) Len() int {
	return len(t.paths)
}

// Paths returns the recorded deletions in sorted order.
func (t *Tombstones) Paths() []string {
	out := make([]string, 0, len(t.paths))
	for p := range t.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
