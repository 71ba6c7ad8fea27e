// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pacwrap/pacwrap/container"
	"github.com/pacwrap/pacwrap/lib/binhash"
	"github.com/pacwrap/pacwrap/liberror"
)

// tempPrefix marks in-flight files. Anything carrying it is garbage
// from an interrupted sync and is reclaimed on the next run.
const tempPrefix = ".pacwrap-tmp-"

// Kind is the filesystem entry kind the engine distinguishes.
type Kind int

const (
	KindDir Kind = iota
	KindSymlink
	KindRegular
)

// Report summarises one container sync.
type Report struct {
	// Container is the synced container id.
	Container string

	// Linked counts files newly hardlinked into the target.
	Linked int

	// Skipped counts files already sharing the source inode.
	Skipped int

	// Removed counts tombstoned paths deleted from the target.
	Removed int

	// Overrides lists target paths whose content diverges from the
	// winning source. Retained unless the sync ran with force.
	Overrides []string

	// Replaced counts overrides that were forcibly replaced.
	Replaced int
}

// Syncer runs dedup syncs with a bounded worker pool. The pool bound
// is shared across the containers of a fleet sync; each target root
// has a single writer at a time.
type Syncer struct {
	workers int
}

// New returns a syncer with the given parallelism. Values below one
// fall back to a single worker.
func New(workers int) *Syncer {
	if workers < 1 {
		workers = 1
	}
	return &Syncer{workers: workers}
}

// entry is one path from a source walk.
type entry struct {
	kind   Kind
	source string // absolute path in the source root
	mode   fs.FileMode
	size   int64
	mtime  int64
	link   string // symlink destination
}

// Sync materialises target from sources, which must be ordered
// farthest ancestor first (the registry's Ancestors order). The
// container's tombstones suppress and remove paths. With force, local
// overrides are replaced instead of retained.
func (s *Syncer) Sync(ctx context.Context, id, target string, sources []string, tombstones *container.Tombstones, force bool) (*Report, error) {
	if tombstones == nil {
		tombstones = container.NewTombstones()
	}
	report := &Report{Container: id}

	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, liberror.Wrap(liberror.DedupIO, err, "creating target root").In(id)
	}
	if err := reclaimTemps(target); err != nil {
		return nil, liberror.Wrap(liberror.DedupIO, err, "reclaiming temporaries").In(id)
	}

	merged, err := s.walkSources(ctx, sources)
	if err != nil {
		return nil, liberror.Wrap(liberror.DedupIO, err, "walking ancestor roots").In(id)
	}

	// Directories first, shallow to deep, so file workers always find
	// their parents.
	var dirs, files []string
	for relPath, e := range merged {
		if tombstones.Contains(relPath) {
			continue
		}
		if e.kind == KindDir {
			dirs = append(dirs, relPath)
		} else {
			files = append(files, relPath)
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], "/"), strings.Count(dirs[j], "/")
		if di != dj {
			return di < dj
		}
		return dirs[i] < dirs[j]
	})
	for _, relPath := range dirs {
		e := merged[relPath]
		dest := filepath.Join(target, relPath)
		if err := os.Mkdir(dest, e.mode.Perm()); err != nil && !errors.Is(err, fs.ErrExist) {
			return nil, liberror.Wrap(liberror.DedupIO, err, "creating directory %s", relPath).In(id)
		}
		if err := os.Chmod(dest, e.mode.Perm()); err != nil {
			return nil, liberror.Wrap(liberror.DedupIO, err, "preserving mode of %s", relPath).In(id)
		}
	}

	sort.Strings(files)
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for _, relPath := range files {
		relPath := relPath
		e := merged[relPath]
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			outcome, err := applyEntry(target, relPath, e, force)
			if err != nil {
				return fmt.Errorf("%s: %w", relPath, err)
			}
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeLinked:
				report.Linked++
			case outcomeSkipped:
				report.Skipped++
			case outcomeOverride:
				report.Overrides = append(report.Overrides, relPath)
			case outcomeReplaced:
				report.Replaced++
				report.Overrides = append(report.Overrides, relPath)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, liberror.Wrap(liberror.DedupIO, err, "synchronising tree").In(id)
	}

	removed, err := removeTombstoned(target, tombstones)
	if err != nil {
		return nil, liberror.Wrap(liberror.DedupIO, err, "applying tombstones").In(id)
	}
	report.Removed = removed

	sort.Strings(report.Overrides)
	return report, nil
}

// walkSources walks every source root concurrently and merges the
// per-source maps in order, so a nearer ancestor wins every path it
// shares with a farther one.
func (s *Syncer) walkSources(ctx context.Context, sources []string) (map[string]entry, error) {
	maps := make([]map[string]entry, len(sources))
	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i, source := range sources {
		i, source := i, source
		group.Go(func() error {
			found := make(map[string]entry)
			err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					if path == source && errors.Is(err, fs.ErrNotExist) {
						return filepath.SkipAll
					}
					return err
				}
				relPath, err := filepath.Rel(source, path)
				if err != nil {
					return err
				}
				if relPath == "." || strings.HasPrefix(filepath.Base(relPath), tempPrefix) {
					return nil
				}
				info, err := d.Info()
				if err != nil {
					return err
				}
				e := entry{source: path, mode: info.Mode()}
				switch {
				case d.IsDir():
					e.kind = KindDir
				case info.Mode()&fs.ModeSymlink != 0:
					e.kind = KindSymlink
					e.link, err = os.Readlink(path)
					if err != nil {
						return err
					}
				case info.Mode().IsRegular():
					e.kind = KindRegular
					e.size = info.Size()
					e.mtime = info.ModTime().UnixNano()
				default:
					// Sockets, fifos and devices never replicate.
					return nil
				}
				found[relPath] = e
				return nil
			})
			if err != nil {
				return err
			}
			maps[i] = found
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]entry)
	for _, m := range maps {
		for relPath, e := range m {
			merged[relPath] = e
		}
	}
	return merged, nil
}

type outcome int

const (
	outcomeLinked outcome = iota
	outcomeSkipped
	outcomeOverride
	outcomeReplaced
)

// applyEntry brings one target path in line with the winning source
// entry. All mutations go through a temporary sibling and a rename.
func applyEntry(target, relPath string, e entry, force bool) (outcome, error) {
	dest := filepath.Join(target, relPath)

	if e.kind == KindSymlink {
		if current, err := os.Readlink(dest); err == nil && current == e.link {
			return outcomeSkipped, nil
		}
		return outcomeLinked, renameInto(dest, func(temp string) error {
			return os.Symlink(e.link, temp)
		})
	}

	destInfo, err := os.Lstat(dest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return outcomeLinked, renameInto(dest, func(temp string) error {
			return os.Link(e.source, temp)
		})
	case err != nil:
		return 0, err
	}

	sourceStat, err := statSys(e.source)
	if err != nil {
		return 0, err
	}
	destStat, ok := destInfo.Sys().(*syscall.Stat_t)
	if ok && destInfo.Mode().IsRegular() && sameInode(sourceStat, destStat) {
		return outcomeSkipped, nil
	}

	identical := destInfo.Mode().IsRegular() &&
		destInfo.Size() == e.size &&
		destInfo.ModTime().UnixNano() == e.mtime
	if identical {
		// The cheap identity matched on a different inode; confirm
		// with content hashes before collapsing them into one.
		identical, err = sameContent(e.source, dest)
		if err != nil {
			return 0, err
		}
	}

	if identical || force {
		result := outcomeLinked
		if !identical {
			result = outcomeReplaced
		}
		return result, renameInto(dest, func(temp string) error {
			return os.Link(e.source, temp)
		})
	}
	return outcomeOverride, nil
}

// renameInto creates the final path atomically: build writes the
// entry at a temporary sibling name, then the temporary is renamed
// over dest.
func renameInto(dest string, build func(temp string) error) error {
	temp := filepath.Join(filepath.Dir(dest), tempPrefix+filepath.Base(dest))
	os.Remove(temp)
	if err := build(temp); err != nil {
		return err
	}
	if err := os.Rename(temp, dest); err != nil {
		os.Remove(temp)
		return err
	}
	return nil
}

// sameContent compares two files by SHA256.
func sameContent(a, b string) (bool, error) {
	hashA, err := binhash.HashFile(a)
	if err != nil {
		return false, err
	}
	hashB, err := binhash.HashFile(b)
	if err != nil {
		return false, err
	}
	return hashA == hashB, nil
}

func statSys(path string) (*syscall.Stat_t, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("no stat data for %s", path)
	}
	return stat, nil
}

func sameInode(a, b *syscall.Stat_t) bool {
	return a.Dev == b.Dev && a.Ino == b.Ino
}

// removeTombstoned deletes target paths covered by the tombstone set.
// Matching directories go wholesale.
func removeTombstoned(target string, tombstones *container.Tombstones) (int, error) {
	if tombstones.Len() == 0 {
		return 0, nil
	}
	removed := 0
	for _, relPath := range tombstones.Paths() {
		dest := filepath.Join(target, relPath)
		info, err := os.Lstat(dest)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, err
		}
		if info.IsDir() {
			if err := os.RemoveAll(dest); err != nil {
				return removed, err
			}
		} else if err := os.Remove(dest); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// reclaimTemps removes orphan temporaries left by an interrupted
// sync.
func reclaimTemps(target string) error {
	return filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasPrefix(filepath.Base(path), tempPrefix) {
			return os.Remove(path)
		}
		return nil
	})
}

// CollectManifest walks the target root and produces metadata
// manifest entries for every regular file, hashing contents as it
// goes. Used by the publish stage after a successful commit.
func (s *Syncer) CollectManifest(ctx context.Context, target string) ([]container.ManifestEntry, error) {
	var relPaths []string
	err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == target && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		relPath, err := filepath.Rel(target, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, relPath)
		return nil
	})
	if err != nil {
		return nil, liberror.Wrap(liberror.DedupIO, err, "walking %s", target)
	}

	entries := make([]container.ManifestEntry, len(relPaths))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i, relPath := range relPaths {
		i, relPath := i, relPath
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			full := filepath.Join(target, relPath)
			info, err := os.Lstat(full)
			if err != nil {
				return err
			}
			digest, err := binhash.HashFile(full)
			if err != nil {
				return err
			}
			entries[i] = container.ManifestEntry{Path: relPath, Size: info.Size(), Digest: digest[:]}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, liberror.Wrap(liberror.DedupIO, err, "hashing %s", target)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
