// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/pacwrap/pacwrap/lib/binhash"
	"github.com/pacwrap/pacwrap/lib/codec"
	"github.com/pacwrap/pacwrap/liberror"
)

// metaSchemaVersion is the current metadata layout. Version 1 lacked
// the content manifest; its files still load, with an empty manifest.
const metaSchemaVersion = 2

// Metadata is the per-container state recorded after each successful
// transaction. Serialized as deterministic CBOR so recomposition from
// identical inputs reproduces identical bytes. Decoders ignore
// unknown trailing fields, keeping old readers forward-compatible.
type Metadata struct {
	// SchemaVersion is the metadata layout version.
	SchemaVersion uint16 `cbor:"schema"`

	// MetaVersion is a monotonic marker, seconds since the epoch at
	// the time of the last successful transaction. Downstream tools
	// compare it to detect change.
	MetaVersion uint64 `cbor:"meta_version"`

	// Packages is the explicit package set as of the last commit.
	Packages []string `cbor:"explicit_packages"`

	// Dependencies is the dependency list as of the last commit.
	Dependencies []string `cbor:"dependencies"`

	// ManifestHash is the BLAKE3 digest over the content manifest.
	ManifestHash []byte `cbor:"manifest_hash"`

	// Manifest is the zstd-compressed CBOR encoding of the content
	// manifest entries. Kept compressed at rest; most readers only
	// need ManifestHash.
	Manifest []byte `cbor:"manifest,omitempty"`
}

// ManifestEntry records one file of the container's own additions.
type ManifestEntry struct {
	// Path is the location relative to the container root.
	Path string `cbor:"path"`

	// Size is the file size in bytes.
	Size int64 `cbor:"size"`

	// Digest is the SHA256 content digest.
	Digest []byte `cbor:"digest"`
}

// NewMetadata returns metadata for a freshly composed container.
func NewMetadata(packages, dependencies []string) *Metadata {
	return &Metadata{
		SchemaVersion: metaSchemaVersion,
		MetaVersion:   uint64(time.Now().Unix()),
		Packages:      append([]string(nil), packages...),
		Dependencies:  append([]string(nil), dependencies...),
	}
}

// Touch advances the meta version. The marker is monotonic even when
// transactions complete within the same second.
func (m *Metadata) Touch() {
	now := uint64(time.Now().Unix())
	if now <= m.MetaVersion {
		now = m.MetaVersion + 1
	}
	m.MetaVersion = now
}

// SetManifest stores the content manifest: entries are sorted by
// path, hashed into ManifestHash, CBOR-encoded and zstd-compressed.
func (m *Metadata) SetManifest(entries []ManifestEntry) error {
	sorted := append([]ManifestEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	hasher := binhash.NewManifestHasher()
	for _, entry := range sorted {
		var digest [32]byte
		copy(digest[:], entry.Digest)
		hasher.Add(entry.Path, digest)
	}
	sum := hasher.Sum()
	m.ManifestHash = sum[:]

	encoded, err := codec.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("initializing zstd: %w", err)
	}
	defer encoder.Close()
	m.Manifest = encoder.EncodeAll(encoded, nil)
	return nil
}

// ManifestEntries decompresses and decodes the stored manifest. A
// metadata record without a manifest yields nil.
func (m *Metadata) ManifestEntries() ([]ManifestEntry, error) {
	if len(m.Manifest) == 0 {
		return nil, nil
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd: %w", err)
	}
	defer decoder.Close()
	decoded, err := decoder.DecodeAll(m.Manifest, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing manifest: %w", err)
	}
	var entries []ManifestEntry
	if err := codec.Unmarshal(decoded, &entries); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return entries, nil
}

// LoadMetadata reads a metadata file. Missing files return (nil, nil):
// an uninitialised container is not an error. Schema versions newer
// than this build are rejected; version 1 is migrated in place.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, liberror.Wrap(liberror.IO, err, "reading metadata %s", path)
	}
	var meta Metadata
	if err := codec.Unmarshal(data, &meta); err != nil {
		return nil, liberror.Wrap(liberror.Config, err, "decoding metadata %s", path)
	}
	switch {
	case meta.SchemaVersion == 0:
		return nil, liberror.New(liberror.Config, "metadata %s has no schema version", path)
	case meta.SchemaVersion > metaSchemaVersion:
		return nil, liberror.New(liberror.Config,
			"metadata %s has schema %d, newer than supported %d", path, meta.SchemaVersion, metaSchemaVersion)
	case meta.SchemaVersion < metaSchemaVersion:
		meta.SchemaVersion = metaSchemaVersion
	}
	return &meta, nil
}

// SaveMetadata writes the metadata file atomically: temporary sibling,
// fsync, rename into place, fsync of the parent directory. Readers
// never observe a partial file and a crash leaves the previous
// committed metadata intact.
func SaveMetadata(meta *Metadata, path string) error {
	data, err := codec.Marshal(meta)
	if err != nil {
		return liberror.Wrap(liberror.Internal, err, "encoding metadata")
	}

	dir := filepath.Dir(path)
	temp, err := os.CreateTemp(dir, ".meta-*")
	if err != nil {
		return liberror.Wrap(liberror.IO, err, "creating metadata temp file in %s", dir)
	}
	tempName := temp.Name()
	defer os.Remove(tempName)

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return liberror.Wrap(liberror.IO, err, "writing metadata temp file")
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		return liberror.Wrap(liberror.IO, err, "syncing metadata temp file")
	}
	if err := temp.Close(); err != nil {
		return liberror.Wrap(liberror.IO, err, "closing metadata temp file")
	}
	if err := os.Rename(tempName, path); err != nil {
		return liberror.Wrap(liberror.IO, err, "renaming metadata into place")
	}

	parent, err := os.Open(dir)
	if err != nil {
		return liberror.Wrap(liberror.IO, err, "opening %s for sync", dir)
	}
	defer parent.Close()
	if err := parent.Sync(); err != nil {
		return liberror.Wrap(liberror.IO, err, "syncing %s", dir)
	}
	return nil
}
