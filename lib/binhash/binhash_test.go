// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFile(t *testing.T) {
	t.Parallel()

	content := []byte("hello, pacwrap")
	path := filepath.Join(t.TempDir(), "pkg-data")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	want := sha256.Sum256(content)
	if got != want {
		t.Errorf("HashFile = %x, want %x", got, want)
	}
}

func TestHashFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := HashFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("HashFile on missing file succeeded")
	}
}

func TestDigestRoundTrip(t *testing.T) {
	t.Parallel()

	digest := sha256.Sum256([]byte("round trip"))
	parsed, err := ParseDigest(FormatDigest(digest))
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if parsed != digest {
		t.Errorf("round trip mismatch: %x != %x", parsed, digest)
	}
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "zz", "abcd", FormatDigest([32]byte{}) + "00"} {
		if _, err := ParseDigest(input); err == nil {
			t.Errorf("ParseDigest(%q) succeeded", input)
		}
	}
}

func TestManifestHasherOrderSensitive(t *testing.T) {
	t.Parallel()

	a, b := sha256.Sum256([]byte("a")), sha256.Sum256([]byte("b"))

	first := NewManifestHasher()
	first.Add("etc/passwd", a)
	first.Add("usr/bin/nvim", b)

	same := NewManifestHasher()
	same.Add("etc/passwd", a)
	same.Add("usr/bin/nvim", b)

	swapped := NewManifestHasher()
	swapped.Add("usr/bin/nvim", b)
	swapped.Add("etc/passwd", a)

	if first.Sum() != same.Sum() {
		t.Error("identical entry sequences produced different digests")
	}
	if first.Sum() == swapped.Sum() {
		t.Error("reordered entries produced the same digest")
	}
}

func TestManifestHasherEntryBoundaries(t *testing.T) {
	t.Parallel()

	d := sha256.Sum256([]byte("x"))

	one := NewManifestHasher()
	one.Add("ab", d)
	one.Add("c", d)

	other := NewManifestHasher()
	other.Add("a", d)
	other.Add("bc", d)

	if one.Sum() == other.Sum() {
		t.Error("shifted entry boundaries produced the same digest")
	}
}
