// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pacwrap/pacwrap/liberror"
)

func TestParseSigLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  SigLevel
	}{
		{"", SigLevelDefault},
		{"Required", SigPackage | SigDatabase},
		{"Required DatabaseOptional", SigPackage | SigDatabase | SigDatabaseOptional},
		{"Optional TrustAll", SigPackageOptional | SigDatabaseOptional | SigTrustAll},
		{"Never", SigNever},
		{"PackageRequired DatabaseOptional", SigPackage | SigDatabaseOptional},
	}
	for _, c := range cases {
		got, err := ParseSigLevel(c.input)
		if err != nil {
			t.Errorf("ParseSigLevel(%q): %v", c.input, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSigLevel(%q) = %v, want %v", c.input, got, c.want)
		}
	}

	if _, err := ParseSigLevel("Sometimes"); err == nil {
		t.Error("ParseSigLevel accepted unknown token")
	}
}

func TestSigLevelString(t *testing.T) {
	t.Parallel()

	if got := (SigPackage | SigDatabase).String(); got != "Required" {
		t.Errorf("String = %q, want Required", got)
	}
	if got := SigNever.String(); got != "Never" {
		t.Errorf("String = %q, want Never", got)
	}
}

func TestLoadRepositories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "repositories.conf")
	content := `[core]
SigLevel = Required DatabaseOptional
Server = https://mirror.one/core/os/x86_64
Server = https://mirror.two/core/os/x86_64

[extra]
Server = https://mirror.one/extra/os/x86_64
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	repos, err := LoadRepositories(path)
	if err != nil {
		t.Fatalf("LoadRepositories: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("got %d repositories, want 2", len(repos))
	}
	if repos[0].Name != "core" || repos[1].Name != "extra" {
		t.Errorf("order = %s, %s; want file order", repos[0].Name, repos[1].Name)
	}
	if len(repos[0].Servers) != 2 {
		t.Errorf("core servers = %v", repos[0].Servers)
	}
	if repos[0].SigLevel != SigPackage|SigDatabase|SigDatabaseOptional {
		t.Errorf("core SigLevel = %v", repos[0].SigLevel)
	}
	if repos[1].SigLevel != SigLevelDefault {
		t.Errorf("extra SigLevel = %v, want default", repos[1].SigLevel)
	}
}

func TestLoadRepositoriesRejectsServerless(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "repositories.conf")
	if err := os.WriteFile(path, []byte("[core]\nSigLevel = Never\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := LoadRepositories(path)
	if liberror.KindOf(err) != liberror.Config {
		t.Errorf("err = %v, want Config", err)
	}
}

func TestLoadRepositoriesMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadRepositories(filepath.Join(t.TempDir(), "absent.conf"))
	if liberror.KindOf(err) != liberror.Config {
		t.Errorf("err = %v, want Config", err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(
		[]Package{{Name: "neovim", Version: "0.10.0-1"}},
		[]Package{{Name: "neovim", Version: "0.10.1-1"}, {Name: "ripgrep", Version: "14.1.0-1"}},
	)
	upstream := map[string]struct{}{"gtk3": {}}

	c, err := Classify([]string{"ripgrep", "gtk3", "neovim", "no-such-pkg"}, store, upstream)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(c.Resident) != 2 || c.Resident[0] != "neovim" || c.Resident[1] != "ripgrep" {
		t.Errorf("Resident = %v", c.Resident)
	}
	if len(c.Foreign) != 1 || c.Foreign[0] != "gtk3" {
		t.Errorf("Foreign = %v", c.Foreign)
	}
	if len(c.Unknown) != 1 || c.Unknown[0] != "no-such-pkg" {
		t.Errorf("Unknown = %v", c.Unknown)
	}
}

func TestInstalledSet(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore([]Package{{Name: "a"}, {Name: "b"}}, nil)
	set, err := InstalledSet(store)
	if err != nil {
		t.Fatalf("InstalledSet: %v", err)
	}
	if len(set) != 2 {
		t.Errorf("set = %v", set)
	}
	if _, ok := set["a"]; !ok {
		t.Error("missing package a")
	}
}
