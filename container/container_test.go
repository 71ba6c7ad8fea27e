// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pacwrap/pacwrap/lib/config"
	"github.com/pacwrap/pacwrap/liberror"
)

func TestParseID(t *testing.T) {
	t.Parallel()

	valid := []string{"base", "gtk-common", "a", "net.browser", "c++", "x_1", "A9"}
	for _, id := range valid {
		if _, err := ParseID(id); err != nil {
			t.Errorf("ParseID(%q) = %v", id, err)
		}
	}

	invalid := []string{"", ".hidden", "-flag", "+plus", "has space", "slash/ed", "dot..dot/../..", string(make([]byte, 70))}
	for _, id := range invalid {
		if _, err := ParseID(id); err == nil {
			t.Errorf("ParseID(%q) succeeded", id)
		}
	}

	// Exactly 64 characters is the limit.
	long := "x"
	for len(long) < 64 {
		long += "y"
	}
	if _, err := ParseID(long); err != nil {
		t.Errorf("ParseID(64 chars) = %v", err)
	}
	if _, err := ParseID(long + "z"); err == nil {
		t.Error("ParseID(65 chars) succeeded")
	}
}

func TestTypeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, typ := range []Type{Base, Slice, Aggregate, Symbolic} {
		parsed, err := ParseType(typ.String())
		if err != nil {
			t.Fatalf("ParseType(%q): %v", typ, err)
		}
		if parsed != typ {
			t.Errorf("round trip %v -> %v", typ, parsed)
		}
	}
	if _, err := ParseType("root"); err == nil {
		t.Error("ParseType accepted unknown name")
	}
}

// testEnv builds a config/data layout under a temp directory and
// writes the given container configs.
func testEnv(t *testing.T, configs map[string]string) config.Environment {
	t.Helper()
	base := t.TempDir()
	env := config.Environment{
		ConfigDir: filepath.Join(base, "config"),
		DataDir:   filepath.Join(base, "data"),
		CacheDir:  filepath.Join(base, "cache"),
	}
	if err := os.MkdirAll(env.ContainerConfigDir(), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for id, content := range configs {
		path := filepath.Join(env.ContainerConfigDir(), id+".yml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile %s: %v", id, err)
		}
	}
	return env
}

func loadTestRegistry(t *testing.T, configs map[string]string) *Registry {
	t.Helper()
	registry, err := LoadRegistry(testEnv(t, configs))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	return registry
}

func TestLoadHandleDefaults(t *testing.T) {
	t.Parallel()

	registry := loadTestRegistry(t, map[string]string{
		"base": "type: base\n",
		"editor": `type: aggregate
dependencies: [base]
packages: [neovim]
seccomp: false
`,
	})

	base, err := registry.Handle("base")
	if err != nil {
		t.Fatalf("Handle(base): %v", err)
	}
	if !base.Seccomp {
		t.Error("seccomp should default to true")
	}

	editor, err := registry.Handle("editor")
	if err != nil {
		t.Fatalf("Handle(editor): %v", err)
	}
	if editor.Seccomp {
		t.Error("explicit seccomp: false not honoured")
	}
	if len(editor.Packages) != 1 || editor.Packages[0] != "neovim" {
		t.Errorf("Packages = %v", editor.Packages)
	}
}

func TestHandleValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]map[string]string{
		"base with deps":         {"b": "type: base\ndependencies: [x]\n"},
		"symbolic without target": {"s": "type: symbolic\n"},
		"symbolic with packages":  {"s": "type: symbolic\ntarget: b\npackages: [vim]\n"},
		"slice without deps":      {"s": "type: slice\n"},
		"self dependency":         {"s": "type: slice\ndependencies: [s]\n"},
	}
	for name, configs := range cases {
		configs := configs
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := LoadRegistry(testEnv(t, configs)); err == nil {
				t.Error("LoadRegistry accepted invalid config")
			}
		})
	}
}

func TestClosureTopologicalOrder(t *testing.T) {
	t.Parallel()

	registry := loadTestRegistry(t, map[string]string{
		"base":   "type: base\n",
		"common": "type: slice\ndependencies: [base]\n",
		"zlib":   "type: slice\ndependencies: [base]\n",
		"editor": "type: aggregate\ndependencies: [base, common, zlib]\n",
	})

	order, err := registry.Closure([]string{"editor"})
	if err != nil {
		t.Fatalf("Closure: %v", err)
	}
	want := []string{"base", "common", "zlib", "editor"}
	if len(order) != len(want) {
		t.Fatalf("Closure = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Closure = %v, want %v", order, want)
		}
	}

	rank := make(map[string]int)
	for i, id := range order {
		rank[id] = i
	}
	for _, id := range order {
		handle, _ := registry.Handle(id)
		for _, dep := range handle.Dependencies {
			if rank[dep] >= rank[id] {
				t.Errorf("edge %s -> %s violates topological order", dep, id)
			}
		}
	}
}

func TestClosureDetectsCycle(t *testing.T) {
	t.Parallel()

	registry := loadTestRegistry(t, map[string]string{
		"base": "type: base\n",
		"a":    "type: slice\ndependencies: [base, b]\n",
		"b":    "type: slice\ndependencies: [base, a]\n",
	})

	_, err := registry.Closure([]string{"a"})
	if !liberror.IsKind(err, liberror.DepCycle) {
		t.Fatalf("Closure = %v, want DepCycle", err)
	}
}

func TestClosureMissingDependency(t *testing.T) {
	t.Parallel()

	registry := loadTestRegistry(t, map[string]string{
		"base": "type: base\n",
		"app":  "type: aggregate\ndependencies: [base, ghost]\n",
	})

	_, err := registry.Closure([]string{"app"})
	if !liberror.IsKind(err, liberror.DepMissing) {
		t.Fatalf("Closure = %v, want DepMissing", err)
	}
}

func TestAncestryRules(t *testing.T) {
	t.Parallel()

	// An aggregate reachable from two bases must be rejected.
	registry := loadTestRegistry(t, map[string]string{
		"base1": "type: base\n",
		"base2": "type: base\n",
		"app":   "type: aggregate\ndependencies: [base1, base2]\n",
	})
	if _, err := registry.Closure([]string{"app"}); !liberror.IsKind(err, liberror.Config) {
		t.Errorf("two-base closure = %v, want Config", err)
	}

	// Depending on an aggregate is rejected.
	registry = loadTestRegistry(t, map[string]string{
		"base": "type: base\n",
		"app":  "type: aggregate\ndependencies: [base]\n",
		"app2": "type: aggregate\ndependencies: [base, app]\n",
	})
	if _, err := registry.Closure([]string{"app2"}); !liberror.IsKind(err, liberror.Config) {
		t.Errorf("aggregate-dependency closure = %v, want Config", err)
	}
}

func TestAncestorsOrdering(t *testing.T) {
	t.Parallel()

	registry := loadTestRegistry(t, map[string]string{
		"base":   "type: base\n",
		"common": "type: slice\ndependencies: [base]\n",
		"editor": "type: aggregate\ndependencies: [base, common]\n",
	})

	ancestors, err := registry.Ancestors("editor")
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(ancestors) != 2 || ancestors[0] != "base" || ancestors[1] != "common" {
		t.Errorf("Ancestors = %v, want [base common]", ancestors)
	}
}

func TestSymbolicResolution(t *testing.T) {
	t.Parallel()

	registry := loadTestRegistry(t, map[string]string{
		"base":  "type: base\n",
		"alias": "type: symbolic\ntarget: base\n",
		"hop":   "type: symbolic\ntarget: alias\n",
	})

	resolved, err := ResolveSymbolic(registry.Handles(), "hop")
	if err != nil {
		t.Fatalf("ResolveSymbolic: %v", err)
	}
	if resolved != "base" {
		t.Errorf("resolved = %q, want base", resolved)
	}
}

func TestSymbolicSelfCycle(t *testing.T) {
	t.Parallel()

	registry := loadTestRegistry(t, map[string]string{
		"loop": "type: symbolic\ntarget: loop\n",
	})

	_, err := ResolveSymbolic(registry.Handles(), "loop")
	if !liberror.IsKind(err, liberror.DepCycle) {
		t.Fatalf("ResolveSymbolic = %v, want DepCycle", err)
	}
}

func TestDependents(t *testing.T) {
	t.Parallel()

	registry := loadTestRegistry(t, map[string]string{
		"base":   "type: base\n",
		"common": "type: slice\ndependencies: [base]\n",
		"editor": "type: aggregate\ndependencies: [base, common]\n",
		"other":  "type: aggregate\ndependencies: [base]\n",
	})

	fleet := []string{"base", "common", "editor", "other"}
	dependents := registry.Dependents("common", fleet)
	if len(dependents) != 1 || dependents[0] != "editor" {
		t.Errorf("Dependents(common) = %v, want [editor]", dependents)
	}
	dependents = registry.Dependents("base", fleet)
	if len(dependents) != 3 {
		t.Errorf("Dependents(base) = %v, want all three", dependents)
	}
}

func TestPresentRequiresRoot(t *testing.T) {
	t.Parallel()

	env := testEnv(t, map[string]string{
		"base": "type: base\n",
		"app":  "type: aggregate\ndependencies: [base]\n",
	})
	registry, err := LoadRegistry(env)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	if present := registry.Present(); len(present) != 0 {
		t.Errorf("Present = %v on empty data dir", present)
	}

	if err := os.MkdirAll(registry.Paths().Root("base"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	present := registry.Present()
	if len(present) != 1 || present[0] != "base" {
		t.Errorf("Present = %v, want [base]", present)
	}

	if declared := registry.Declared(); len(declared) != 2 {
		t.Errorf("Declared = %v, want both", declared)
	}
}
