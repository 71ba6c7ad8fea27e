// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pacwrap/pacwrap/agent"
	"github.com/pacwrap/pacwrap/container"
	"github.com/pacwrap/pacwrap/lib/config"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/pkgdb"
)

// fixture builds a three-container fleet: base <- common (slice,
// gtk3) <- editor (aggregate). gtk3 is available only to common, so
// it is foreign to editor.
type fixture struct {
	registry *container.Registry
	stores   map[string]*pkgdb.MemoryStore
}

func newFixture(t *testing.T) *fixture {
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
	configs := map[string]string{
		"base":   "type: base\n",
		"common": "type: slice\ndependencies: [base]\npackages: [gtk3]\n",
		"editor": "type: aggregate\ndependencies: [base, common]\npackages: [neovim]\n",
	}
	for id, content := range configs {
		if err := os.WriteFile(filepath.Join(env.ContainerConfigDir(), id+".yml"), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	registry, err := container.LoadRegistry(env)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	// Mark every container present.
	for id := range configs {
		if err := os.MkdirAll(registry.Paths().Root(id), 0755); err != nil {
			t.Fatalf("MkdirAll root: %v", err)
		}
	}

	stores := map[string]*pkgdb.MemoryStore{
		"base": pkgdb.NewMemoryStore(
			[]pkgdb.Package{{Name: "filesystem"}},
			[]pkgdb.Package{{Name: "filesystem"}},
		),
		"common": pkgdb.NewMemoryStore(
			[]pkgdb.Package{{Name: "gtk3", Explicit: true}},
			[]pkgdb.Package{{Name: "gtk3"}},
		),
		"editor": pkgdb.NewMemoryStore(
			nil,
			[]pkgdb.Package{{Name: "neovim"}, {Name: "ripgrep"}},
		),
	}
	return &fixture{registry: registry, stores: stores}
}

func (f *fixture) provider() StoreProvider {
	return func(id string) (pkgdb.Store, error) {
		return f.stores[id], nil
	}
}

func TestBuildPlanClassifiesForeign(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	plan, err := BuildPlan(f.registry, Intent{
		Mode:    agent.Synchronize,
		Targets: map[string][]string{"editor": {"neovim", "gtk3"}},
		Flags:   agent.FlagTargetOnly,
	}, f.provider())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	work := plan.Work["editor"]
	if work == nil {
		t.Fatal("no work for editor")
	}
	if len(work.Resident) != 1 || work.Resident[0] != "neovim" {
		t.Errorf("Resident = %v", work.Resident)
	}
	if len(work.Foreign) != 1 || work.Foreign[0] != "gtk3" {
		t.Errorf("Foreign = %v", work.Foreign)
	}
	if !work.NeedsAgent {
		t.Error("work with resident targets must need the agent")
	}
}

func TestBuildPlanRejectsUnknownTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := BuildPlan(f.registry, Intent{
		Mode:    agent.Synchronize,
		Targets: map[string][]string{"editor": {"no-such-pkg"}},
		Flags:   agent.FlagTargetOnly,
	}, f.provider())
	if !liberror.IsKind(err, liberror.Plan) {
		t.Fatalf("BuildPlan = %v, want Plan", err)
	}
}

func TestBuildPlanUpgradeTargetsPresentFleet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	plan, err := BuildPlan(f.registry, Intent{Mode: agent.Upgrade}, f.provider())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	for _, id := range []string{"base", "common", "editor"} {
		work := plan.Work[id]
		if work == nil || !work.NeedsAgent {
			t.Errorf("upgrade plan missing agent work for %s", id)
		}
	}
	if len(plan.Order) != 3 || plan.Order[0] != "base" || plan.Order[2] != "editor" {
		t.Errorf("Order = %v", plan.Order)
	}
}

func TestBuildPlanOrderIsTopological(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	plan, err := BuildPlan(f.registry, Intent{
		Mode:    agent.Synchronize,
		Targets: map[string][]string{"editor": nil},
	}, f.provider())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	rank := map[string]int{}
	for i, id := range plan.Order {
		rank[id] = i
	}
	if !(rank["base"] < rank["common"] && rank["common"] < rank["editor"]) {
		t.Errorf("Order = %v", plan.Order)
	}
}

func TestBuildPlanSyncIdempotence(t *testing.T) {
	t.Parallel()

	// A plain synchronise of an up-to-date container without refresh
	// or targets plans no agent work.
	f := newFixture(t)
	plan, err := BuildPlan(f.registry, Intent{
		Mode:    agent.Synchronize,
		Targets: map[string][]string{"editor": nil},
		Flags:   agent.FlagTargetOnly,
	}, f.provider())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	work := plan.Work["editor"]
	if work == nil {
		t.Fatal("no work for editor")
	}
	if work.NeedsAgent {
		t.Error("no-change synchronise planned agent work")
	}
}

func TestBuildPlanTargetOnlyWithRefresh(t *testing.T) {
	t.Parallel()

	// --target-only with zero package targets is a no-op that still
	// refreshes databases under -y.
	f := newFixture(t)
	plan, err := BuildPlan(f.registry, Intent{
		Mode:    agent.Synchronize,
		Targets: map[string][]string{"editor": nil},
		Flags:   agent.FlagTargetOnly | agent.FlagRefresh,
	}, f.provider())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	work := plan.Work["editor"]
	if work == nil || !work.NeedsAgent {
		t.Error("refresh flag did not force agent work")
	}
	if len(work.Resident) != 0 {
		t.Errorf("Resident = %v, want empty", work.Resident)
	}
}

func TestPreviewDeterministic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	intent := Intent{
		Mode:    agent.Synchronize,
		Targets: map[string][]string{"editor": {"neovim", "gtk3"}},
		Flags:   agent.FlagTargetOnly | agent.FlagPreview,
	}
	first, err := BuildPlan(f.registry, intent, f.provider())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	// The same intent without --preview must plan identical work.
	intent.Flags &^= agent.FlagPreview
	second, err := BuildPlan(f.registry, intent, f.provider())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	firstLines, secondLines := first.Preview(), second.Preview()
	if len(firstLines) != len(secondLines) {
		t.Fatalf("preview lengths differ: %v vs %v", firstLines, secondLines)
	}
	for i := range firstLines {
		if firstLines[i] != secondLines[i] {
			t.Errorf("line %d: %q vs %q", i, firstLines[i], secondLines[i])
		}
	}
}

func TestBuildPlanRemoveSkipsClassification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	plan, err := BuildPlan(f.registry, Intent{
		Mode:    agent.Remove,
		Targets: map[string][]string{"editor": {"neovim"}},
		Flags:   agent.FlagTargetOnly,
	}, f.provider())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	work := plan.Work["editor"]
	if work == nil || !work.NeedsAgent {
		t.Fatal("remove planned no agent work")
	}
	if len(work.Resident) != 1 || work.Resident[0] != "neovim" {
		t.Errorf("Resident = %v", work.Resident)
	}
}

func TestMetadataStore(t *testing.T) {
	t.Parallel()

	handle := &container.Handle{
		ID:       "editor",
		Packages: []string{"neovim"},
	}
	store := MetadataStore(handle, []pkgdb.Package{{Name: "ripgrep"}})
	installed, err := store.Installed()
	if err != nil {
		t.Fatalf("Installed: %v", err)
	}
	if len(installed) != 1 || installed[0].Name != "neovim" {
		t.Errorf("Installed = %v", installed)
	}
	if _, ok, _ := store.Available("ripgrep"); !ok {
		t.Error("available package not found")
	}
}
