// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pacwrap/pacwrap/liberror"
)

func TestSharedLocksCoexist(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "base.lck")
	first, err := Acquire(path, "base", false)
	if err != nil {
		t.Fatalf("Acquire shared: %v", err)
	}
	defer first.Release()

	second, err := Acquire(path, "base", false)
	if err != nil {
		t.Fatalf("second shared Acquire: %v", err)
	}
	second.Release()
}

func TestExclusiveConflicts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "base.lck")
	held, err := Acquire(path, "base", true)
	if err != nil {
		t.Fatalf("Acquire exclusive: %v", err)
	}
	defer held.Release()

	// flock locks are per open file description, so a conflicting
	// acquire through a second descriptor in the same process still
	// exercises the contention path.
	if _, err := Acquire(path, "base", true); !liberror.IsKind(err, liberror.Lock) {
		t.Fatalf("conflicting Acquire = %v, want Lock", err)
	}
	if _, err := Acquire(path, "base", false); !liberror.IsKind(err, liberror.Lock) {
		t.Fatalf("shared Acquire under exclusive = %v, want Lock", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "base.lck")
	held, err := Acquire(path, "base", true)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := held.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := held.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	again, err := Acquire(path, "base", true)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again.Release()
}

func TestUpgrade(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "base.lck")
	held, err := Acquire(path, "base", false)
	if err != nil {
		t.Fatalf("Acquire shared: %v", err)
	}
	defer held.Release()

	if err := held.Upgrade(); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if _, err := Acquire(path, "base", false); !liberror.IsKind(err, liberror.Lock) {
		t.Fatalf("shared Acquire after upgrade = %v, want Lock", err)
	}
}

func TestInstanceRegistry(t *testing.T) {
	t.Parallel()

	registry := NewInstanceRegistry(filepath.Join(t.TempDir(), "instances"))

	self := NewInstance("editor", os.Getpid(), "pacwrap -Syu editor", 4026531837)
	if err := registry.Register(self); err != nil {
		t.Fatalf("Register: %v", err)
	}

	instances, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("List = %d records, want 1", len(instances))
	}
	got := instances[0]
	if got.Container != "editor" || got.AgentPID != os.Getpid() || got.UserNS != 4026531837 {
		t.Errorf("record = %+v", got)
	}

	byContainer, err := registry.ByContainer("editor")
	if err != nil {
		t.Fatalf("ByContainer: %v", err)
	}
	if len(byContainer) != 1 {
		t.Errorf("ByContainer = %d records", len(byContainer))
	}

	if err := registry.Unregister(os.Getpid()); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	instances, err = registry.List()
	if err != nil {
		t.Fatalf("List after Unregister: %v", err)
	}
	if len(instances) != 0 {
		t.Errorf("List = %d records after Unregister", len(instances))
	}
}

func TestInstanceRegistryCollectsStale(t *testing.T) {
	t.Parallel()

	registry := NewInstanceRegistry(filepath.Join(t.TempDir(), "instances"))

	// A pid far above pid_max never exists.
	stale := NewInstance("ghost", 1<<30, "pacwrap run ghost", 1)
	if err := registry.Register(stale); err != nil {
		t.Fatalf("Register: %v", err)
	}

	instances, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(instances) != 0 {
		t.Errorf("stale record survived enumeration: %+v", instances)
	}
	if _, err := os.Stat(filepath.Join(registry.dir, "1073741824")); !os.IsNotExist(err) {
		t.Error("stale record file not garbage-collected")
	}
}

func TestInstanceRegistryEmptyDir(t *testing.T) {
	t.Parallel()

	registry := NewInstanceRegistry(filepath.Join(t.TempDir(), "never-created"))
	instances, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if instances != nil {
		t.Errorf("List = %v, want nil", instances)
	}
}

func TestRegisterReplacesRecycledPid(t *testing.T) {
	t.Parallel()

	registry := NewInstanceRegistry(filepath.Join(t.TempDir(), "instances"))
	pid := os.Getpid()
	if err := registry.Register(NewInstance("old", pid, "old cmd", 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(NewInstance("new", pid, "new cmd", 2)); err != nil {
		t.Fatalf("Register over existing: %v", err)
	}
	instances, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(instances) != 1 || instances[0].Container != "new" {
		t.Errorf("instances = %+v, want replaced record", instances)
	}
}
