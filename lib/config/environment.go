// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"

	"github.com/pacwrap/pacwrap/liberror"
)

// Environment is the resolved directory layout for one invocation.
// All paths are absolute. The record is immutable after Resolve.
type Environment struct {
	// ConfigDir holds pacwrap.yml, repositories.conf and the
	// container/ configuration directory.
	ConfigDir string

	// DataDir holds container state: per-container roots, the
	// instance registry and the transaction log.
	DataDir string

	// CacheDir holds the shared package download cache.
	CacheDir string
}

// Resolve builds the environment from the process environment. getenv
// abstracts os.Getenv for tests; pass nil for the real environment.
func Resolve(getenv func(string) string) (Environment, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	home := getenv("PACWRAP_HOME")
	if home == "" {
		home = getenv("HOME")
	}
	if home == "" {
		return Environment{}, liberror.New(liberror.Config, "neither PACWRAP_HOME nor HOME is set")
	}

	env := Environment{
		ConfigDir: getenv("PACWRAP_CONFIG_DIR"),
		DataDir:   getenv("PACWRAP_DATA_DIR"),
		CacheDir:  getenv("PACWRAP_CACHE_DIR"),
	}
	if env.ConfigDir == "" {
		env.ConfigDir = filepath.Join(home, ".config", "pacwrap")
	}
	if env.DataDir == "" {
		env.DataDir = filepath.Join(home, ".local", "share", "pacwrap")
	}
	if env.CacheDir == "" {
		env.CacheDir = filepath.Join(home, ".cache", "pacwrap")
	}

	for _, dir := range []*string{&env.ConfigDir, &env.DataDir, &env.CacheDir} {
		absolute, err := filepath.Abs(*dir)
		if err != nil {
			return Environment{}, liberror.Wrap(liberror.Config, err, "resolving directory %s", *dir)
		}
		*dir = absolute
	}
	return env, nil
}

// GlobalConfigFile is the path of pacwrap.yml.
func (e Environment) GlobalConfigFile() string {
	return filepath.Join(e.ConfigDir, "pacwrap.yml")
}

// RepositoriesFile is the path of the INI repository list.
func (e Environment) RepositoriesFile() string {
	return filepath.Join(e.ConfigDir, "repositories.conf")
}

// ContainerConfigDir is the directory of per-container configuration
// files ($CONFIG/container/<id>.yml).
func (e Environment) ContainerConfigDir() string {
	return filepath.Join(e.ConfigDir, "container")
}

// ContainerDataDir is the directory of per-container state
// ($DATA/container/<id>/).
func (e Environment) ContainerDataDir() string {
	return filepath.Join(e.DataDir, "container")
}

// InstanceDir is the live-instance registry directory.
func (e Environment) InstanceDir() string {
	return filepath.Join(e.DataDir, "instances")
}

// LogFile is the path of the shared transaction log.
func (e Environment) LogFile() string {
	return filepath.Join(e.DataDir, "pacwrap.log")
}

// PackageCacheDir is the shared download cache.
func (e Environment) PackageCacheDir() string {
	return filepath.Join(e.CacheDir, "pkg")
}
