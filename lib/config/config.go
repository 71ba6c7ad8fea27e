// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pacwrap/pacwrap/liberror"
)

// Global is the operator-level configuration from pacwrap.yml.
type Global struct {
	// Progress selects the progress rendering style: basic, condensed,
	// condensed-foreign, condensed-local, or verbose.
	Progress string `yaml:"progress"`

	// Summary selects the summary style: basic, basic-foreign, table,
	// or table-foreign.
	Summary string `yaml:"summary"`

	// Downloads configures the agent-side download retry policy.
	Downloads DownloadConfig `yaml:"downloads"`

	// Parallelism bounds the dedup worker pool. Zero means the
	// available hardware parallelism.
	Parallelism int `yaml:"parallelism"`

	// KillGraceSeconds is the delay between SIGTERM and SIGKILL when
	// terminating container processes.
	KillGraceSeconds int `yaml:"kill_grace_seconds"`
}

// DownloadConfig is the retry policy of the agent's commit stage. A
// download failure retries the whole commit; retries are not counted
// per package.
type DownloadConfig struct {
	// Retries is the number of commit attempts.
	Retries int `yaml:"retries"`

	// BackoffMillis is the initial backoff; each retry doubles it.
	BackoffMillis int `yaml:"backoff_ms"`
}

// Defaults returns the configuration used when pacwrap.yml is absent.
func Defaults() Global {
	return Global{
		Progress: "condensed",
		Summary:  "basic",
		Downloads: DownloadConfig{
			Retries:       3,
			BackoffMillis: 500,
		},
		Parallelism:      runtime.NumCPU(),
		KillGraceSeconds: 10,
	}
}

// LoadGlobal reads pacwrap.yml from the environment's config
// directory. A missing file yields the defaults; a malformed file is
// a configuration error.
func LoadGlobal(env Environment) (Global, error) {
	global := Defaults()

	data, err := os.ReadFile(env.GlobalConfigFile())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return global, nil
		}
		return Global{}, liberror.Wrap(liberror.Config, err, "reading %s", env.GlobalConfigFile())
	}
	if err := yaml.Unmarshal(data, &global); err != nil {
		return Global{}, liberror.Wrap(liberror.Config, err, "parsing %s", env.GlobalConfigFile())
	}

	if global.Downloads.Retries < 1 {
		global.Downloads.Retries = 1
	}
	if global.Downloads.BackoffMillis < 0 {
		global.Downloads.BackoffMillis = 0
	}
	if global.Parallelism < 1 {
		global.Parallelism = runtime.NumCPU()
	}
	if global.KillGraceSeconds < 1 {
		global.KillGraceSeconds = 10
	}
	return global, nil
}

// KillGrace returns the kill grace period as a duration.
func (g Global) KillGrace() time.Duration {
	return time.Duration(g.KillGraceSeconds) * time.Second
}

// DownloadBackoff returns the initial retry backoff as a duration.
func (g Global) DownloadBackoff() time.Duration {
	return time.Duration(g.Downloads.BackoffMillis) * time.Millisecond
}
