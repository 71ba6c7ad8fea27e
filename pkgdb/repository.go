// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"strings"

	"gopkg.in/ini.v1"

	"github.com/pacwrap/pacwrap/liberror"
)

// Repository is one enabled sync repository.
type Repository struct {
	// Name is the repository name ("core", "extra", ...). It doubles
	// as the sync database name.
	Name string `cbor:"name"`

	// Servers are the mirror URLs with $repo/$arch already a pacman
	// concern; pacwrap passes them through untouched.
	Servers []string `cbor:"servers"`

	// SigLevel is the signature policy for this repository.
	SigLevel SigLevel `cbor:"siglevel"`
}

// LoadRepositories parses the INI repository list
// ($CONFIG/repositories.conf). Each section is a repository; Server
// keys may repeat, and a section-level SigLevel overrides the
// default. Section order is preserved because repository priority
// follows file order, as in pacman.conf.
func LoadRepositories(path string) ([]Repository, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowShadows:             true,
		SpaceBeforeInlineComment: true,
	}, path)
	if err != nil {
		return nil, liberror.Wrap(liberror.Config, err, "loading %s", path)
	}

	var repos []Repository
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		repo := Repository{Name: name, SigLevel: SigLevelDefault}
		if key, err := section.GetKey("Server"); err == nil {
			for _, server := range key.ValueWithShadows() {
				server = strings.TrimSpace(server)
				if server != "" {
					repo.Servers = append(repo.Servers, server)
				}
			}
		}
		if key, err := section.GetKey("SigLevel"); err == nil {
			repo.SigLevel, err = ParseSigLevel(key.Value())
			if err != nil {
				return nil, liberror.Wrap(liberror.Config, err, "repository %q", name)
			}
		}
		if len(repo.Servers) == 0 {
			return nil, liberror.New(liberror.Config, "repository %q has no servers", name)
		}
		repos = append(repos, repo)
	}
	if len(repos) == 0 {
		return nil, liberror.New(liberror.Config, "no repositories defined in %s", path)
	}
	return repos, nil
}
