// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"strings"

	"github.com/pacwrap/pacwrap/liberror"
)

// SigLevel is the signature verification policy for a repository or
// the local database, mirroring pacman.conf semantics.
type SigLevel uint16

const (
	// SigPackage requires signatures on packages.
	SigPackage SigLevel = 1 << iota
	// SigPackageOptional accepts unsigned packages.
	SigPackageOptional
	// SigDatabase requires signatures on sync databases.
	SigDatabase
	// SigDatabaseOptional accepts unsigned databases.
	SigDatabaseOptional
	// SigTrustAll accepts signatures from unknown keys.
	SigTrustAll
	// SigNever disables verification entirely.
	SigNever
)

// SigLevelDefault is the policy applied when a repository section
// does not set one: required package signatures, optional database
// signatures.
const SigLevelDefault = SigPackage | SigDatabaseOptional

// ParseSigLevel parses a space-separated pacman-style SigLevel value
// such as "Required DatabaseOptional" or "Never".
func ParseSigLevel(value string) (SigLevel, error) {
	var level SigLevel
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return SigLevelDefault, nil
	}
	for _, field := range fields {
		switch field {
		case "Required":
			level |= SigPackage | SigDatabase
		case "Optional":
			level |= SigPackageOptional | SigDatabaseOptional
		case "Never":
			level |= SigNever
		case "PackageRequired":
			level |= SigPackage
		case "PackageOptional":
			level |= SigPackageOptional
		case "DatabaseRequired":
			level |= SigDatabase
		case "DatabaseOptional":
			level |= SigDatabaseOptional
		case "TrustAll":
			level |= SigTrustAll
		default:
			return 0, liberror.New(liberror.Config, "unknown SigLevel token %q", field)
		}
	}
	return level, nil
}

// String renders the policy in pacman.conf spelling.
func (s SigLevel) String() string {
	if s&SigNever != 0 {
		return "Never"
	}
	var fields []string
	if s&SigPackage != 0 && s&SigDatabase != 0 {
		fields = append(fields, "Required")
	} else {
		if s&SigPackage != 0 {
			fields = append(fields, "PackageRequired")
		}
		if s&SigDatabase != 0 {
			fields = append(fields, "DatabaseRequired")
		}
	}
	if s&SigPackageOptional != 0 {
		fields = append(fields, "PackageOptional")
	}
	if s&SigDatabaseOptional != 0 {
		fields = append(fields, "DatabaseOptional")
	}
	if s&SigTrustAll != 0 {
		fields = append(fields, "TrustAll")
	}
	if len(fields) == 0 {
		return "Optional"
	}
	return strings.Join(fields, " ")
}
