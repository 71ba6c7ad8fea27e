// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"regexp"

	"github.com/pacwrap/pacwrap/liberror"
)

// idPattern is the container identifier grammar. The first character
// excludes the punctuation set so identifiers can never start with
// "." or "-", which keeps them safe as directory names and flag
// arguments.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.+-]{0,63}$`)

// ParseID validates a container identifier. Identifiers are
// case-sensitive and name all on-disk state for the container.
func ParseID(id string) (string, error) {
	if !idPattern.MatchString(id) {
		return "", liberror.New(liberror.Plan, "invalid container id %q", id)
	}
	return id, nil
}

// ValidID reports whether id is a well-formed container identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
