// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/pacwrap/pacwrap/lib/codec"
	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/pkgdb"
)

// Magic identifies a pacwrap parameter blob.
const Magic uint32 = 663445956

// ProtocolVersion is the parameter payload layout version. The agent
// rejects any other version: driver and agent binaries ship together
// and must not mix.
const ProtocolVersion uint16 = 2

// headerLength is magic (4) + version (2) + payload length (4).
const headerLength = 10

// maxParamsLength bounds the parameter payload. Repository lists and
// mount plans are small; anything larger is a corrupt header.
const maxParamsLength = 4 * 1024 * 1024

// ParamFdEnv and EventFdEnv carry the inherited descriptor numbers
// into the agent.
const (
	ParamFdEnv = "PACWRAP_PARAM_FD"
	EventFdEnv = "PACWRAP_EVENT_FD"
)

// Mode is the transaction mode.
type Mode int

const (
	Synchronize Mode = iota
	Upgrade
	Remove
	DatabaseOnly
	FilesystemOnly
)

var modeNames = [...]string{
	Synchronize:    "synchronize",
	Upgrade:        "upgrade",
	Remove:         "remove",
	DatabaseOnly:   "database-only",
	FilesystemOnly: "filesystem-only",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Flags is the transaction flag bitmap carried to the agent.
type Flags uint16

const (
	FlagPreview Flags = 1 << iota
	FlagNoConfirm
	FlagForceForeign
	FlagLazyLoad
	FlagDisableSandbox
	FlagTargetOnly
	FlagForceDatabase
	FlagCreate
	FlagFilesystemSync
	FlagRefresh
)

// Has reports whether all given flags are set.
func (f Flags) Has(flags Flags) bool {
	return f&flags == flags
}

// Mount is one entry of the agent's mount plan. The agent refuses to
// touch any path outside the declared destinations.
type Mount struct {
	// Source is the host path.
	Source string `cbor:"source"`

	// Dest is the in-namespace destination.
	Dest string `cbor:"dest"`

	// Writable marks the bind read-write.
	Writable bool `cbor:"writable,omitempty"`
}

// Params is the parameter payload. It carries everything the agent
// needs: the driver never trusts the container environment to supply
// configuration.
type Params struct {
	// Container is the container the agent operates on.
	Container string `cbor:"container"`

	// Mode is the transaction mode.
	Mode Mode `cbor:"mode"`

	// Flags is the transaction flag bitmap.
	Flags Flags `cbor:"flags"`

	// Repositories are the enabled sync repositories.
	Repositories []pkgdb.Repository `cbor:"repos"`

	// SigLevel is the local database signature policy.
	SigLevel pkgdb.SigLevel `cbor:"sigpolicy"`

	// Mounts is the mount plan the sandbox was built from.
	Mounts []Mount `cbor:"mount_plan"`

	// Resident and Foreign are the classified target lists.
	Resident []string `cbor:"resident"`
	Foreign  []string `cbor:"foreign"`

	// Environment is the allowlisted environment forwarded into the
	// container.
	Environment map[string]string `cbor:"environment,omitempty"`

	// Seccomp tells the agent to install the syscall filter before
	// touching the package database.
	Seccomp bool `cbor:"seccomp"`

	// DownloadRetries and DownloadBackoffMillis are the retry policy
	// for the commit stage: the whole commit is retried, not each
	// package on its own.
	DownloadRetries       int `cbor:"download_retries"`
	DownloadBackoffMillis int `cbor:"download_backoff_ms"`

	// Nonce ties an agent invocation to the driver that launched it.
	Nonce [16]byte `cbor:"nonce"`
}

// NewNonce returns a fresh handshake nonce.
func NewNonce() [16]byte {
	return [16]byte(uuid.New())
}

// WriteParams writes the header and payload to w.
func WriteParams(w io.Writer, params *Params) error {
	payload, err := codec.Marshal(params)
	if err != nil {
		return liberror.Wrap(liberror.Internal, err, "encoding agent parameters")
	}
	if len(payload) > maxParamsLength {
		return liberror.New(liberror.Internal, "agent parameters exceed %d bytes", maxParamsLength)
	}

	var header [headerLength]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint16(header[4:6], ProtocolVersion)
	binary.LittleEndian.PutUint32(header[6:10], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return liberror.Wrap(liberror.IO, err, "writing parameter header")
	}
	if _, err := w.Write(payload); err != nil {
		return liberror.Wrap(liberror.IO, err, "writing parameter payload")
	}
	return nil
}

// ReadParams reads and validates a parameter blob from r. Magic or
// version mismatch is a handshake failure, as is a malformed payload.
func ReadParams(r io.Reader) (*Params, error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, liberror.Wrap(liberror.AgentBadHandshake, err, "reading parameter header")
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != Magic {
		return nil, liberror.New(liberror.AgentBadHandshake, "bad magic %#x, want %#x", magic, Magic)
	}
	version := binary.LittleEndian.Uint16(header[4:6])
	if version != ProtocolVersion {
		return nil, liberror.New(liberror.AgentBadHandshake, "protocol version %d, want %d", version, ProtocolVersion)
	}
	length := binary.LittleEndian.Uint32(header[6:10])
	if length > maxParamsLength {
		return nil, liberror.New(liberror.AgentBadHandshake, "parameter payload %d bytes exceeds limit", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, liberror.Wrap(liberror.AgentBadHandshake, err, "reading parameter payload")
	}
	var params Params
	if err := codec.Unmarshal(payload, &params); err != nil {
		return nil, liberror.Wrap(liberror.AgentBadHandshake, err, "decoding parameter payload")
	}
	return &params, nil
}

// VerifyNonce compares the payload nonce against the expected value
// in constant time.
func (p *Params) VerifyNonce(expected [16]byte) error {
	if subtle.ConstantTimeCompare(p.Nonce[:], expected[:]) != 1 {
		return liberror.New(liberror.AgentBadHandshake, "nonce mismatch").In(p.Container)
	}
	return nil
}

// WithinMounts reports whether path falls under one of the declared
// mount destinations.
func (p *Params) WithinMounts(path string) bool {
	for _, mount := range p.Mounts {
		if path == mount.Dest || strings.HasPrefix(path, mount.Dest+"/") {
			return true
		}
	}
	return false
}
