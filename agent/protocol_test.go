// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pacwrap/pacwrap/liberror"
	"github.com/pacwrap/pacwrap/pkgdb"
)

func sampleParams() *Params {
	return &Params{
		Container: "editor",
		Mode:      Synchronize,
		Flags:     FlagNoConfirm | FlagFilesystemSync,
		Repositories: []pkgdb.Repository{
			{Name: "core", Servers: []string{"https://mirror/core"}, SigLevel: pkgdb.SigLevelDefault},
		},
		SigLevel: pkgdb.SigLevelDefault,
		Mounts: []Mount{
			{Source: "/data/container/editor/root", Dest: "/mnt/fs", Writable: true},
			{Source: "/cache/pkg", Dest: "/mnt/cache", Writable: true},
		},
		Resident:              []string{"neovim"},
		Foreign:               []string{"gtk3"},
		Environment:           map[string]string{"LANG": "en_US.UTF-8"},
		DownloadRetries:       3,
		DownloadBackoffMillis: 500,
		Nonce:                 NewNonce(),
	}
}

func TestParamsRoundTrip(t *testing.T) {
	t.Parallel()

	want := sampleParams()
	var buf bytes.Buffer
	if err := WriteParams(&buf, want); err != nil {
		t.Fatalf("WriteParams: %v", err)
	}

	got, err := ReadParams(&buf)
	if err != nil {
		t.Fatalf("ReadParams: %v", err)
	}
	if got.Container != want.Container || got.Mode != want.Mode || got.Flags != want.Flags {
		t.Errorf("core fields: %+v", got)
	}
	if len(got.Repositories) != 1 || got.Repositories[0].Name != "core" {
		t.Errorf("Repositories = %+v", got.Repositories)
	}
	if len(got.Resident) != 1 || got.Resident[0] != "neovim" {
		t.Errorf("Resident = %v", got.Resident)
	}
	if len(got.Foreign) != 1 || got.Foreign[0] != "gtk3" {
		t.Errorf("Foreign = %v", got.Foreign)
	}
	if got.Nonce != want.Nonce {
		t.Error("nonce did not survive the round trip")
	}
	if err := got.VerifyNonce(want.Nonce); err != nil {
		t.Errorf("VerifyNonce: %v", err)
	}
}

func TestReadParamsBadMagic(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteParams(&buf, sampleParams()); err != nil {
		t.Fatalf("WriteParams: %v", err)
	}
	raw := buf.Bytes()
	binary.LittleEndian.PutUint32(raw[0:4], 0xDEADBEEF)

	_, err := ReadParams(bytes.NewReader(raw))
	if !liberror.IsKind(err, liberror.AgentBadHandshake) {
		t.Fatalf("err = %v, want AgentBadHandshake", err)
	}
}

func TestReadParamsBadVersion(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteParams(&buf, sampleParams()); err != nil {
		t.Fatalf("WriteParams: %v", err)
	}
	raw := buf.Bytes()
	binary.LittleEndian.PutUint16(raw[4:6], ProtocolVersion+1)

	_, err := ReadParams(bytes.NewReader(raw))
	if !liberror.IsKind(err, liberror.AgentBadHandshake) {
		t.Fatalf("err = %v, want AgentBadHandshake", err)
	}
}

func TestReadParamsTruncatedPayload(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteParams(&buf, sampleParams()); err != nil {
		t.Fatalf("WriteParams: %v", err)
	}
	raw := buf.Bytes()[:buf.Len()-7]

	_, err := ReadParams(bytes.NewReader(raw))
	if !liberror.IsKind(err, liberror.AgentBadHandshake) {
		t.Fatalf("err = %v, want AgentBadHandshake", err)
	}
}

func TestVerifyNonceMismatch(t *testing.T) {
	t.Parallel()

	params := sampleParams()
	other := NewNonce()
	if err := params.VerifyNonce(other); !liberror.IsKind(err, liberror.AgentBadHandshake) {
		t.Fatalf("VerifyNonce = %v, want AgentBadHandshake", err)
	}
}

func TestWithinMounts(t *testing.T) {
	t.Parallel()

	params := sampleParams()
	if !params.WithinMounts("/mnt/fs/usr/bin/nvim") {
		t.Error("path under mount rejected")
	}
	if !params.WithinMounts("/mnt/fs") {
		t.Error("mount root rejected")
	}
	if params.WithinMounts("/mnt/fsx") {
		t.Error("sibling prefix accepted")
	}
	if params.WithinMounts("/etc/passwd") {
		t.Error("path outside mounts accepted")
	}
}

func TestEventStreamRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := NewEventWriter(&buf)
	if err := writer.Send(TagDownloadStart, DownloadStart{Package: "neovim", Bytes: 1 << 20}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := writer.Send(TagDownloadProgress, DownloadProgress{Package: "neovim", Delta: 65536}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := writer.Send(TagInstallStart, InstallStart{Package: "neovim"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := writer.Send(TagSummary, Summary{Added: 1, NetBytes: 1 << 22}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := writer.Finish(DoneOk, 0); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var tags []byte
	done, err := Drain(&buf, func(event Event) error {
		tags = append(tags, event.Tag)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if done.Status != DoneOk {
		t.Errorf("Done = %+v", done)
	}
	want := []byte{TagDownloadStart, TagDownloadProgress, TagInstallStart, TagSummary}
	if !bytes.Equal(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestDrainTruncatedStream(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := NewEventWriter(&buf)
	if err := writer.Send(TagWarning, Warning{Message: "mirror slow"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// Stream ends without Done.
	_, err := Drain(&buf, nil)
	if !liberror.IsKind(err, liberror.AgentProtocolTruncated) {
		t.Fatalf("Drain = %v, want AgentProtocolTruncated", err)
	}
}

func TestDrainMidFrameTruncation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := NewEventWriter(&buf)
	if err := writer.Send(TagWarning, Warning{Message: "about to vanish"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	raw := buf.Bytes()[:buf.Len()-3]

	_, err := Drain(bytes.NewReader(raw), nil)
	if !liberror.IsKind(err, liberror.AgentProtocolTruncated) {
		t.Fatalf("Drain = %v, want AgentProtocolTruncated", err)
	}
}

func TestDrainStopsAtDone(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := NewEventWriter(&buf)
	if err := writer.Finish(DoneErr, liberror.AgentCancelled); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	// Garbage after Done must never be read.
	buf.WriteString("trailing garbage")

	done, err := Drain(&buf, nil)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if done.Status != DoneErr || liberror.Kind(done.Kind) != liberror.AgentCancelled {
		t.Errorf("Done = %+v", done)
	}
	if buf.Len() != len("trailing garbage") {
		t.Error("Drain consumed bytes past the Done frame")
	}
}

func TestSendAfterDonePanics(t *testing.T) {
	t.Parallel()

	writer := NewEventWriter(&bytes.Buffer{})
	if err := writer.Finish(DoneOk, 0); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("Send after Done did not panic")
		}
	}()
	writer.Send(TagWarning, Warning{Message: "late"})
}

func TestDoneError(t *testing.T) {
	t.Parallel()

	if err := DoneError("editor", Done{Status: DoneOk}); err != nil {
		t.Errorf("DoneError(ok) = %v", err)
	}
	err := DoneError("editor", Done{Status: DoneErr, Kind: int(liberror.AgentCancelled)})
	if !liberror.IsKind(err, liberror.AgentCancelled) {
		t.Errorf("DoneError = %v, want AgentCancelled", err)
	}
	// Unknown kinds collapse to AgentPackage.
	err = DoneError("editor", Done{Status: DoneErr, Kind: 9999})
	if !liberror.IsKind(err, liberror.AgentPackage) {
		t.Errorf("DoneError(unknown) = %v, want AgentPackage", err)
	}
}
