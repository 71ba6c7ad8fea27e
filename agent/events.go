// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pacwrap/pacwrap/lib/codec"
	"github.com/pacwrap/pacwrap/liberror"
)

// Event tag constants. Each frame is a 5-byte header (1 byte tag +
// 4 byte big-endian payload length) followed by a CBOR payload.
const (
	// TagDownloadStart announces one package download with its total
	// size in bytes.
	TagDownloadStart byte = 0x01

	// TagDownloadProgress reports bytes received since the previous
	// progress event for the same package.
	TagDownloadProgress byte = 0x02

	// TagInstallStart announces installation of one package.
	TagInstallStart byte = 0x03

	// TagHook reports an install hook entering or leaving a phase.
	TagHook byte = 0x04

	// TagWarning carries a non-fatal diagnostic for the renderer.
	TagWarning byte = 0x05

	// TagError carries a fatal diagnostic. The agent still sends Done
	// afterwards; Error alone never terminates the stream.
	TagError byte = 0x06

	// TagSummary reports the transaction's net effect.
	TagSummary byte = 0x07

	// TagDone terminates the stream. Exactly one per agent run.
	TagDone byte = 0x08
)

// eventHeaderLength is the fixed frame header size.
const eventHeaderLength = 5

// maxEventLength bounds one event payload. Events carry names and
// counters; 1 MiB is far beyond anything legitimate.
const maxEventLength = 1 << 20

// Event is one decoded frame.
type Event struct {
	Tag     byte
	Payload []byte
}

// DownloadStart is the payload of TagDownloadStart.
type DownloadStart struct {
	Package string `cbor:"pkg"`
	Bytes   int64  `cbor:"size"`
}

// DownloadProgress is the payload of TagDownloadProgress.
type DownloadProgress struct {
	Package string `cbor:"pkg"`
	Delta   int64  `cbor:"delta"`
}

// InstallStart is the payload of TagInstallStart.
type InstallStart struct {
	Package string `cbor:"pkg"`
	Foreign bool   `cbor:"foreign,omitempty"`
}

// Hook is the payload of TagHook.
type Hook struct {
	Name  string `cbor:"name"`
	Phase string `cbor:"phase"`
}

// Warning is the payload of TagWarning.
type Warning struct {
	Message string `cbor:"msg"`
}

// ErrorEvent is the payload of TagError. Kind mirrors the liberror
// kind so the driver reconstructs taxonomy errors across the wire.
type ErrorEvent struct {
	Kind    int    `cbor:"kind"`
	Message string `cbor:"msg"`
}

// Summary is the payload of TagSummary.
type Summary struct {
	Added    int   `cbor:"added"`
	Removed  int   `cbor:"removed"`
	NetBytes int64 `cbor:"net_bytes"`
}

// DoneStatus is the terminal status of an agent run.
type DoneStatus int

const (
	DoneOk DoneStatus = iota
	DoneErr
)

// Done is the payload of TagDone.
type Done struct {
	Status DoneStatus `cbor:"status"`

	// Kind is the liberror kind of the failure when Status is
	// DoneErr.
	Kind int `cbor:"kind,omitempty"`
}

// EventWriter frames events onto a stream. Not safe for concurrent
// writers; the agent emits from a single goroutine.
type EventWriter struct {
	w    io.Writer
	done bool
}

// NewEventWriter returns a writer over w.
func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{w: w}
}

// Send frames one event. Sending after Done is a programming error
// and panics: the contract is exactly one terminal frame.
func (e *EventWriter) Send(tag byte, payload any) error {
	if e.done {
		panic("agent: event sent after Done")
	}
	encoded, err := codec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event %#x: %w", tag, err)
	}
	var header [eventHeaderLength]byte
	header[0] = tag
	binary.BigEndian.PutUint32(header[1:5], uint32(len(encoded)))
	if _, err := e.w.Write(header[:]); err != nil {
		return fmt.Errorf("writing event header: %w", err)
	}
	if _, err := e.w.Write(encoded); err != nil {
		return fmt.Errorf("writing event payload: %w", err)
	}
	if tag == TagDone {
		e.done = true
	}
	return nil
}

// Finish sends the terminal Done frame.
func (e *EventWriter) Finish(status DoneStatus, kind liberror.Kind) error {
	return e.Send(TagDone, Done{Status: status, Kind: int(kind)})
}

// ReadEvent reads one frame from r. io.EOF is returned unwrapped at a
// clean frame boundary so callers can distinguish truncation.
func ReadEvent(r io.Reader) (Event, error) {
	var header [eventHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, liberror.Wrap(liberror.AgentProtocolTruncated, err, "reading event header")
	}
	length := binary.BigEndian.Uint32(header[1:5])
	if length > maxEventLength {
		return Event{}, liberror.New(liberror.AgentProtocolTruncated, "event payload %d bytes exceeds limit", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Event{}, liberror.Wrap(liberror.AgentProtocolTruncated, err, "reading event payload")
	}
	return Event{Tag: header[0], Payload: payload}, nil
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	return codec.Unmarshal(e.Payload, out)
}

// Drain consumes events from r until Done, forwarding each to
// handle. It returns the Done payload. A stream that ends without
// Done is protocol truncation. Reading stops at the Done frame, so
// the caller never observes bytes past it.
func Drain(r io.Reader, handle func(Event) error) (Done, error) {
	for {
		event, err := ReadEvent(r)
		if errors.Is(err, io.EOF) {
			return Done{}, liberror.New(liberror.AgentProtocolTruncated, "event stream ended without Done")
		}
		if err != nil {
			return Done{}, err
		}
		if event.Tag == TagDone {
			var done Done
			if err := event.Decode(&done); err != nil {
				return Done{}, liberror.Wrap(liberror.AgentProtocolTruncated, err, "decoding Done frame")
			}
			return done, nil
		}
		if handle != nil {
			if err := handle(event); err != nil {
				return Done{}, err
			}
		}
	}
}
