// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/pacwrap/pacwrap/agent"
)

// Renderer is the single consumer of all agent event streams. One
// goroutine drains the channel; producers block only when the
// terminal is slower than the fleet, which is the natural
// backpressure the protocol expects.
type Renderer struct {
	out   io.Writer
	style ProgressStyle

	events chan taggedEvent
	done   chan struct{}

	// The maps below are touched only by the renderer goroutine.
	received map[string]int64 // pkg -> bytes received
	totals   map[string]int64 // pkg -> download size
	foreign  map[string]bool  // pkg -> foreign class
}

type taggedEvent struct {
	container string
	event     agent.Event
}

// NewRenderer starts a renderer writing to out.
func NewRenderer(out io.Writer, style ProgressStyle) *Renderer {
	r := &Renderer{
		out:      out,
		style:    style,
		events:   make(chan taggedEvent, 64),
		done:     make(chan struct{}),
		received: make(map[string]int64),
		totals:   make(map[string]int64),
		foreign:  make(map[string]bool),
	}
	go r.loop()
	return r
}

// Event implements the transaction event sink. Safe for concurrent
// producers.
func (r *Renderer) Event(container string, event agent.Event) {
	select {
	case r.events <- taggedEvent{container: container, event: event}:
	case <-r.done:
	}
}

// Close stops the renderer after draining queued events.
func (r *Renderer) Close() {
	close(r.events)
	<-r.done
}

func (r *Renderer) loop() {
	defer close(r.done)
	for tagged := range r.events {
		r.render(tagged.container, tagged.event)
	}
}

func (r *Renderer) render(container string, event agent.Event) {
	switch event.Tag {
	case agent.TagDownloadStart:
		var start agent.DownloadStart
		if event.Decode(&start) != nil {
			return
		}
		r.totals[key(container, start.Package)] = start.Bytes
		if r.effectiveStyle(container, start.Package) == ProgressVerbose {
			r.line(container, "downloading %s (%s)", start.Package, humanize.IBytes(uint64(start.Bytes)))
		}

	case agent.TagDownloadProgress:
		var progress agent.DownloadProgress
		if event.Decode(&progress) != nil {
			return
		}
		k := key(container, progress.Package)
		r.received[k] += progress.Delta
		style := r.effectiveStyle(container, progress.Package)
		switch style {
		case ProgressVerbose:
			r.line(container, "%s: %s / %s", progress.Package,
				humanize.IBytes(uint64(r.received[k])), humanize.IBytes(uint64(r.totals[k])))
		case ProgressBasic:
			// Basic reports only completion.
			if total := r.totals[k]; total > 0 && r.received[k] >= total {
				r.line(container, "downloaded %s", progress.Package)
			}
		default:
			// Condensed variants report completion with the size.
			if total := r.totals[k]; total > 0 && r.received[k] >= total {
				r.line(container, "downloaded %s (%s)", progress.Package, humanize.IBytes(uint64(total)))
			}
		}

	case agent.TagInstallStart:
		var install agent.InstallStart
		if event.Decode(&install) != nil {
			return
		}
		r.foreign[key(container, install.Package)] = install.Foreign
		if install.Foreign {
			r.line(container, "installing %s %s", install.Package, styleDim.Render("(foreign)"))
		} else {
			r.line(container, "installing %s", install.Package)
		}

	case agent.TagHook:
		var hook agent.Hook
		if event.Decode(&hook) != nil {
			return
		}
		if r.style == ProgressVerbose {
			r.line(container, "hook %s: %s", hook.Name, hook.Phase)
		}

	case agent.TagWarning:
		var warning agent.Warning
		if event.Decode(&warning) != nil {
			return
		}
		r.line(container, "%s %s", styleWarn.Render("warning:"), warning.Message)

	case agent.TagError:
		var errEvent agent.ErrorEvent
		if event.Decode(&errEvent) != nil {
			return
		}
		r.line(container, "%s %s", styleErr.Render("error:"), errEvent.Message)

	case agent.TagSummary:
		var summary agent.Summary
		if event.Decode(&summary) != nil {
			return
		}
		r.line(container, "%s +%d -%d (%s)", styleOk.Render("complete:"),
			summary.Added, summary.Removed, humanize.IBytes(uint64(max64(summary.NetBytes, 0))))
	}
}

// effectiveStyle resolves the per-class style split of the
// *Foreign/*Local variants.
func (r *Renderer) effectiveStyle(container, pkg string) ProgressStyle {
	foreign := r.foreign[key(container, pkg)]
	switch r.style {
	case ProgressCondensedForeign:
		if foreign {
			return ProgressCondensed
		}
		return ProgressBasic
	case ProgressCondensedLocal:
		if foreign {
			return ProgressBasic
		}
		return ProgressCondensed
	default:
		return r.style
	}
}

// line writes one output line. Write errors (closed stdout) are
// dropped: rendering must never fail a transaction.
func (r *Renderer) line(container, format string, args ...any) {
	prefix := styleContainer.Render(container)
	fmt.Fprintf(r.out, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

func key(container, pkg string) string {
	return container + "\x00" + pkg
}

func max64(value, floor int64) int64 {
	if value < floor {
		return floor
	}
	return value
}
