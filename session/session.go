// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package session bundles the pieces a command-line front end needs:
// the active dictionary, the diagnostic bus, and the set of output
// drivers cases and messages are fanned out to. It replaces the
// process-global state spec.md's source relies on (a single message
// handler, a single active dataset) with an explicit value every
// command takes as an argument.
package session

import (
	"fmt"
	"io"
	"os"

	"github.com/UNO-SOFT/zlog"

	"github.com/lemenkov/pspp-sub019/dict"
	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/msg"
)

// Options configures a new Session's logging and quota behavior.
type Options struct {
	// LogWriter receives the structured session log; defaults to
	// os.Stderr.
	LogWriter io.Writer
	// Verbose raises the structured logger past its default level,
	// the way a CLI's -v flag would.
	Verbose bool
	// MaxErrors / MaxWarnings override msg.Bus's default quotas; <= 0
	// leaves the Bus default (msg.DefaultMaxErrors/DefaultMaxWarnings)
	// in place.
	MaxErrors   int
	MaxWarnings int
}

// Session is the live state one command-line invocation or one
// embedding program's worth of work shares: an active dictionary, a
// diagnostic bus wired to a structured logger, and zero or more
// output drivers receiving every submitted item.
type Session struct {
	Dict *dict.Dictionary
	Bus  *msg.Bus

	drivers []driver.Driver
}

// New returns a Session with an empty dictionary, a Bus wired to a
// zerolog-backed logr.Logger via UNO-SOFT/zlog, and no drivers
// attached yet.
func New(opts Options) *Session {
	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	zl := zlog.New(w)
	if opts.Verbose {
		zl.SetLevel(1)
	}

	bus := msg.New()
	bus.Logger = zl.Logr()
	if opts.MaxErrors > 0 {
		bus.SetMaxErrors(opts.MaxErrors)
	}
	if opts.MaxWarnings > 0 {
		bus.SetMaxWarnings(opts.MaxWarnings)
	}

	return &Session{Dict: dict.New(), Bus: bus}
}

// AddDriver attaches an output driver; every later Submit call fans
// out to every attached driver in attachment order.
func (s *Session) AddDriver(d driver.Driver) {
	s.drivers = append(s.drivers, d)
}

// Submit fans item out to every attached driver, stopping at (and
// returning) the first error. A driver that fails mid-fan-out leaves
// earlier drivers already having received the item, matching spec.md's
// observation that output delivery has no transactional rollback.
func (s *Session) Submit(item driver.Item) error {
	for i, d := range s.drivers {
		if err := d.Submit(item); err != nil {
			return fmt.Errorf("session: driver %d: %w", i, err)
		}
	}
	return nil
}

// SubmitMessage is a convenience wrapper around Submit for diagnostic
// messages emitted through s.Bus's handler, e.g. installed as
// bus.SetHandler(session.SubmitMessage, nil) by a caller that wants
// every diagnostic routed to the output drivers as well as logged.
func (s *Session) SubmitMessage(m *msg.Message) {
	if err := s.Submit(driver.NewMessageItem(m)); err != nil {
		s.Bus.Logger.Error(err, "session: failed to submit message item")
	}
}

// Flush forces every attached driver to flush buffered output without
// finalizing it.
func (s *Session) Flush() error {
	for i, d := range s.drivers {
		if err := d.Flush(); err != nil {
			return fmt.Errorf("session: driver %d: %w", i, err)
		}
	}
	return nil
}

// Close finalizes every attached driver in attachment order,
// collecting (but not stopping on) the first error so every driver
// still gets a chance to release its resources.
func (s *Session) Close() error {
	var firstErr error
	for i, d := range s.drivers {
		if err := d.Destroy(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("session: driver %d: %w", i, err)
		}
	}
	return firstErr
}
