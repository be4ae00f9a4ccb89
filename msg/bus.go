// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package msg

import (
	"fmt"
	"os"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-logr/logr"
)

// maxRecursionDepth bounds how deep a handler may re-enter Emit before
// the bus gives up on it and degrades to a flat stderr line.
const maxRecursionDepth = 4

// DefaultMaxErrors and DefaultMaxWarnings are SET MXERRS / SET MXWARNS
// defaults; 0 means "no limit".
const (
	DefaultMaxErrors   = 20
	DefaultMaxWarnings = 20
)

// Bus is the session-wide diagnostic sink. The zero value has no
// quotas and no handler; with no handler, delivered messages go to the
// stderr fallback. The zero value has no fatal logger, so Fatal needs
// a Bus made by New.
type Bus struct {
	mu sync.Mutex

	handler func(*Message)
	source  SourceAccessor

	disableDepth int

	maxErrors   int
	maxWarnings int
	warningsOff bool

	errorCount   int
	warningCount int
	noteCount    int

	tooManyErrors bool
	tooManyNotes  bool

	recursion []*Message

	// Logger is the structured session logger (zerolog, through the
	// logr facade). The bus itself writes nothing to it; the session
	// logs its own operational failures there. The content of user
	// messages never goes to Logger.
	Logger logr.Logger

	// fatal is a minimal, non-localized logger used solely for the
	// bug-report banner emitted on an assertion failure (§7 Fatal);
	// it is deliberately independent of Logger so a crash in the
	// structured-logging path can never swallow the banner.
	fatal kitlog.Logger
}

// New returns a Bus with the standard default quotas.
func New() *Bus {
	return &Bus{
		maxErrors:   DefaultMaxErrors,
		maxWarnings: DefaultMaxWarnings,
		Logger:      logr.Discard(),
		fatal:       kitlog.NewLogfmtLogger(os.Stderr),
	}
}

// SetHandler installs the delivery function and the optional source
// accessor used for snippet rendering. With a nil handler, delivered
// messages go to the stderr fallback instead.
func (b *Bus) SetHandler(handler func(*Message), source SourceAccessor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
	b.source = source
}

// SetMaxErrors / SetMaxWarnings configure SET MXERRS / SET MXWARNS. A
// value <= 0 means unlimited.
func (b *Bus) SetMaxErrors(n int)   { b.mu.Lock(); b.maxErrors = n; b.mu.Unlock() }
func (b *Bus) SetMaxWarnings(n int) { b.mu.Lock(); b.maxWarnings = n; b.mu.Unlock() }

// SetWarningsOff gates all warning-severity messages when on.
func (b *Bus) SetWarningsOff(off bool) { b.mu.Lock(); b.warningsOff = off; b.mu.Unlock() }

// Disable suppresses delivery (but not quota counting) until a
// matching Enable; nesting is required, i.e. Disable;Disable;Enable
// leaves the bus still disabled.
func (b *Bus) Disable() { b.mu.Lock(); b.disableDepth++; b.mu.Unlock() }

// Enable reverses one Disable. Calling Enable more times than Disable
// is a programmer error and is clamped at zero rather than going
// negative.
func (b *Bus) Enable() {
	b.mu.Lock()
	if b.disableDepth > 0 {
		b.disableDepth--
	}
	b.mu.Unlock()
}

// UITooManyErrors is the signal the syntax loop polls to stop reading
// more commands.
func (b *Bus) UITooManyErrors() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tooManyErrors
}

// Emit takes ownership of m, applies severity quotas, and delivers it
// to the handler unless disabled, recursing, or gated by warnings-off.
func (b *Bus) Emit(m *Message) {
	b.mu.Lock()
	if b.warningsOff && m.Severity == Warning {
		b.mu.Unlock()
		return
	}

	// suppressed is set once a quota has already tripped: the message
	// that crosses the limit is replaced by the synthetic note (never
	// delivered itself), and every later one of that severity is
	// dropped outright.
	var suppressed, synthesize bool
	var synthetic *Message
	switch m.Severity {
	case Error:
		b.errorCount++
		if b.maxErrors > 0 && b.errorCount > b.maxErrors {
			suppressed = true
			if !b.tooManyErrors {
				b.tooManyErrors = true
				synthesize = true
				synthetic = &Message{
					Category: General,
					Severity: Note,
					Text: fmt.Sprintf("Errors (%d) exceed limit (%d). Syntax processing will be halted.",
						b.errorCount, b.maxErrors),
				}
			}
		}
	case Warning:
		b.warningCount++
	case Note:
		b.noteCount++
		if b.maxWarnings > 0 && b.noteCount > b.maxWarnings {
			suppressed = true
			if !b.tooManyNotes {
				b.tooManyNotes = true
				synthesize = true
				synthetic = &Message{
					Category: General,
					Severity: Note,
					Text: fmt.Sprintf("Notes (%d) exceed limit (%d). Syntax processing will be halted.",
						b.noteCount, b.maxWarnings),
				}
			}
		}
	}
	b.mu.Unlock()

	if !suppressed {
		b.deliver(m)
	}
	if synthesize {
		b.deliver(synthetic)
	}
}

// deliver runs the recursion guard and hands m to the handler, or to
// the stderr fallback if there is no handler or the recursion is too
// deep; while the bus is disabled, m is dropped.
func (b *Bus) deliver(m *Message) {
	b.mu.Lock()
	if b.disableDepth > 0 {
		b.mu.Unlock()
		return
	}
	for _, onStack := range b.recursion {
		if onStack == m {
			// Direct self-recursion: the handler re-emitted the exact
			// message object it is currently processing.
			b.mu.Unlock()
			b.fallback(m)
			return
		}
	}
	if len(b.recursion) >= maxRecursionDepth {
		b.mu.Unlock()
		b.fallback(m)
		return
	}
	b.recursion = append(b.recursion, m)
	handler := b.handler
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.recursion = b.recursion[:len(b.recursion)-1]
		b.mu.Unlock()
	}()

	if handler == nil {
		b.fallback(m)
		return
	}
	handler(m)
}

// fallback renders m to a single stderr line without localization,
// used when no handler is installed or the bus degrades due to
// recursion.
func (b *Bus) fallback(m *Message) {
	b.mu.Lock()
	src := b.source
	b.mu.Unlock()
	fmt.Fprintln(os.Stderr, m.Render(src))
}

// Fatal emits the bug-report banner for an unrecoverable assertion
// failure and, unlike Emit, bypasses quotas entirely: a fatal
// condition is reported exactly once, on the crash-safe logger, and
// the caller is expected to terminate the process after this returns.
func (b *Bus) Fatal(text string) {
	b.fatal.Log("level", "fatal", "msg", "pspp: internal error: "+text,
		"hint", "please report this as a bug")
}

// Counts returns the current per-severity totals.
func (b *Bus) Counts() (errors, warnings, notes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errorCount, b.warningCount, b.noteCount
}
