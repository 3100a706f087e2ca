// Package lex provides a small state-function based lexer, in the style
// popularized by Rob Pike's "Lexical Scanning in Go" talk. It knows nothing
// about any particular grammar; callers supply a StateFn that drives the
// scan and Emit tokens as they are recognized.
package lex

import (
	"io"
	"unicode"
)

// Pos is a byte offset into the input.
type Pos int

// Type identifies the type of a lexed Item. Consumers define their own
// token types starting at a value greater than EOF.
type Type int

// EOF is emitted once, after which the lexer keeps re-emitting it.
const EOF Type = -1

// Item is a lexed token: its Type, its decoded Value (meaning is
// type-specific: a string, an int, etc.) and the Pos where it started.
type Item struct {
	Type  Type
	Value interface{}
	Pos   Pos
}

// String returns a human readable representation of the item, used in
// error messages.
func (i Item) String() string {
	switch i.Type {
	case EOF:
		return "end of input"
	default:
		if s, ok := i.Value.(string); ok {
			return s
		}
		return "token"
	}
}

// StateFn represents a state in the lexer as a function that scans the
// next token (emitting zero or more items) and returns the state to use
// for the following call, or nil to go back to the initial state. Text
// scanned but not emitted when a state returns nil is discarded, which is
// how whitespace and comments are skipped.
type StateFn func(*Lexer) StateFn

// Interface is what parsers consume: a stream of lexed items.
type Interface interface {
	Lex() Item
}

// Lexer scans runes out of an input reader and emits Items on an internal
// queue that Lex drains one at a time.
type Lexer struct {
	input   []rune
	pos     int // scan position, in runes
	start   int // start of the current token, in runes
	cur     rune
	init    StateFn
	state   StateFn
	items   []Item
}

// New returns a lexer over the full contents of r, driven from the given
// initial state function.
func New(r io.RuneReader, init StateFn) *Lexer {
	var rs []rune
	for {
		c, _, err := r.ReadRune()
		if err != nil {
			break
		}
		rs = append(rs, c)
	}
	return &Lexer{input: rs, init: init}
}

// NewFromString is a convenience wrapper for scanning an in-memory string.
func NewFromString(s string, init StateFn) *Lexer {
	return &Lexer{input: []rune(s), init: init}
}

// Next returns the next rune in the input and advances the scan position.
// It returns -1 once the input is exhausted, without advancing.
func (l *Lexer) Next() rune {
	if l.pos >= len(l.input) {
		l.cur = rEOF
		return rEOF
	}
	l.cur = l.input[l.pos]
	l.pos++
	return l.cur
}

// Backup steps the scan position back by one rune. It can only be called
// once per call to Next. After a Next that hit the end of input it does
// nothing, since that Next did not advance.
func (l *Lexer) Backup() {
	if l.cur != rEOF && l.pos > l.start {
		l.pos--
	}
}

// Peek returns the next rune without consuming it.
func (l *Lexer) Peek() rune {
	r := l.Next()
	l.Backup()
	return r
}

// Current returns the rune last returned by Next.
func (l *Lexer) Current() rune {
	return l.cur
}

// AcceptWhile advances the scan position while f(rune) is true, returning
// the number of runes accepted.
func (l *Lexer) AcceptWhile(f func(rune) bool) int {
	n := 0
	for {
		r := l.Next()
		if r == rEOF || !f(r) {
			l.Backup()
			return n
		}
		n++
	}
}

// Slice returns the runes of the input scanned since the last Emit (or
// since skipped text was discarded), as a string, without consuming them.
func (l *Lexer) Slice() string {
	return string(l.input[l.start:l.pos])
}

// Emit queues an item of the given type. value may be nil, in which case
// the text returned by Slice is used (as a string).
func (l *Lexer) Emit(t Type, value interface{}) {
	if value == nil {
		value = l.Slice()
	}
	l.items = append(l.items, Item{Type: t, Value: value, Pos: Pos(l.start)})
	l.start = l.pos
}

// Lex returns the next lexed item, running the state machine until an item
// becomes available.
func (l *Lexer) Lex() Item {
	for len(l.items) == 0 {
		if l.state == nil {
			l.state = l.init
		}
		next := l.state(l)
		if next != nil {
			l.state = next
		} else {
			l.state = nil
			if len(l.items) == 0 {
				l.start = l.pos // nothing emitted: discard the skipped text
			}
		}
	}
	i := l.items[0]
	l.items = l.items[1:]
	return i
}

const rEOF = rune(-1)

// IsSpace reports whether r is an ASCII/Unicode space character. Provided
// as a convenience so callers don't need to import unicode directly for
// the common case.
func IsSpace(r rune) bool { return unicode.IsSpace(r) }
