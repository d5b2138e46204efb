// Package except implements chained error objects and per-task propagation
// contexts.
//
// An Error carries a symbolic id, a formatted message and an optional cause,
// forming a singly linked cause chain from a symptom back to its root. Errors
// are plain Go errors: they are returned, wrapped and inspected with the
// standard errors helpers. A Context adds an opt-in non-local transfer on top
// of that for callers that prefer to raise errors to an enclosing handler.
package except

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// IDForeign is the id given to chain links adopted from errors that were not
// created by this package.
const IDForeign = "except.foreign"

// Error is a link in a cause chain.
type Error struct {
	id      string
	msg     string
	cause   *Error
	foreign error
	freed   bool
}

// New returns an error without a cause. The message is formatted with args.
func New(id, format string, args ...interface{}) *Error {
	return &Error{id: id, msg: sprintf(format, args)}
}

// NewCause returns an error wrapping cause. Ownership of cause moves to the
// returned error, so it is released together with it by Free.
func NewCause(cause error, id, format string, args ...interface{}) *Error {
	e := New(id, format, args...)
	e.cause = adopt(cause)
	return e
}

// From converts err into an *Error, adopting it as a foreign link when
// necessary. A nil err yields nil.
func From(err error) *Error {
	return adopt(err)
}

func adopt(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{id: IDForeign, msg: err.Error(), foreign: err}
}

func sprintf(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// ID returns the symbolic id.
func (e *Error) ID() string {
	return e.id
}

// Message returns the formatted message.
func (e *Error) Message() string {
	return e.msg
}

// Cause returns the direct cause, or nil. The cause is still owned by e.
func (e *Error) Cause() *Error {
	return e.cause
}

// Root returns the deepest link of the chain.
func (e *Error) Root() *Error {
	for e.cause != nil {
		e = e.cause
	}
	return e
}

// Chain returns every link, starting with e.
func (e *Error) Chain() []*Error {
	var links []*Error
	for link := e; link != nil; link = link.cause {
		links = append(links, link)
	}
	return links
}

// Free releases e and its whole cause chain and reports how many links were
// released. Freeing nil, or an already freed error, releases nothing.
func (e *Error) Free() int {
	if e == nil || e.freed {
		return 0
	}
	n := 1 + e.cause.Free()
	e.cause = nil
	e.foreign = nil
	e.msg = ""
	e.freed = true
	return n
}

func (e *Error) Error() string {
	var sb strings.Builder
	for link := e; link != nil; link = link.cause {
		if link != e {
			sb.WriteString(": ")
		}
		if link.id == IDForeign {
			sb.WriteString(link.msg)
			continue
		}
		sb.WriteString(link.id)
		if link.msg != "" {
			sb.WriteString(": ")
			sb.WriteString(link.msg)
		}
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.foreign
}

// Is reports whether target is an *Error with the same id.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.id == e.id && t.id != IDForeign
}

// Format prints the single-line form for %v and %s, and one link per line
// for %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch {
	case verb == 'v' && s.Flag('+'):
		for i, link := range e.Chain() {
			if i > 0 {
				io.WriteString(s, "\ncaused by: ")
			}
			fmt.Fprintf(s, "[%s] %s", link.id, link.msg)
		}
	case verb == 'q':
		fmt.Fprintf(s, "%q", e.Error())
	default:
		io.WriteString(s, e.Error())
	}
}

// HasID reports whether any *Error in err's chain has the given id.
func HasID(err error, id string) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.id == id {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
