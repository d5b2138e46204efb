package except

import (
	"context"
	"log/slog"
	"os"
)

// IDFatal is the id logged when an error is thrown with no enclosing Try.
const IDFatal = "except.fatal"

type marker struct {
	except *Error
}

// thrown is the panic value used to unwind to a marker.
type thrown struct {
	ctx    *Context
	marker *marker
}

// Context is a stack of protected regions owned by a single goroutine.
// Contexts must not be shared between goroutines; create one per task.
type Context struct {
	markers []*marker
	fatal   func(*Error)
	logger  *slog.Logger
}

// ContextOption configures a Context.
type ContextOption func(c *Context)

// WithFatalHandler replaces the handler invoked when an error is thrown
// outside of any Try. The default handler exits the process with status 1.
func WithFatalHandler(fn func(*Error)) ContextOption {
	return func(c *Context) {
		c.fatal = fn
	}
}

// WithLogger sets the logger used to report fatal errors.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) {
		c.logger = logger
	}
}

func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		fatal:  func(*Error) { os.Exit(1) },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Depth returns the number of active protected regions.
func (c *Context) Depth() int {
	return len(c.markers)
}

// Try runs fn inside a new protected region. If fn, or anything it calls,
// throws on c, control returns here and the thrown error is returned.
// Panics other than throws on c are not intercepted.
func (c *Context) Try(fn func()) (caught *Error) {
	m := &marker{}
	c.markers = append(c.markers, m)

	defer func() {
		c.markers = c.markers[:len(c.markers)-1]

		if r := recover(); r != nil {
			t, ok := r.(thrown)
			if !ok || t.ctx != c || t.marker != m {
				panic(r)
			}
			caught = m.except
		}
	}()

	fn()
	return nil
}

// Run is like Try but returns the caught error as an error value, so that a
// protected region can be composed with ordinary error returns.
func (c *Context) Run(fn func() error) error {
	var err error
	if caught := c.Try(func() { err = fn() }); caught != nil {
		return caught
	}
	return err
}

// Throw hands e to the innermost protected region and unwinds to it. Throw
// never returns. Throwing with no protected region is fatal.
func (c *Context) Throw(e *Error) {
	if e == nil {
		e = New(IDFatal, "nil error thrown")
	}

	if len(c.markers) == 0 {
		c.logger.Error("Exception", slog.String("id", e.ID()), slog.String("msg", e.Message()), slog.String("chain", e.Error()))
		c.fatal(e)
		// a fatal handler that returns must still not resume the caller.
		panic(e)
	}

	m := c.markers[len(c.markers)-1]
	m.except = e
	panic(thrown{ctx: c, marker: m})
}

func (c *Context) ThrowNew(id, format string, args ...interface{}) {
	c.Throw(New(id, format, args...))
}

func (c *Context) ThrowNewCause(cause error, id, format string, args ...interface{}) {
	c.Throw(NewCause(cause, id, format, args...))
}

// Check throws err if it is not nil.
func (c *Context) Check(err error) {
	if err != nil {
		c.Throw(adopt(err))
	}
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying c.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the Context carried by ctx, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(contextKey{}).(*Context)
	return c, ok
}
