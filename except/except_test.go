package except

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFormatsMessage(t *testing.T) {
	e := New("test.id", "record %d has %s", 7, "no value")
	require.Equal(t, "test.id", e.ID())
	require.Equal(t, "record 7 has no value", e.Message())
	require.Nil(t, e.Cause())
	require.Equal(t, "test.id: record 7 has no value", e.Error())
}

func TestNewKeepsPercentWithoutArgs(t *testing.T) {
	e := New("test.id", "100% done")
	require.Equal(t, "100% done", e.Message())
}

func TestCauseChain(t *testing.T) {
	root := New("root", "disk full")
	mid := NewCause(root, "mid", "write failed")
	top := NewCause(mid, "top", "commit failed")

	require.Same(t, mid, top.Cause())
	require.Same(t, root, top.Root())
	require.Len(t, top.Chain(), 3)
	require.Equal(t, "top: commit failed: mid: write failed: root: disk full", top.Error())

	require.True(t, errors.Is(top, New("root", "")))
	require.False(t, errors.Is(top, New("other", "")))
	require.True(t, HasID(top, "mid"))
	require.False(t, HasID(top, "missing"))
}

func TestForeignCause(t *testing.T) {
	e := NewCause(io.ErrUnexpectedEOF, "read", "short read")
	require.Equal(t, IDForeign, e.Cause().ID())
	require.True(t, errors.Is(e, io.ErrUnexpectedEOF))
	require.Equal(t, "read: short read: unexpected EOF", e.Error())

	wrapped := fmt.Errorf("outer: %w", e)
	require.True(t, HasID(wrapped, "read"))

	var target *Error
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, "read", target.ID())
}

func TestFromKeepsIdentity(t *testing.T) {
	e := New("x", "y")
	require.Same(t, e, From(e))
	require.Nil(t, From(nil))
	require.Equal(t, IDForeign, From(io.EOF).ID())
}

func TestFreeReleasesWholeChain(t *testing.T) {
	var e *Error
	require.Equal(t, 0, e.Free())

	single := New("a", "b")
	require.Equal(t, 1, single.Free())
	require.Equal(t, 0, single.Free())

	for n := 1; n <= 5; n++ {
		chain := New("root", "root")
		links := []*Error{chain}
		for i := 0; i < n; i++ {
			chain = NewCause(chain, "link", "link %d", i)
			links = append(links, chain)
		}
		require.Equal(t, n+1, chain.Free())
		for _, link := range links {
			require.Nil(t, link.Cause())
			require.Empty(t, link.Message())
		}
	}
}

func TestFormatVerbose(t *testing.T) {
	e := NewCause(New("inner", "boom"), "outer", "wrapped")
	require.Equal(t, "[outer] wrapped\ncaused by: [inner] boom", fmt.Sprintf("%+v", e))
	require.Equal(t, e.Error(), fmt.Sprintf("%v", e))
}

func TestTryCatchesThrow(t *testing.T) {
	c := NewContext()
	reached := false

	caught := c.Try(func() {
		c.ThrowNew("boom", "value %d", 1)
		reached = true
	})

	require.False(t, reached)
	require.NotNil(t, caught)
	require.Equal(t, "boom", caught.ID())
	require.Equal(t, 0, c.Depth())
}

func TestTrySuccess(t *testing.T) {
	c := NewContext()
	caught := c.Try(func() {
		require.Equal(t, 1, c.Depth())
	})
	require.Nil(t, caught)
	require.Equal(t, 0, c.Depth())
}

func TestNestedTryDeliversToInnermost(t *testing.T) {
	c := NewContext()

	var inner *Error
	outer := c.Try(func() {
		inner = c.Try(func() {
			c.ThrowNew("inner", "first")
		})
		require.Equal(t, 1, c.Depth())
		c.ThrowNewCause(inner, "outer", "rethrown")
	})

	require.Equal(t, "inner", inner.ID())
	require.Equal(t, "outer", outer.ID())
	require.Same(t, inner, outer.Cause())
}

func TestThrowOnOtherContextPassesThrough(t *testing.T) {
	a, b := NewContext(), NewContext()

	caught := a.Try(func() {
		inner := b.Try(func() {
			a.ThrowNew("a", "targets a")
		})
		require.Nil(t, inner)
	})
	require.Equal(t, "a", caught.ID())
	require.Equal(t, 0, b.Depth())
}

func TestTryDoesNotSwallowPanics(t *testing.T) {
	c := NewContext()
	require.PanicsWithValue(t, "plain", func() {
		c.Try(func() { panic("plain") })
	})
	require.Equal(t, 0, c.Depth())
}

func TestCheckAndRun(t *testing.T) {
	c := NewContext()

	err := c.Run(func() error {
		c.Check(nil)
		c.Check(io.EOF)
		return nil
	})
	require.ErrorIs(t, err, io.EOF)

	err = c.Run(func() error { return io.ErrClosedPipe })
	require.ErrorIs(t, err, io.ErrClosedPipe)

	require.NoError(t, c.Run(func() error { return nil }))
}

type fatalSignal struct{ e *Error }

func TestThrowWithoutTryIsFatal(t *testing.T) {
	c := NewContext(WithFatalHandler(func(e *Error) {
		panic(fatalSignal{e})
	}))

	defer func() {
		r := recover()
		sig, ok := r.(fatalSignal)
		require.True(t, ok)
		require.Equal(t, "lost", sig.e.ID())
	}()
	c.ThrowNew("lost", "nobody is listening")
	t.Fatal("throw returned")
}

func TestFatalHandlerReturningStillUnwinds(t *testing.T) {
	var reported *Error
	c := NewContext(WithFatalHandler(func(e *Error) { reported = e }))

	require.Panics(t, func() { c.ThrowNew("lost", "x") })
	require.Equal(t, "lost", reported.ID())
}

func TestContextCarriedByContext(t *testing.T) {
	c := NewContext()
	ctx := WithContext(context.Background(), c)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Same(t, c, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}

func TestContextsArePerGoroutine(t *testing.T) {
	const workers = 8
	results := make(chan *Error, workers)

	for i := 0; i < workers; i++ {
		go func(i int) {
			c := NewContext()
			results <- c.Try(func() {
				c.ThrowNew("worker", "%d", i)
			})
		}(i)
	}

	seen := make(map[string]bool)
	for i := 0; i < workers; i++ {
		e := <-results
		require.Equal(t, "worker", e.ID())
		seen[e.Message()] = true
	}
	require.Len(t, seen, workers)
}
