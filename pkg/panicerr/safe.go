package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Safe wraps a function returning an error, converting any panic into an
// error instead of crashing the worker pool. The function's own error takes
// precedence over a recovered panic.
func Safe(fn func() error) func() error {
	return func() error {
		var catcher panics.Catcher
		var err error
		catcher.Try(func() { err = fn() })
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

// SafeContext is Safe for functions taking a context.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return Safe(func() error { return fn(ctx) })()
	}
}
