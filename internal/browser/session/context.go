// internal/browser/session/context.go
package session

import (
	"context"
)

// CombineContext derives a context from tab, which carries the chromedp target, that also
// ends when op ends. op's deadline, when earlier, is adopted so chromedp and callers see
// DeadlineExceeded rather than a bare cancellation.
func CombineContext(tab, op context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d, ok := op.Deadline(); ok {
		ctx, cancel = context.WithDeadline(tab, d)
	} else {
		ctx, cancel = context.WithCancel(tab)
	}
	stop := context.AfterFunc(op, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
