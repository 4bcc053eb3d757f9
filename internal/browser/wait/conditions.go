package wait

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xkilldash9x/shelfcheck/internal/browser/locator"
	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

// Condition is a predicate over ambient page state. Check returns whether it holds and a
// short rendering of what was observed, which ends up in WaitTimeoutError.
type Condition interface {
	Describe() string
	Check(ctx context.Context, s surface.Surface) (held bool, observed string, err error)
}

// Func adapts a function into a Condition.
type Func struct {
	Name string
	Fn   func(ctx context.Context, s surface.Surface) (bool, string, error)
}

func (f Func) Describe() string { return f.Name }

func (f Func) Check(ctx context.Context, s surface.Surface) (bool, string, error) {
	return f.Fn(ctx, s)
}

// URLMatches holds when the current URL matches the glob pattern.
func URLMatches(pattern string) Condition {
	re, cerr := CompileGlob(pattern)
	return Func{
		Name: fmt.Sprintf("url matches %q", pattern),
		Fn: func(ctx context.Context, s surface.Surface) (bool, string, error) {
			if cerr != nil {
				return false, "", Permanent(cerr)
			}
			u, err := s.URL(ctx)
			if err != nil {
				return false, "", err
			}
			return re.MatchString(u), u, nil
		},
	}
}

// Comparison is the operator of a count condition.
type Comparison int

const (
	Equal Comparison = iota
	GreaterThan
	AtMost
)

func (c Comparison) String() string {
	switch c {
	case GreaterThan:
		return ">"
	case AtMost:
		return "<="
	}
	return "=="
}

func (c Comparison) holds(got, want int) bool {
	switch c {
	case GreaterThan:
		return got > want
	case AtMost:
		return got <= want
	}
	return got == want
}

// Count holds when the number of elements matching l compares to n.
func Count(l locator.Locator, cmp Comparison, n int) Condition {
	return Func{
		Name: fmt.Sprintf("count(%s) %s %d", l, cmp, n),
		Fn: func(ctx context.Context, s surface.Surface) (bool, string, error) {
			got, err := l.Count(ctx, s)
			if err != nil {
				return false, "", classify(err)
			}
			return cmp.holds(got, n), strconv.Itoa(got), nil
		},
	}
}

func CountEquals(l locator.Locator, n int) Condition { return Count(l, Equal, n) }
func CountAbove(l locator.Locator, n int) Condition { return Count(l, GreaterThan, n) }
func CountAtMost(l locator.Locator, n int) Condition { return Count(l, AtMost, n) }

// Visible holds when l resolves to exactly one visible element.
func Visible(l locator.Locator) Condition {
	return Func{
		Name: fmt.Sprintf("%s visible", l),
		Fn: func(ctx context.Context, s surface.Surface) (bool, string, error) {
			c, found, err := single(ctx, s, l)
			if err != nil || !found {
				return false, "absent", err
			}
			if !c.Visible {
				return false, "hidden", nil
			}
			return true, "visible", nil
		},
	}
}

// Hidden holds when l matches nothing or its single match is not visible.
func Hidden(l locator.Locator) Condition {
	return Func{
		Name: fmt.Sprintf("%s hidden", l),
		Fn: func(ctx context.Context, s surface.Surface) (bool, string, error) {
			c, found, err := single(ctx, s, l)
			if err != nil {
				return false, "", err
			}
			if !found {
				return true, "absent", nil
			}
			if c.Visible {
				return false, "visible", nil
			}
			return true, "hidden", nil
		},
	}
}

// TextContains holds when the single match's text contains want.
func TextContains(l locator.Locator, want string) Condition {
	return Func{
		Name: fmt.Sprintf("%s text contains %q", l, want),
		Fn: func(ctx context.Context, s surface.Surface) (bool, string, error) {
			c, found, err := single(ctx, s, l)
			if err != nil || !found {
				return false, "absent", err
			}
			text := locator.Normalize(c.Text)
			return strings.Contains(text, want), text, nil
		},
	}
}

// TextChangesFrom holds once the single match's text differs from previous, for example a
// toggle button relabeling itself.
func TextChangesFrom(l locator.Locator, previous string) Condition {
	previous = locator.Normalize(previous)
	return Func{
		Name: fmt.Sprintf("%s text changes from %q", l, previous),
		Fn: func(ctx context.Context, s surface.Surface) (bool, string, error) {
			c, found, err := single(ctx, s, l)
			if err != nil || !found {
				return false, "absent", err
			}
			text := locator.Normalize(c.Text)
			if text == "" {
				text = locator.Normalize(c.Name)
			}
			return text != previous, text, nil
		},
	}
}

func single(ctx context.Context, s surface.Surface, l locator.Locator) (surface.Candidate, bool, error) {
	set, err := l.Resolve(ctx, s)
	if err != nil {
		return surface.Candidate{}, false, classify(err)
	}
	c, err := set.Single()
	if errors.Is(err, locator.ErrNoMatch) {
		return surface.Candidate{}, false, nil
	}
	if err != nil {
		return surface.Candidate{}, false, classify(err)
	}
	return c, true, nil
}

// classify marks resolution errors that cannot improve with time as permanent.
func classify(err error) error {
	var amb *failures.AmbiguousMatchError
	if errors.As(err, &amb) || errors.Is(err, locator.ErrUnsupportedRole) {
		return Permanent(err)
	}
	return err
}
