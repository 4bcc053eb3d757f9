// internal/browser/locator/locator.go
// Package locator turns human-meaningful element references (a role plus an accessible name,
// or a CSS selector filtered by text) into concrete targets in the current document.
//
// Locators are lazy values: building one never touches the document. Resolution happens when
// an action or a wait forces it, which lets a locator be declared before its target exists.
package locator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/shelfcheck/internal/browser/surface"
	"github.com/xkilldash9x/shelfcheck/internal/failures"
)

// Role is an accessibility role understood by the resolver.
type Role string

const (
	RoleButton     Role = "button"
	RoleLink       Role = "link"
	RoleTextbox    Role = "textbox"
	RoleSpinbutton Role = "spinbutton"
	RoleHeading    Role = "heading"
	RoleImg        Role = "img"
	RoleCheckbox   Role = "checkbox"
)

var supportedRoles = map[Role]bool{
	RoleButton:     true,
	RoleLink:       true,
	RoleTextbox:    true,
	RoleSpinbutton: true,
	RoleHeading:    true,
	RoleImg:        true,
	RoleCheckbox:   true,
}

// ErrNoMatch is returned by TargetSet.Single when nothing matched. Callers that wait treat
// it as "not yet".
var ErrNoMatch = errors.New("no element matches")

// ErrUnsupportedRole is returned when a descriptor names a role the resolver cannot query.
var ErrUnsupportedRole = errors.New("unsupported role")

// Descriptor is the data behind a Locator.
type Descriptor struct {
	Role  Role
	Level int
	CSS   string

	Name        string
	NamePattern *regexp.Regexp
	Exact       bool

	HasText        string
	HasTextPattern *regexp.Regexp

	Ordinal    int
	HasOrdinal bool

	Scope  string
	Parent *Locator
}

// Locator is an immutable element reference. Builder methods return modified copies.
type Locator struct {
	d Descriptor
}

// ByRole references elements by accessibility role and accessible name. An empty name
// matches every element with the role.
func ByRole(role Role, name string) Locator {
	return Locator{d: Descriptor{Role: role, Name: name}}
}

// ByRolePattern references elements whose accessible name matches re.
func ByRolePattern(role Role, re *regexp.Regexp) Locator {
	return Locator{d: Descriptor{Role: role, NamePattern: re}}
}

// ByCSS references elements by a raw CSS selector.
func ByCSS(selector string) Locator {
	return Locator{d: Descriptor{CSS: selector}}
}

// Descriptor returns a copy of the locator's descriptor.
func (l Locator) Descriptor() Descriptor { return l.d }

// Exact makes name matching case-sensitive and whole-string.
func (l Locator) Exact() Locator {
	l.d.Exact = true
	return l
}

// Level restricts a heading locator to h1..h6.
func (l Locator) Level(n int) Locator {
	l.d.Level = n
	return l
}

// WithText keeps only elements whose text content contains s (case-insensitive).
func (l Locator) WithText(s string) Locator {
	l.d.HasText = s
	l.d.HasTextPattern = nil
	return l
}

// WithTextPattern keeps only elements whose text content matches re.
func (l Locator) WithTextPattern(re *regexp.Regexp) Locator {
	l.d.HasTextPattern = re
	l.d.HasText = ""
	return l
}

// Nth selects one match by position. Negative values count from the end, so Nth(-1) is the
// last match.
func (l Locator) Nth(i int) Locator {
	l.d.Ordinal = i
	l.d.HasOrdinal = true
	return l
}

func (l Locator) First() Locator { return l.Nth(0) }
func (l Locator) Last() Locator  { return l.Nth(-1) }

// Within restricts the search to descendants of elements matching the CSS selector.
func (l Locator) Within(scope string) Locator {
	l.d.Scope = scope
	return l
}

// Locator nests child inside l: l is resolved to a single element first and child is
// searched among its descendants.
func (l Locator) Locator(child Locator) Locator {
	parent := l
	child.d.Parent = &parent
	return child
}

// Validate reports descriptor errors that no amount of waiting can fix.
func (l Locator) Validate() error {
	d := l.d
	if d.Role == "" && d.CSS == "" {
		return errors.New("locator needs a role or a CSS selector")
	}
	if d.Role != "" && !supportedRoles[d.Role] {
		return fmt.Errorf("%w: %q", ErrUnsupportedRole, d.Role)
	}
	if d.Parent != nil {
		return d.Parent.Validate()
	}
	return nil
}

// String renders the descriptor for error messages and logs.
func (l Locator) String() string {
	var b strings.Builder
	if l.d.Parent != nil {
		b.WriteString(l.d.Parent.String())
		b.WriteString(" >> ")
	}
	if l.d.Role != "" {
		fmt.Fprintf(&b, "role=%s", l.d.Role)
		switch {
		case l.d.NamePattern != nil:
			fmt.Fprintf(&b, "[name=/%s/]", l.d.NamePattern)
		case l.d.Name != "":
			fmt.Fprintf(&b, "[name=%q", l.d.Name)
			if l.d.Exact {
				b.WriteString(" exact")
			}
			b.WriteString("]")
		}
		if l.d.Level > 0 {
			fmt.Fprintf(&b, "[level=%d]", l.d.Level)
		}
	} else {
		fmt.Fprintf(&b, "css=%s", l.d.CSS)
	}
	if l.d.HasTextPattern != nil {
		fmt.Fprintf(&b, "[has-text=/%s/]", l.d.HasTextPattern)
	} else if l.d.HasText != "" {
		fmt.Fprintf(&b, "[has-text=%q]", l.d.HasText)
	}
	if l.d.Scope != "" {
		fmt.Fprintf(&b, " within %q", l.d.Scope)
	}
	if l.d.HasOrdinal {
		fmt.Fprintf(&b, " nth=%d", l.d.Ordinal)
	}
	return b.String()
}

// TargetSet is the result of one resolution.
type TargetSet struct {
	desc       string
	Candidates []surface.Candidate
}

// Len returns the number of matches.
func (t TargetSet) Len() int { return len(t.Candidates) }

// Single returns the only match. With zero matches it returns ErrNoMatch; with several it
// returns an AmbiguousMatchError naming the descriptor.
func (t TargetSet) Single() (surface.Candidate, error) {
	switch len(t.Candidates) {
	case 0:
		return surface.Candidate{}, ErrNoMatch
	case 1:
		return t.Candidates[0], nil
	default:
		return surface.Candidate{}, &failures.AmbiguousMatchError{Descriptor: t.desc, Count: len(t.Candidates)}
	}
}

// Resolve queries the surface and applies the name, text, ordinal and nesting filters.
// A parent that matches nothing yields an empty set (the caller may be waiting for it); a
// parent that matches several is an immediate AmbiguousMatchError.
func (l Locator) Resolve(ctx context.Context, s surface.Surface) (TargetSet, error) {
	set := TargetSet{desc: l.String()}
	if err := l.Validate(); err != nil {
		return set, err
	}

	q := surface.Query{Role: string(l.d.Role), Level: l.d.Level, CSS: l.d.CSS, Scope: l.d.Scope}
	if l.d.Parent != nil {
		parents, err := l.d.Parent.Resolve(ctx, s)
		if err != nil {
			return set, err
		}
		parent, err := parents.Single()
		if errors.Is(err, ErrNoMatch) {
			return set, nil
		}
		if err != nil {
			return set, err
		}
		q.Scope = RefSelector(parent.Ref)
	}

	raw, err := s.Query(ctx, q)
	if err != nil {
		return set, fmt.Errorf("querying %s: %w", set.desc, err)
	}

	matched := make([]surface.Candidate, 0, len(raw))
	for _, c := range raw {
		// Role queries see the accessibility tree, which excludes hidden elements.
		if l.d.Role != "" && !c.Visible {
			continue
		}
		if !l.nameMatches(c.Name) || !l.textMatches(c.Text) {
			continue
		}
		matched = append(matched, c)
	}

	if l.d.HasOrdinal {
		i := l.d.Ordinal
		if i < 0 {
			i += len(matched)
		}
		if i < 0 || i >= len(matched) {
			matched = nil
		} else {
			matched = matched[i : i+1]
		}
	}
	set.Candidates = matched
	return set, nil
}

// Count resolves and returns the number of matches without requiring uniqueness.
func (l Locator) Count(ctx context.Context, s surface.Surface) (int, error) {
	set, err := l.Resolve(ctx, s)
	if err != nil {
		return 0, err
	}
	return set.Len(), nil
}

func (l Locator) nameMatches(name string) bool {
	name = Normalize(name)
	switch {
	case l.d.NamePattern != nil:
		return l.d.NamePattern.MatchString(name)
	case l.d.Name == "":
		return true
	case l.d.Exact:
		return name == Normalize(l.d.Name)
	default:
		return strings.Contains(strings.ToLower(name), strings.ToLower(Normalize(l.d.Name)))
	}
}

func (l Locator) textMatches(text string) bool {
	switch {
	case l.d.HasTextPattern != nil:
		return l.d.HasTextPattern.MatchString(Normalize(text))
	case l.d.HasText != "":
		return strings.Contains(strings.ToLower(Normalize(text)), strings.ToLower(Normalize(l.d.HasText)))
	}
	return true
}

// Normalize collapses runs of whitespace and trims the ends, the way accessible names are
// computed.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RefAttribute is the attribute the browser surface stamps on every queried element.
const RefAttribute = "data-shelfcheck-ref"

// RefSelector addresses a previously resolved element.
func RefSelector(ref string) string {
	return fmt.Sprintf(`[%s=%q]`, RefAttribute, ref)
}
