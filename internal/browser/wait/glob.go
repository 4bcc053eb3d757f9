package wait

import (
	"fmt"
	"regexp"
	"strings"
)

// CompileGlob translates a URL glob into an anchored regular expression.
//
//	**     any run of characters, including '/'
//	*      any run of characters except '/'
//	?      exactly one character
//	{a,b}  either alternative (no nesting)
//
// Every other character matches itself.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	inGroup := false
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString(".")
		case '{':
			if inGroup {
				return nil, fmt.Errorf("glob %q: nested '{' at offset %d", pattern, i)
			}
			inGroup = true
			b.WriteString("(?:")
		case '}':
			if !inGroup {
				return nil, fmt.Errorf("glob %q: unmatched '}' at offset %d", pattern, i)
			}
			inGroup = false
			b.WriteString(")")
		case ',':
			if inGroup {
				b.WriteString("|")
			} else {
				b.WriteString(",")
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if inGroup {
		return nil, fmt.Errorf("glob %q: unterminated '{'", pattern)
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// MatchGlob reports whether s matches the glob pattern.
func MatchGlob(pattern, s string) (bool, error) {
	re, err := CompileGlob(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}
