package resolve

import "strings"

const escape = '\\'

// Expand performs shell-style brace expansion on `pattern`. For example,
// "a{b,c}d{e,f}" expands to "abde", "abdf", "acde", and "acdf".
//
// The group closed first is expanded first, and every result is expanded
// again until no group remains, so nested groups such as "{a,{b,c}}" are
// fully expanded. A group without a comma, such as "{b}", is literal text
// and is left intact, as are empty groups and unbalanced braces. A backslash
// before a brace stops it from opening or closing a group. Escaped closing
// braces are unescaped in the output, while escaped opening braces are kept
// verbatim.
func Expand(pattern string) []string {
	start, end, ok := findGroup(pattern)
	if !ok {
		return []string{strings.ReplaceAll(pattern, `\}`, "}")}
	}

	prefix, suffix := pattern[:start], pattern[end+1:]
	var results []string
	for _, alt := range strings.Split(pattern[start+1:end], ",") {
		results = append(results, Expand(prefix+alt+suffix)...)
	}
	return results
}

// findGroup returns the indices of the braces around the first alternation
// group in `pattern`. An alternation group is an unescaped opening brace,
// followed by at least one character including a comma, followed by the
// matching unescaped closing brace. Groups without a comma are skipped.
func findGroup(pattern string) (start, end int, ok bool) {
	var opens []int
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == escape && i+1 < len(pattern) && isBrace(pattern[i+1]) {
			i++
			continue
		}

		switch c {
		case '{':
			opens = append(opens, i)
		case '}':
			if len(opens) == 0 {
				continue
			}

			open := opens[len(opens)-1]
			opens = opens[:len(opens)-1]
			if strings.Contains(pattern[open+1:i], ",") {
				return open, i, true
			}
		}
	}
	return 0, 0, false
}

func isBrace(c byte) bool {
	return c == '{' || c == '}'
}
