package extract

import (
	"strings"
	"unicode/utf8"
)

// Repair rewrites almost-JSON text. Every repair leaves valid JSON
// semantically unchanged.
type Repair struct {
	Name  string
	Apply func(string) string
}

// Repairs are applied cumulatively in this order.
var Repairs = []Repair{
	{Name: "normalize_quotes", Apply: NormalizeQuotes},
	{Name: "strip_trailing_commas", Apply: StripTrailingCommas},
}

const (
	leftDoubleQuote  = '“'
	rightDoubleQuote = '”'
	leftSingleQuote  = '‘'
	rightSingleQuote = '’'
)

// NormalizeQuotes turns strings delimited by single or typographic
// quotes into double-quoted strings. Text inside standard double-quoted
// strings is left alone.
func NormalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var closer rune
	inString := false
	escaped := false

	for _, r := range s {
		if !inString {
			switch r {
			case '"':
				inString, closer = true, '"'
			case '\'':
				inString, closer = true, '\''
				r = '"'
			case leftDoubleQuote, rightDoubleQuote:
				inString, closer = true, rightDoubleQuote
				r = '"'
			case leftSingleQuote, rightSingleQuote:
				inString, closer = true, rightSingleQuote
				r = '"'
			}
			b.WriteRune(r)
			continue
		}

		if escaped {
			escaped = false
			b.WriteRune(r)
			continue
		}
		switch {
		case r == '\\':
			escaped = true
		case closesString(r, closer):
			inString = false
			r = '"'
		case r == '"' && closer != '"':
			b.WriteString(`\"`)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func closesString(r, closer rune) bool {
	switch closer {
	case rightDoubleQuote:
		return r == rightDoubleQuote || r == leftDoubleQuote
	case rightSingleQuote:
		return r == rightSingleQuote || r == leftSingleQuote
	default:
		return r == closer
	}
}

// StripTrailingCommas removes commas that directly precede a closing
// brace or bracket, outside of strings.
func StripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}

		if c == '"' {
			inString = true
		} else if c == ',' && closesAfterSpace(s[i+1:]) {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closesAfterSpace(s string) bool {
	t := strings.TrimLeft(s, " \t\r\n")
	return t != "" && (t[0] == '}' || t[0] == ']')
}

// balancedObject returns the first brace-balanced {...} slice of text.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		} else {
			switch r {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+size], true
				}
			}
		}
		i += size
	}
	return "", false
}
