package storage

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// FormatCategories renders categories as a Python list literal, the encoding
// existing CSV stores already use: ['Coffee & Tea', "Joe's Diner"].
func FormatCategories(categories []string) string {
	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = pyQuote(c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// pyQuote quotes like Python's repr(str): single quotes unless the text
// contains a single quote and no double quote.
func pyQuote(s string) string {
	quote := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var b strings.Builder
	b.WriteRune(quote)
	for _, r := range s {
		switch {
		case r == quote || r == '\\':
			b.WriteRune('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r) && r > 0x7f:
			if r <= 0xff {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else if r <= 0xffff {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune(quote)
	return b.String()
}

// ParseCategories reads a list written by FormatCategories (or by Python).
// An empty cell is an empty list.
func ParseCategories(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("categories %q: not a list literal", s)
	}

	body := strings.TrimSpace(s[1 : len(s)-1])
	out := []string{}
	for body != "" {
		item, rest, err := readPyString(body)
		if err != nil {
			return nil, fmt.Errorf("categories %q: %w", s, err)
		}
		out = append(out, item)

		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("categories %q: expected ',' before %q", s, rest)
		}
		body = strings.TrimSpace(rest[1:])
	}
	return out, nil
}

// readPyString consumes one quoted Python string literal from the front of s.
func readPyString(s string) (string, string, error) {
	if s == "" || (s[0] != '\'' && s[0] != '"') {
		return "", "", fmt.Errorf("expected quoted string at %q", s)
	}
	quote := s[0]

	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), s[i+1:], nil
		case c == '\\' && i+1 < len(s):
			i++
			switch e := s[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'x', 'u', 'U':
				width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
				if i+width >= len(s) {
					return "", "", fmt.Errorf("short \\%c escape", e)
				}
				code, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
				if err != nil {
					return "", "", fmt.Errorf("bad \\%c escape: %w", e, err)
				}
				b.WriteRune(rune(code))
				i += width
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("unterminated string %q", s)
}
