package script

import (
	"strconv"
	"strings"
	"unicode"
)

var wordOps = map[string]string{
	"eq":   "==",
	"ne":   "~=",
	"lt":   "<",
	"gt":   ">",
	"le":   "<=",
	"ge":   ">=",
	"div":  "/",
	"mod":  "%",
	"null": "nil",
}

// IsExpression reports whether s contains a ${...} or #{...} expression.
func IsExpression(s string) bool {
	return strings.Contains(s, "${") || strings.Contains(s, "#{")
}

// Translate turns a UEL value expression into a Lua chunk that returns its value.
// "${a}" yields the value itself; text mixed with expressions yields a concatenated string;
// plain text yields a string constant.
func Translate(src string) string {
	parts := split(src)
	if len(parts) == 1 && parts[0].expr {
		return "return (" + translateExpr(parts[0].text) + ")"
	}
	var b strings.Builder
	b.WriteString("return ")
	if len(parts) == 0 {
		b.WriteString(`""`)
	}
	for i, p := range parts {
		if i > 0 {
			b.WriteString(" .. ")
		}
		if p.expr {
			b.WriteString("__str(" + translateExpr(p.text) + ")")
		} else {
			b.WriteString(strconv.Quote(p.text))
		}
	}
	return b.String()
}

type part struct {
	text string
	expr bool
}

func split(src string) []part {
	var parts []part
	s := strings.TrimSpace(src)
	for len(s) > 0 {
		start := strings.Index(s, "${")
		if alt := strings.Index(s, "#{"); alt >= 0 && (start < 0 || alt < start) {
			start = alt
		}
		if start < 0 {
			parts = append(parts, part{text: s})
			break
		}
		end := matchBrace(s, start+2)
		if end < 0 {
			parts = append(parts, part{text: s})
			break
		}
		if start > 0 {
			parts = append(parts, part{text: s[:start]})
		}
		parts = append(parts, part{text: s[start+2 : end], expr: true})
		s = s[end+1:]
	}
	return parts
}

// matchBrace finds the closing brace, skipping quoted strings and nested braces.
func matchBrace(s string, from int) int {
	depth := 0
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

func translateExpr(e string) string {
	var b strings.Builder
	rs := []rune(e)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(rs) && rs[j] != c {
				if rs[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(rs) {
				j = len(rs) - 1
			}
			b.WriteString(string(rs[i : j+1]))
			i = j
		case c == '&' && next(rs, i) == '&':
			b.WriteString(" and ")
			i++
		case c == '|' && next(rs, i) == '|':
			b.WriteString(" or ")
			i++
		case c == '!' && next(rs, i) == '=':
			b.WriteString("~=")
			i++
		case c == '!':
			b.WriteString(" not ")
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			word := string(rs[i:j])
			if prev(rs, i) == '.' {
				b.WriteString(word)
			} else if word == "empty" {
				k := j
				for k < len(rs) && unicode.IsSpace(rs[k]) {
					k++
				}
				m := k
				for m < len(rs) && (unicode.IsLetter(rs[m]) || unicode.IsDigit(rs[m]) || rs[m] == '_' || rs[m] == '.') {
					m++
				}
				b.WriteString("__empty(" + string(rs[k:m]) + ")")
				j = m
			} else if op, ok := wordOps[word]; ok {
				b.WriteString(" " + op + " ")
			} else {
				b.WriteString(word)
			}
			i = j - 1
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func next(rs []rune, i int) rune {
	if i+1 < len(rs) {
		return rs[i+1]
	}
	return 0
}

func prev(rs []rune, i int) rune {
	if i > 0 {
		return rs[i-1]
	}
	return 0
}
