// Package shellwords splits and quotes argument strings using POSIX shell
// word rules, without variable expansion.
package shellwords

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrUnclosedQuote  = errors.New("unclosed quote")
	ErrTrailingEscape = errors.New("trailing escape character")
)

type state int

const (
	plain state = iota
	single
	double
)

// Split breaks s into words. Single quotes are literal, double quotes honour
// backslash escapes of `"`, `\`, `$` and "`", and an unquoted backslash
// escapes any character. Quoted empty strings produce empty words.
func Split(s string) ([]string, error) {
	words := []string{}
	var word strings.Builder
	inWord := false
	st := plain

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch st {
		case single:
			if ch == '\'' {
				st = plain
			} else {
				word.WriteRune(ch)
			}
		case double:
			switch {
			case ch == '"':
				st = plain
			case ch == '\\' && i+1 < len(runes) && strings.ContainsRune("\"\\$`", runes[i+1]):
				i++
				word.WriteRune(runes[i])
			default:
				word.WriteRune(ch)
			}
		default:
			switch {
			case unicode.IsSpace(ch):
				if inWord {
					words = append(words, word.String())
					word.Reset()
					inWord = false
				}
			case ch == '\\':
				if i+1 >= len(runes) {
					return nil, ErrTrailingEscape
				}
				i++
				word.WriteRune(runes[i])
				inWord = true
			case ch == '\'':
				st = single
				inWord = true
			case ch == '"':
				st = double
				inWord = true
			default:
				word.WriteRune(ch)
				inWord = true
			}
		}
	}

	if st != plain {
		return nil, ErrUnclosedQuote
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, nil
}

// Join renders args as one line that Split turns back into args.
func Join(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

// Quote returns a single shell word for s.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsFunc(s, needsQuote) {
		return s
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range s {
		if strings.ContainsRune("\"\\$`", ch) {
			b.WriteByte('\\')
		}
		b.WriteRune(ch)
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuote(ch rune) bool {
	return unicode.IsSpace(ch) || strings.ContainsRune(`'"\$`+"`", ch)
}
