package sshcmd

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitWords splits s the way a POSIX shell splits a simple command line:
// whitespace separates words, single quotes are literal, double quotes
// honour \" \\ \$ \` and backslash escapes the next character outside quotes.
func splitWords(s string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		case c == '\'':
			inWord = true
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated single quote")
			}
			current.WriteString(s[i+1 : i+1+end])
			i += end + 1
		case c == '"':
			inWord = true
			i++
			for ; i < len(s) && s[i] != '"'; i++ {
				if s[i] == '\\' && i+1 < len(s) && strings.IndexByte("\"\\$`", s[i+1]) >= 0 {
					i++
				}
				current.WriteByte(s[i])
			}
			if i >= len(s) {
				return nil, fmt.Errorf("unterminated double quote")
			}
		case c == '\\':
			inWord = true
			if i+1 < len(s) {
				i++
				current.WriteByte(s[i])
			}
		default:
			inWord = true
			current.WriteByte(c)
		}
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"ops@db1.example.com", "ops@db1.example.com"},
		{"%h:%p", "%h:%p"},
		{"ProxyCommand=ssh", "ProxyCommand=ssh"},
		{"two words", "'two words'"},
		{"it's", `'it'\''s'`},
		{"$HOME", "'$HOME'"},
		{"a;b", "'a;b'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, `ssh -o 'ProxyCommand=ssh -W %h:%p bastion' db1`,
		Join([]string{"ssh", "-o", "ProxyCommand=ssh -W %h:%p bastion", "db1"}))
	assert.Equal(t, "", Join(nil))
}

func TestQuoteNesting(t *testing.T) {
	original := `echo "it's $HOME" | tr a-z A-Z`
	value := original
	for depth := 0; depth < 4; depth++ {
		value = Quote(value)
	}
	for depth := 0; depth < 4; depth++ {
		words, err := splitWords(value)
		require.NoError(t, err)
		require.Len(t, words, 1)
		value = words[0]
	}
	assert.Equal(t, original, value)
}

func TestEscapePercent(t *testing.T) {
	assert.Equal(t, "-W %%h:%%p", escapePercent("-W %h:%p"))
	assert.Equal(t, "plain", escapePercent("plain"))
}

func FuzzQuote(f *testing.F) {
	for _, seed := range []string{"", "a", "a b", "'", `'\''`, `"`, `\`, "$(id)", "%h:%p", "\t\n", "é ü"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		if !utf8.ValidString(s) || strings.IndexByte(s, 0) >= 0 {
			t.Skip()
		}
		words, err := splitWords(Quote(s))
		require.NoError(t, err)
		require.Equal(t, []string{s}, words)

		twice, err := splitWords(Quote(Quote(s)))
		require.NoError(t, err)
		require.Len(t, twice, 1)
		inner, err := splitWords(twice[0])
		require.NoError(t, err)
		require.Equal(t, []string{s}, inner)
	})
}
