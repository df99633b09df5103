package sshcmd

import "strings"

// Quote quotes s for a POSIX shell. Strings made only of safe characters
// are returned unchanged; anything else is wrapped in single quotes with
// embedded single quotes written as '\''.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, unsafeRune) == -1 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Join quotes every element of argv and joins them with single spaces.
func Join(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}

func unsafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	switch r {
	case '-', '_', '.', '/', '@', ':', ',', '+', '=', '%':
		return false
	}
	return true
}

// escapePercent doubles every '%' so a string embedded in a ProxyCommand
// survives one round of ssh token expansion unchanged.
func escapePercent(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}
