package payid

import (
	"strings"
	"unicode/utf8"
)

const (
	// Scheme is the optional URI-style prefix of a PayID, matched case-insensitively.
	Scheme = "payid:"
	// Separator divides the account from the domain.
	Separator = "$"

	maxLength = 254
)

type parsed struct {
	account  string
	domain   string
	prefixed bool
}

// split strips the scheme and divides raw at its last separator; accounts may
// contain the separator, domains never do.
func split(raw string) (parsed, error) {
	var p parsed
	s := raw
	if hasScheme(s) {
		s = s[len(Scheme):]
		p.prefixed = true
	}
	if utf8.RuneCountInString(s) > maxLength {
		return parsed{}, syntaxError(ReasonTooLong)
	}
	i := strings.LastIndex(s, Separator)
	if i < 0 {
		return parsed{}, syntaxError(ReasonMissingSeparator)
	}
	p.account, p.domain = s[:i], s[i+len(Separator):]
	if p.account == "" {
		return parsed{}, syntaxError(ReasonEmptyAccount)
	}
	// Only one scheme is stripped, so a second one would vanish on revalidation.
	if hasScheme(p.account) {
		return parsed{}, syntaxError(ReasonNestedScheme)
	}
	if p.domain == "" {
		return parsed{}, syntaxError(ReasonEmptyDomain)
	}
	return p, nil
}

func hasScheme(s string) bool {
	return len(s) >= len(Scheme) && strings.EqualFold(s[:len(Scheme)], Scheme)
}
