// Package ident enforces the PRECIS UsernameCaseMapped profile (RFC 8265) on the
// account segment of a PayID and reports which derived property rejected input.
package ident

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/secure/precis"
	"golang.org/x/text/width"
)

// ErrEmpty is returned when the profile leaves nothing to compare.
var ErrEmpty = errors.New("DISALLOWED/empty")

// DisallowedError reports the first code point the profile rejects.
type DisallowedError struct {
	Category Category
	Rune     rune
}

func (e *DisallowedError) Error() string {
	return fmt.Sprintf("DISALLOWED/%s: %U is not allowed", e.Category, e.Rune)
}

// Profile wraps a PRECIS profile. Profiles are read-only and safe for
// concurrent use.
type Profile struct {
	p *precis.Profile
}

var (
	// UsernameCaseMapped width-folds, lowercases and NFC-normalizes input.
	UsernameCaseMapped = &Profile{p: precis.UsernameCaseMapped}
	// UsernameCasePreserved applies the same rules without case mapping.
	UsernameCasePreserved = &Profile{p: precis.UsernameCasePreserved}
)

// Enforce returns the canonical form of s, or a *DisallowedError naming the
// category of the first rejected code point.
func (p *Profile) Enforce(s string) (string, error) {
	if s == "" {
		return "", ErrEmpty
	}
	for _, r := range width.Fold.String(s) {
		if c, bad := Classify(r); bad {
			return "", &DisallowedError{Category: c, Rune: r}
		}
	}
	out, err := p.p.String(s)
	if err != nil {
		// Context rules and the bidi rule are only checked by the PRECIS tables.
		return "", &DisallowedError{Category: Other, Rune: firstRejected(p.p, s)}
	}
	if out == "" {
		return "", ErrEmpty
	}
	return out, nil
}

// firstRejected narrows a whole-string rejection to a single code point by
// growing the prefix until enforcement fails. The bidi rule can reject a string
// whose prefixes all pass; the last rune is reported then.
func firstRejected(p *precis.Profile, s string) rune {
	var last rune
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		last = r
		if _, err := p.String(s[:i]); err != nil {
			return r
		}
	}
	return last
}
