package payid

import (
	"errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"payidcheck/internal/ident"
)

// AccountProfile maps an account segment to its canonical form or rejects it.
type AccountProfile interface {
	Enforce(s string) (string, error)
}

// Account is the normalized account segment.
type Account struct {
	raw       string
	canonical string
	ascii     string
	hasASCII  bool
}

// Raw returns the account exactly as it appeared in the input.
func (a Account) Raw() string { return a.raw }

// Canonical returns the case-mapped, normalized account.
func (a Account) Canonical() string { return a.canonical }

// ASCII returns the canonical account when it is 7-bit ASCII.
func (a Account) ASCII() (string, bool) { return a.ascii, a.hasASCII }

func (v *Validator) normalizeAccount(raw string, opts Options) (Account, error) {
	if opts.StrictCase && hasUpper(raw) {
		return Account{}, syntaxError(ReasonAccountUppercase)
	}
	canonical, err := v.profile.Enforce(raw)
	if err != nil {
		return Account{}, classifyProfileError(err)
	}
	if canonical == "" {
		return Account{}, syntaxError(ReasonEmptyAccount)
	}
	a := Account{raw: raw, canonical: canonical}
	if isASCII(canonical) {
		a.ascii, a.hasASCII = canonical, true
	}
	return a, nil
}

func classifyProfileError(err error) error {
	if errors.Is(err, ident.ErrEmpty) {
		return syntaxError(ReasonEmptyAccount)
	}
	return encodingError(err.Error())
}

// hasUpper reports whether s changes under Unicode lowercasing. A Caser is not
// safe for concurrent use, so one is built per call.
func hasUpper(s string) bool {
	return cases.Lower(language.Und).String(s) != s
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
