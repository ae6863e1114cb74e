// Package payid validates and canonicalizes PayIDs of the form account$domain.
//
// Validation is a straight pipeline: the input is split at its last separator,
// the account is enforced against the PRECIS UsernameCaseMapped profile, the
// domain is round-tripped through IDNA, and the two canonical halves are joined.
// Every failure is an *Error whose Kind tells callers how to treat it.
// Validation holds no state between calls and is safe for concurrent use.
package payid

import (
	"unicode/utf8"

	"payidcheck/internal/ident"
	"payidcheck/internal/idn"
)

// Options adjust a single validation.
type Options struct {
	// CheckDomain enforces the domain grammar: at least one dot and no empty
	// labels. Encoding is performed either way.
	CheckDomain bool
	// StrictCase rejects uppercase input instead of folding it.
	StrictCase bool
	// IncludePrefix makes Identifier.String prepend the payid: scheme.
	IncludePrefix bool
}

// DefaultOptions checks the domain grammar and folds case.
func DefaultOptions() Options {
	return Options{CheckDomain: true}
}

// Validator runs the pipeline with a given account profile and domain codec.
type Validator struct {
	profile AccountProfile
	codec   DomainCodec
}

// Option configures a Validator.
type Option func(*Validator)

// WithProfile replaces the account profile.
func WithProfile(p AccountProfile) Option {
	return func(v *Validator) { v.profile = p }
}

// WithCodec replaces the domain codec.
func WithCodec(c DomainCodec) Option {
	return func(v *Validator) { v.codec = c }
}

// New returns a Validator using PRECIS UsernameCaseMapped and IDNA lookup
// processing unless overridden.
func New(opts ...Option) *Validator {
	v := &Validator{
		profile: ident.UsernameCaseMapped,
		codec:   idn.Lookup,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultValidator = New()

// Validate validates s with DefaultOptions.
func Validate(s string) (Identifier, error) {
	return defaultValidator.Validate(s, DefaultOptions())
}

// Validate validates s. The returned error is always an *Error.
func (v *Validator) Validate(s string, opts Options) (Identifier, error) {
	p, err := split(s)
	if err != nil {
		return Identifier{}, err
	}
	account, err := v.normalizeAccount(p.account, opts)
	if err != nil {
		return Identifier{}, err
	}
	// Profile mapping can produce the scheme from other characters, e.g. fullwidth forms.
	if hasScheme(account.canonical) {
		return Identifier{}, syntaxError(ReasonNestedScheme)
	}
	domain, err := v.normalizeDomain(p.domain, opts)
	if err != nil {
		return Identifier{}, err
	}
	id := assemble(account, domain, s, p.prefixed, opts)
	// Case and width mapping can lengthen the input; the canonical form must
	// itself pass the length check.
	if utf8.RuneCountInString(id.canonical) > maxLength {
		return Identifier{}, syntaxError(ReasonTooLong)
	}
	return id, nil
}
