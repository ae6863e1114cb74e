package payid

import (
	"strings"
	"unicode"

	"payidcheck/internal/idn"
)

// DomainCodec round-trips a domain through its ASCII-compatible encoding.
type DomainCodec interface {
	Encode(domain string) (idn.Encoded, error)
}

// Domain is the normalized domain segment.
type Domain struct {
	raw       string
	canonical string
	ace       string
	ascii     string
	hasASCII  bool
	labels    []string
}

// Raw returns the domain exactly as it appeared in the input.
func (d Domain) Raw() string { return d.raw }

// Canonical returns the Unicode form obtained from the IDNA round trip.
func (d Domain) Canonical() string { return d.canonical }

// ACE returns the ASCII-compatible encoding, with xn-- labels for Unicode labels.
func (d Domain) ACE() string { return d.ace }

// ASCII returns the lowercase canonical domain when it is 7-bit ASCII. Domains
// that need Unicode have no ASCII form even though they have an ACE form.
func (d Domain) ASCII() (string, bool) { return d.ascii, d.hasASCII }

// Labels returns a copy of the dot-separated labels of the canonical domain.
func (d Domain) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

func (v *Validator) normalizeDomain(raw string, opts Options) (Domain, error) {
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return Domain{}, encodingError(ReasonDomainWhitespace)
	}
	if opts.StrictCase && hasUpper(raw) {
		return Domain{}, syntaxError(ReasonDomainUppercase)
	}
	enc, err := v.codec.Encode(raw)
	if err != nil {
		return Domain{}, domainEncodingError(err.Error())
	}
	if enc.Unicode == "" {
		return Domain{}, syntaxError(ReasonEmptyDomain)
	}
	labels := strings.Split(enc.Unicode, ".")
	if opts.CheckDomain {
		if len(labels) < 2 {
			return Domain{}, syntaxError(ReasonNoDot)
		}
		for _, label := range labels {
			if label == "" {
				return Domain{}, domainEncodingError(ReasonEmptyLabel)
			}
		}
	}
	d := Domain{raw: raw, canonical: enc.Unicode, ace: enc.ACE, labels: labels}
	if isASCII(enc.Unicode) {
		d.ascii, d.hasASCII = strings.ToLower(enc.Unicode), true
	}
	return d, nil
}
