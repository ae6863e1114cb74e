// Package idn round-trips domain names through IDNA2008 with UTS #46 lookup
// mapping.
package idn

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

const (
	maxLabelLength  = 63
	maxDomainLength = 253
)

// Encoded holds both forms of a domain after a round trip.
type Encoded struct {
	// Unicode is the domain decoded back from its ACE form.
	Unicode string
	// ACE is the ASCII-compatible encoding, with xn-- labels where needed.
	ACE string
}

// Error carries the encoder's reason for rejecting a domain.
type Error struct {
	Domain string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%q)", e.Reason, e.Domain)
}

// Codec is safe for concurrent use.
type Codec struct {
	profile *idna.Profile
}

// Lookup maps case and width, enforces STD3 rules, validates labels and applies
// the bidi rule. Empty labels pass through so callers can report them.
var Lookup = &Codec{
	profile: idna.New(
		idna.MapForLookup(),
		idna.Transitional(false),
		idna.BidiRule(),
	),
}

// Encode converts domain to its ACE form and back.
func (c *Codec) Encode(domain string) (Encoded, error) {
	ace, err := c.profile.ToASCII(domain)
	if err != nil {
		return Encoded{}, &Error{Domain: domain, Reason: err.Error()}
	}
	if reason := checkLengths(ace); reason != "" {
		return Encoded{}, &Error{Domain: domain, Reason: reason}
	}
	uni, err := c.profile.ToUnicode(ace)
	if err != nil {
		return Encoded{}, &Error{Domain: domain, Reason: err.Error()}
	}
	return Encoded{Unicode: uni, ACE: ace}, nil
}

// checkLengths applies the DNS limits to an ACE domain. Empty labels are left to
// the caller's grammar checks.
func checkLengths(ace string) string {
	if len(strings.TrimSuffix(ace, ".")) > maxDomainLength {
		return "domain too long"
	}
	for _, label := range strings.Split(ace, ".") {
		if len(label) > maxLabelLength {
			return "label too long"
		}
	}
	return ""
}
