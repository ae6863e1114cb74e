package payid

import (
	"errors"
	"fmt"
)

// Kind partitions every validation failure so callers can choose a policy per kind.
type Kind int

const (
	// KindSyntax covers malformed grammar: missing separator, empty segments,
	// oversize input, a domain without a dot, or case differences under strict case.
	KindSyntax Kind = iota + 1
	// KindEncoding covers Unicode content the identifier profile rejects.
	KindEncoding
	// KindDomainEncoding covers IDNA encoding failures and empty domain labels.
	KindDomainEncoding
	// KindUsable is reserved for checks that run after validation, such as DNS
	// liveness. Validate never returns it.
	KindUsable
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindEncoding:
		return "encoding"
	case KindDomainEncoding:
		return "domain encoding"
	case KindUsable:
		return "usable"
	default:
		return "unknown"
	}
}

// Reasons returned by the splitter and normalizers. Messages are matched on by
// callers, so they must stay stable.
const (
	ReasonTooLong          = "payid is too long"
	ReasonMissingSeparator = "missing separator: the required $ separator is missing"
	ReasonEmptyAccount     = "empty account"
	ReasonNestedScheme     = "account starts with the payid: scheme"
	ReasonEmptyDomain      = "domain is empty"
	ReasonNoDot            = "no dot in domain"
	ReasonEmptyLabel       = "empty label"
	ReasonDomainWhitespace = "whitespace in domain"
	ReasonAccountUppercase = "account has uppercase characters"
	ReasonDomainUppercase  = "domain has uppercase characters"
)

// Error is the single error type produced by validation.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("payid %s error: %s", e.Kind, e.Reason)
}

// Is reports a match against another *Error of the same kind, so that
// errors.Is(err, &payid.Error{Kind: payid.KindSyntax}) works without comparing reasons.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return 0, false
}

func syntaxError(reason string) error {
	return &Error{Kind: KindSyntax, Reason: reason}
}

func encodingError(reason string) error {
	return &Error{Kind: KindEncoding, Reason: reason}
}

func domainEncodingError(reason string) error {
	return &Error{Kind: KindDomainEncoding, Reason: reason}
}

// UsableError builds a KindUsable error for checks that run after validation.
func UsableError(reason string) error {
	return &Error{Kind: KindUsable, Reason: reason}
}
