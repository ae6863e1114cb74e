package payid

import "encoding/json"

// Identifier is a validated PayID. It is built once per successful validation
// and exposes read-only accessors.
type Identifier struct {
	original      string
	account       Account
	domain        Domain
	canonical     string
	ascii         string
	hasASCII      bool
	prefixed      bool
	includePrefix bool
}

func assemble(account Account, domain Domain, original string, prefixed bool, opts Options) Identifier {
	id := Identifier{
		original:      original,
		account:       account,
		domain:        domain,
		canonical:     account.canonical + Separator + domain.canonical,
		prefixed:      prefixed,
		includePrefix: opts.IncludePrefix,
	}
	if a, ok := account.ASCII(); ok {
		if d, ok := domain.ASCII(); ok {
			id.ascii, id.hasASCII = a+Separator+d, true
		}
	}
	return id
}

// Original returns the input exactly as given to Validate.
func (id Identifier) Original() string { return id.original }

// Account returns the normalized account segment.
func (id Identifier) Account() Account { return id.account }

// Domain returns the normalized domain segment.
func (id Identifier) Domain() Domain { return id.domain }

// Canonical returns the form used for equality and storage. It never carries
// the scheme prefix.
func (id Identifier) Canonical() string { return id.canonical }

// ASCII returns the canonical identifier when both segments are 7-bit ASCII.
// It is a transport projection and must not be used for equality.
func (id Identifier) ASCII() (string, bool) { return id.ascii, id.hasASCII }

// HadPrefix reports whether the input carried the payid: scheme.
func (id Identifier) HadPrefix() bool { return id.prefixed }

// String returns the canonical identifier, with the scheme prepended when the
// IncludePrefix option was set.
func (id Identifier) String() string {
	if id.includePrefix {
		return Scheme + id.canonical
	}
	return id.canonical
}

type identifierJSON struct {
	Original  string      `json:"original"`
	Canonical string      `json:"canonical"`
	Display   string      `json:"display"`
	ASCII     *string     `json:"ascii,omitempty"`
	Account   accountJSON `json:"account"`
	Domain    domainJSON  `json:"domain"`
}

type accountJSON struct {
	Raw       string  `json:"raw"`
	Canonical string  `json:"canonical"`
	ASCII     *string `json:"ascii,omitempty"`
}

type domainJSON struct {
	Raw       string   `json:"raw"`
	Canonical string   `json:"canonical"`
	ACE       string   `json:"ace"`
	ASCII     *string  `json:"ascii,omitempty"`
	Labels    []string `json:"labels"`
}

// MarshalJSON renders the identifier with absent ASCII forms omitted.
func (id Identifier) MarshalJSON() ([]byte, error) {
	out := identifierJSON{
		Original:  id.original,
		Canonical: id.canonical,
		Display:   id.String(),
		ASCII:     optional(id.ascii, id.hasASCII),
		Account: accountJSON{
			Raw:       id.account.raw,
			Canonical: id.account.canonical,
			ASCII:     optional(id.account.ascii, id.account.hasASCII),
		},
		Domain: domainJSON{
			Raw:       id.domain.raw,
			Canonical: id.domain.canonical,
			ACE:       id.domain.ace,
			ASCII:     optional(id.domain.ascii, id.domain.hasASCII),
			Labels:    id.domain.Labels(),
		},
	}
	return json.Marshal(out)
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
