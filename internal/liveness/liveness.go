// Package liveness checks whether a validated PayID's domain resolves. It runs
// after validation succeeds and reports failures as payid.KindUsable errors.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"payidcheck/internal/payid"
)

type RecordType string

const (
	MX   RecordType = "MX"
	A    RecordType = "A"
	AAAA RecordType = "AAAA"
)

// DefaultTypes is the lookup order used when none is configured.
var DefaultTypes = []RecordType{MX, A, AAAA}

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type Checker struct {
	Resolver Resolver
	Timeout  time.Duration
	Types    []RecordType
}

func NewChecker(resolver Resolver, timeout time.Duration, types []RecordType) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if len(types) == 0 {
		types = DefaultTypes
	}
	return &Checker{Resolver: resolver, Timeout: timeout, Types: types}
}

// ParseTypes converts configured record type names, ignoring case.
func ParseTypes(names []string) ([]RecordType, error) {
	var out []RecordType
	for _, name := range names {
		switch t := RecordType(strings.ToUpper(strings.TrimSpace(name))); t {
		case MX, A, AAAA:
			out = append(out, t)
		default:
			return nil, fmt.Errorf("unsupported record type %q", name)
		}
	}
	return out, nil
}

// CheckIdentifier checks the ACE form of id's domain.
func (c *Checker) CheckIdentifier(ctx context.Context, id payid.Identifier) (RecordType, error) {
	return c.Check(ctx, id.Domain().ACE())
}

// Check returns the first configured record type found for domain.
func (c *Checker) Check(ctx context.Context, domain string) (RecordType, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	domain = strings.TrimSuffix(domain, ".")

	var (
		ips       []net.IPAddr
		ipsLoaded bool
		lookupErr error
	)
	for _, t := range c.Types {
		switch t {
		case MX:
			records, err := c.Resolver.LookupMX(ctx, domain)
			if err != nil {
				lookupErr = preferActionable(lookupErr, err)
				continue
			}
			if hasMailHost(records) {
				return MX, nil
			}
		case A, AAAA:
			if !ipsLoaded {
				var err error
				ips, err = c.Resolver.LookupIPAddr(ctx, domain)
				ipsLoaded = true
				if err != nil {
					lookupErr = preferActionable(lookupErr, err)
				}
			}
			for _, ip := range ips {
				if (ip.IP.To4() != nil) == (t == A) {
					return t, nil
				}
			}
		}
	}
	if lookupErr != nil {
		return "", payid.UsableError(fmt.Sprintf("dns lookup failed for %s: %v", domain, lookupErr))
	}
	return "", payid.UsableError(fmt.Sprintf("no %s records found for %s", joinTypes(c.Types), domain))
}

// hasMailHost skips the RFC 7505 null MX record.
func hasMailHost(records []*net.MX) bool {
	for _, mx := range records {
		if mx != nil && mx.Host != "." && mx.Host != "" {
			return true
		}
	}
	return false
}

// preferActionable keeps the first lookup error that is not a plain not-found.
func preferActionable(current, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return current
	}
	if current == nil {
		return err
	}
	return current
}

func joinTypes(types []RecordType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}
