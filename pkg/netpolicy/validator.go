// Package netpolicy implements the connect/listen address allow-list
// matching used by the sandbox to mediate AF_INET/AF_INET6 syscalls.
package netpolicy

import "net"

// Family distinguishes the address families a Validator is built for.
// AF_UNSPEC is folded into IPv6 per the sandbox's connect() hook contract
// (spec §4.3): callers that pass an unspecified family are treated as
// IPv6 so IPv4-mapped IPv6 addresses validate against the IPv6 list.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// Entry is one allowed (address, port) pair. A nil/unspecified IP means
// "any host"; a zero Port means "any port".
type Entry struct {
	IP   net.IP
	Port uint16
}

// Any reports whether e matches every address of its family.
func (e Entry) Any() bool {
	return e.IP == nil || e.IP.IsUnspecified()
}

func (e Entry) matchIP(candidate net.IP) bool {
	if e.Any() {
		return true
	}
	return e.IP.Equal(candidate)
}

func (e Entry) matchPort(candidate uint16) bool {
	return e.Port == 0 || e.Port == candidate
}

// Validator holds the allow-list for a single family (connect or listen,
// v4 or v6 — the sandbox keeps four of these).
type Validator struct {
	family  Family
	entries []Entry
}

// New builds a Validator over entries, which must already be addresses of
// the given family.
func New(family Family, entries []Entry) *Validator {
	return &Validator{family: family, entries: append([]Entry(nil), entries...)}
}

// Allow reports whether (ip, port) satisfies some entry: the entry's
// address must be the wildcard or equal to ip, and its port must be zero
// or equal to port. Both conditions must hold (spec §4.3).
func (v *Validator) Allow(ip net.IP, port uint16) bool {
	if v == nil {
		return false
	}
	for _, e := range v.entries {
		if e.matchIP(ip) && e.matchPort(port) {
			return true
		}
	}
	return false
}

// Entries returns a copy of the validator's allow-list, for diagnostics.
func (v *Validator) Entries() []Entry {
	if v == nil {
		return nil
	}
	return append([]Entry(nil), v.entries...)
}

// FamilyOf classifies an IP into FamilyIPv4 or FamilyIPv6, treating
// IPv4-mapped IPv6 addresses as IPv4 and a nil address as IPv6. The
// sandbox does not call this: it classifies addresses itself and treats
// AF_UNSPEC as IPv6.
func FamilyOf(ip net.IP) Family {
	if ip4 := ip.To4(); ip4 != nil {
		return FamilyIPv4
	}
	return FamilyIPv6
}
