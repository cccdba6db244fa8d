package policy

import (
	"net"
	"strconv"
	"strings"

	"github.com/ovmrun/hatchery/internal/errx"
	"github.com/ovmrun/hatchery/pkg/netpolicy"
)

// parsedAddr is an intermediate result of parsing one raw address-list
// spec (spec §4.1): either a concrete set of (family, entry) pairs, or a
// directive to clear everything parsed so far and stop.
type parsedAddr struct {
	v4    []netpolicy.Entry
	v6    []netpolicy.Entry
	clear bool // "true"/"false" idiom: wipe prior entries and stop parsing more specs
}

// parseAddrSpec parses one allow-list entry string per spec §4.1:
//
//	"[ip]:port", "ip:port", "ip", "[ipv6]", "true" (any), "false" (none),
//	or a hostname (resolved to the cross-product of its A/AAAA records).
func parseAddrSpec(spec string) (parsedAddr, error) {
	trimmed := strings.TrimSpace(spec)
	switch trimmed {
	case "true":
		return parsedAddr{
			v4:    []netpolicy.Entry{{IP: net.IPv4zero, Port: 0}},
			v6:    []netpolicy.Entry{{IP: net.IPv6unspecified, Port: 0}},
			clear: true,
		}, nil
	case "false":
		return parsedAddr{clear: true}, nil
	}

	host, portStr, hasPort := splitHostPort(trimmed)
	var port uint16
	if hasPort {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return parsedAddr{}, errx.With(ErrInvalidPort, ": %q", spec)
		}
		port = uint16(p)
	}

	if host == "" {
		return parsedAddr{}, errx.With(ErrInvalidAddress, ": %q", spec)
	}

	if ip := net.ParseIP(host); ip != nil {
		entry := netpolicy.Entry{IP: ip, Port: port}
		if ip4 := ip.To4(); ip4 != nil {
			return parsedAddr{v4: []netpolicy.Entry{{IP: ip4, Port: port}}}, nil
		}
		return parsedAddr{v6: []netpolicy.Entry{entry}}, nil
	}

	// Not a literal: treat as a hostname, resolved once to the
	// cross-product of its A/AAAA records (spec §4.1).
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return parsedAddr{}, errx.With(ErrUnresolvedHost, ": %q", host)
	}
	var out parsedAddr
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			out.v4 = append(out.v4, netpolicy.Entry{IP: ip4, Port: port})
		} else {
			out.v6 = append(out.v6, netpolicy.Entry{IP: ip, Port: port})
		}
	}
	return out, nil
}

// splitHostPort understands "[ip]:port", "ip:port", "[ipv6]", and bare
// "ip"/"hostname" (no port). net.SplitHostPort rejects the no-port forms,
// so those are special-cased.
func splitHostPort(spec string) (host, port string, hasPort bool) {
	if strings.HasPrefix(spec, "[") {
		if idx := strings.Index(spec, "]"); idx >= 0 {
			host = spec[1:idx]
			rest := spec[idx+1:]
			if strings.HasPrefix(rest, ":") {
				return host, rest[1:], true
			}
			return host, "", false
		}
	}
	if h, p, err := net.SplitHostPort(spec); err == nil {
		return h, p, true
	}
	return spec, "", false
}

// buildAddrLists parses a list of raw address specs into resolved v4/v6
// allow-lists, honoring the "true"/"false" clear-and-stop idiom.
func buildAddrLists(specs []string) (v4, v6 []netpolicy.Entry, err error) {
	for _, spec := range specs {
		parsed, perr := parseAddrSpec(spec)
		if perr != nil {
			return nil, nil, perr
		}
		if parsed.clear {
			v4 = append([]netpolicy.Entry(nil), parsed.v4...)
			v6 = append([]netpolicy.Entry(nil), parsed.v6...)
			return v4, v6, nil
		}
		v4 = append(v4, parsed.v4...)
		v6 = append(v6, parsed.v6...)
	}
	return v4, v6, nil
}
