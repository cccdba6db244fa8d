// Package policy builds and queries the immutable, read-only allow-lists
// that gate what a guest may see of the filesystem and the network
// (spec §3, §4.1, §4.2).
package policy

import (
	"os"
	"regexp"

	"github.com/ovmrun/hatchery/pkg/netpolicy"
)

// RawPath is one --allow-read/--allow-write/--volume style path entry
// before canonicalization.
type RawPath struct {
	VirtualPath string
	RealPath    string // defaults to VirtualPath when empty
	Readable    bool
	Writable    bool
	Symlink     bool
}

// Config is the raw, as-configured input to Build (spec §4.1): strings
// and flags straight from the CLI/TOML layer, not yet canonicalized or
// resolved.
type Config struct {
	CWD string

	Paths []RawPath

	AllowedConnectV4 []string
	AllowedConnectV6 []string
	AllowedListenV4  []string
	AllowedListenV6  []string

	EnvEntries []string
	// HostEnv overrides os.Environ() for env-glob resolution; nil means
	// use the real process environment.
	HostEnv []string
}

// Policy is the immutable, read-only result of Build. It is safe for
// concurrent use by every Sandbox hook (spec §5: "The Policy is immutable
// after construction and shared by reference").
type Policy struct {
	paths *PathMap

	connectV4 *netpolicy.Validator
	connectV6 *netpolicy.Validator
	listenV4  *netpolicy.Validator
	listenV6  *netpolicy.Validator

	env []string
}

// Env returns the resolved "KEY=VALUE" environment entries.
func (p *Policy) Env() []string { return append([]string(nil), p.env...) }

// ConnectValidator returns the connect-allow-list validator for family.
func (p *Policy) ConnectValidator(family netpolicy.Family) *netpolicy.Validator {
	if family == netpolicy.FamilyIPv4 {
		return p.connectV4
	}
	return p.connectV6
}

// ListenValidator returns the listen/bind-allow-list validator for family.
func (p *Policy) ListenValidator(family netpolicy.Family) *netpolicy.Validator {
	if family == netpolicy.FamilyIPv4 {
		return p.listenV4
	}
	return p.listenV6
}

func newValidatorV4(entries []netpolicy.Entry) *netpolicy.Validator {
	return netpolicy.New(netpolicy.FamilyIPv4, entries)
}

func newValidatorV6(entries []netpolicy.Entry) *netpolicy.Validator {
	return netpolicy.New(netpolicy.FamilyIPv6, entries)
}

var dollarVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// applyDollarVars expands "$HOME" and "$PWD" inline within a string,
// supplementing spec §4.1's glob-based env expansion with the literal
// substitution original_source's config parser also performs on path and
// environment literals before they are used
// (_examples/original_source/src/config.cpp's apply_dollar_vars). That
// function only special-cases those two names; this generalizes it to any
// "$NAME" token against the host environment, since spec §4.1's allow-env
// literals can reference arbitrary host variables, not just HOME/PWD. A
// token naming an unset variable is left untouched.
func applyDollarVars(s string) string {
	return dollarVarPattern.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[1:]
		if name == "PWD" {
			if cwd, err := os.Getwd(); err == nil {
				return cwd
			}
			return tok
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return tok
	})
}

// Build constructs a Policy from raw configuration (spec §4.1). Every
// error is a fatal construction failure; Build never returns a partially
// valid Policy.
func Build(cfg Config) (*Policy, error) {
	cwd := cfg.CWD
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		} else {
			cwd = "/"
		}
	}

	paths := &PathMap{}
	for _, raw := range cfg.Paths {
		real := raw.RealPath
		if real == "" {
			real = raw.VirtualPath
		}
		vpath := Canonicalize(applyDollarVars(raw.VirtualPath), cwd)
		rpath := Canonicalize(applyDollarVars(real), cwd)
		paths.Insert(PathEntry{
			VirtualPath: vpath,
			RealPath:    rpath,
			Readable:    raw.Readable,
			Writable:    raw.Writable,
			Symlink:     raw.Symlink,
		})
	}

	// Each list is resolved independently; a hostname spec contributes
	// whichever of its A/AAAA records match the family of the list it
	// was declared in (spec §3: allowed_connect_v4/v6 are kept separate).
	connectV4, _, err := buildAddrLists(cfg.AllowedConnectV4)
	if err != nil {
		return nil, err
	}
	_, connectV6, err := buildAddrLists(cfg.AllowedConnectV6)
	if err != nil {
		return nil, err
	}
	listenV4, _, err := buildAddrLists(cfg.AllowedListenV4)
	if err != nil {
		return nil, err
	}
	_, listenV6, err := buildAddrLists(cfg.AllowedListenV6)
	if err != nil {
		return nil, err
	}

	hostEnv := cfg.HostEnv
	if hostEnv == nil {
		hostEnv = hostEnviron()
	}

	return &Policy{
		paths:     paths,
		connectV4: newValidatorV4(connectV4),
		connectV6: newValidatorV6(connectV6),
		listenV4:  newValidatorV4(listenV4),
		listenV6:  newValidatorV6(listenV6),
		env:       resolveEnv(cfg.EnvEntries, hostEnv),
	}, nil
}
