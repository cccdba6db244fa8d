package policy

// Flags reports which permission bits the matched entry carried.
type Flags struct {
	Readable bool
	Writable bool
	Symlink  bool
}

// Result is the outcome of a PathResolver lookup (spec §4.2).
type Result struct {
	Allowed  bool
	HostPath string
	Flags    Flags
}

func readableExtractor(e PathEntry) bool { return e.Readable }
func writableExtractor(e PathEntry) bool { return e.Writable }
func anyExtractor(PathEntry) bool        { return true }

func (p *Policy) resolve(guestPath, cwd string, extractor func(PathEntry) bool) Result {
	canon := Canonicalize(guestPath, cwd)
	entry, hostPath, ok := p.paths.Lookup(canon, extractor)
	if !ok {
		return Result{Allowed: false}
	}
	return Result{
		Allowed:  true,
		HostPath: hostPath,
		Flags: Flags{
			Readable: entry.Readable,
			Writable: entry.Writable,
			Symlink:  entry.Symlink,
		},
	}
}

// ResolveRead implements open_for_read (spec §4.3): PathResolver with the
// "readable" extractor.
func (p *Policy) ResolveRead(guestPath, cwd string) Result {
	return p.resolve(guestPath, cwd, readableExtractor)
}

// ResolveWrite implements open_for_write (spec §4.3): PathResolver with
// the "writable" extractor.
func (p *Policy) ResolveWrite(guestPath, cwd string) Result {
	return p.resolve(guestPath, cwd, writableExtractor)
}

// ResolveSymlink implements resolve_symlink (spec §4.3): an extractor that
// always matches, reporting the entry's symlink flag.
func (p *Policy) ResolveSymlink(guestPath, cwd string) Result {
	return p.resolve(guestPath, cwd, anyExtractor)
}

// ResolvePath is the general-purpose entry point backing spec §4.2's
// PathResolver(P) property: callers that need a custom predicate (for
// example, the VFS mediation described in invariant 5) can supply one.
func (p *Policy) ResolvePath(guestPath, cwd string, extractor func(Flags) bool) Result {
	return p.resolve(guestPath, cwd, func(e PathEntry) bool {
		return extractor(Flags{Readable: e.Readable, Writable: e.Writable, Symlink: e.Symlink})
	})
}
