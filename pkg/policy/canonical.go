package policy

import "path/filepath"

// Canonicalize turns a possibly-relative, possibly-dotted guest path into
// an absolute, normalized one: relative paths resolve against cwd,
// trailing slashes are stripped (except for "/" itself), and "." / ".."
// segments collapse (spec §4.1, §4.2 step 1).
//
// Canonicalize never expands "$HOME"/"$PWD"/"$VAR" tokens itself —
// applyDollarVars runs once, at config-parse time, over trusted CLI/TOML
// path and env literals before Build calls Canonicalize on them. Resolve
// calls Canonicalize again on guest-supplied runtime paths, which must
// never be substituted against the host environment.
//
// Canonicalize is idempotent: Canonicalize(Canonicalize(p), cwd) ==
// Canonicalize(p, cwd) (spec §8 round-trip property), since
// filepath.Clean is idempotent and an already-absolute path ignores cwd.
func Canonicalize(path, cwd string) string {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	return filepath.Clean(path)
}
