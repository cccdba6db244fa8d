package policy

import (
	"sort"
	"strings"
)

// PathEntry is one allowed virtual-path mapping.
type PathEntry struct {
	VirtualPath string
	RealPath    string
	Readable    bool
	Writable    bool
	Symlink     bool
}

// PathMap is an ordered set of PathEntry keyed by virtual path, kept
// sorted under the segment-wise comparator described in spec §3: the
// path separator sorts below any byte that can appear inside a path
// segment, so "/foo/bar" < "/foo./bar" even though '.' < '/' in byte
// order. This ordering is what makes the longest-prefix search in
// Lookup correct (spec §4.2, §9).
type PathMap struct {
	keys    []string // segment-wise sort keys, parallel to entries
	entries []PathEntry
}

// segKey maps a canonical absolute path to a string that sorts correctly
// under the segment-wise comparator: '/' becomes NUL, which is lower
// than every other byte a path segment can legally contain.
func segKey(path string) string {
	return strings.ReplaceAll(path, "/", "\x00")
}

// Insert adds or merges entry into the map, keeping it sorted by segKey.
// Duplicate virtual paths merge by unioning their r/w/symlink bits
// (spec §4.1): "Duplicates merge: the union of r/w/symlink bits wins."
func (m *PathMap) Insert(entry PathEntry) {
	key := segKey(entry.VirtualPath)
	i := sort.SearchStrings(m.keys, key)
	if i < len(m.keys) && m.keys[i] == key {
		existing := &m.entries[i]
		existing.Readable = existing.Readable || entry.Readable
		existing.Writable = existing.Writable || entry.Writable
		existing.Symlink = existing.Symlink || entry.Symlink
		if entry.RealPath != "" {
			existing.RealPath = entry.RealPath
		}
		return
	}
	m.keys = append(m.keys, "")
	m.entries = append(m.entries, PathEntry{})
	copy(m.keys[i+1:], m.keys[i:])
	copy(m.entries[i+1:], m.entries[i:])
	m.keys[i] = key
	m.entries[i] = entry
}

// Len reports the number of distinct virtual paths in the map.
func (m *PathMap) Len() int { return len(m.entries) }

// Entries returns the map's entries in segment-wise sorted order.
func (m *PathMap) Entries() []PathEntry {
	return append([]PathEntry(nil), m.entries...)
}

// isComponentPrefix reports whether k is a prefix of p measured over path
// components, not bytes: "/foo" is a prefix of "/foo/bar" but not of
// "/foobar" (spec §8 boundary behavior).
func isComponentPrefix(k, p string) bool {
	if k == p {
		return true
	}
	if k == "/" {
		return strings.HasPrefix(p, "/")
	}
	return strings.HasPrefix(p, k+"/")
}

// commonComponentPrefix returns the longest path that is a component-wise
// prefix of both a and b.
func commonComponentPrefix(a, b string) string {
	as := strings.Split(strings.Trim(a, "/"), "/")
	bs := strings.Split(strings.Trim(b, "/"), "/")
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	var shared []string
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			break
		}
		shared = append(shared, as[i])
	}
	if len(shared) == 0 {
		return "/"
	}
	return "/" + strings.Join(shared, "/")
}

// Lookup implements the §4.2 longest-prefix search: find the greatest key
// K <= P under the segment-wise comparator; if K is a component-wise
// prefix of P, apply extractor to its entry. If extractor rejects the
// entry, restart the search from the common component prefix of K and P
// (dropping one segment from K) so nested overlapping permissions with
// different flags resolve correctly (spec Scenario C). Iterations are
// bounded by the map size; exceeding the bound denies (fails safe).
func (m *PathMap) Lookup(canonicalPath string, extractor func(PathEntry) bool) (PathEntry, string, bool) {
	candidate := canonicalPath
	maxIter := m.Len() + 1
	for iter := 0; iter < maxIter; iter++ {
		if m.Len() == 0 {
			return PathEntry{}, "", false
		}
		key := segKey(candidate)
		idx := sort.SearchStrings(m.keys, key)
		// SearchStrings returns the first index with keys[idx] >= key.
		// We want the greatest key <= candidate's key (upper_bound, then
		// step back), so back off one more unless we landed on an exact
		// hit.
		if idx == len(m.keys) || m.keys[idx] != key {
			idx--
		}
		if idx < 0 {
			return PathEntry{}, "", false
		}
		entry := m.entries[idx]
		if isComponentPrefix(entry.VirtualPath, canonicalPath) {
			if extractor(entry) {
				suffix := strings.TrimPrefix(canonicalPath, entry.VirtualPath)
				return entry, joinHostPath(entry.RealPath, suffix), true
			}
			shared := commonComponentPrefix(entry.VirtualPath, canonicalPath)
			if shared == "/" {
				return PathEntry{}, "", false
			}
			candidate = parentOf(shared)
			continue
		}
		parent := parentOf(candidate)
		if parent == candidate {
			return PathEntry{}, "", false
		}
		candidate = parent
	}
	return PathEntry{}, "", false
}

func joinHostPath(realPath, suffix string) string {
	if suffix == "" {
		return realPath
	}
	return strings.TrimSuffix(realPath, "/") + suffix
}

func parentOf(path string) string {
	if path == "/" || path == "" {
		return "/"
	}
	idx := strings.LastIndex(strings.TrimSuffix(path, "/"), "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}
