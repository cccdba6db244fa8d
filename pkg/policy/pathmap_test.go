package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSegmentWiseOrderingSeparatorEdgeCase covers spec §9's required unit
// test matrix: the path separator must sort below any character that can
// appear inside a segment, so "/foo/bar" < "/foo./bar" even though '.'
// sorts below '/' in plain byte order.
func TestSegmentWiseOrderingSeparatorEdgeCase(t *testing.T) {
	m := &PathMap{}
	m.Insert(PathEntry{VirtualPath: "/foo./bar", RealPath: "/real/dotbar", Readable: true})
	m.Insert(PathEntry{VirtualPath: "/foo/bar", RealPath: "/real/bar", Readable: true})
	m.Insert(PathEntry{VirtualPath: "/foo", RealPath: "/real/foo", Readable: true})
	m.Insert(PathEntry{VirtualPath: "/foobar", RealPath: "/real/foobar", Readable: true})

	entries := m.Entries()
	var order []string
	for _, e := range entries {
		order = append(order, e.VirtualPath)
	}
	require.Equal(t, []string{"/foo", "/foo/bar", "/foo./bar", "/foobar"}, order)
}

func TestPathMapInsertMergesDuplicateFlags(t *testing.T) {
	m := &PathMap{}
	m.Insert(PathEntry{VirtualPath: "/a/b", RealPath: "/real/a/b", Readable: true})
	m.Insert(PathEntry{VirtualPath: "/a/b", RealPath: "/real/a/b", Writable: true})

	require.Equal(t, 1, m.Len())
	e := m.Entries()[0]
	require.True(t, e.Readable)
	require.True(t, e.Writable)
}

// TestLongestPrefixScenarioC implements spec §8 Scenario C literally.
func TestLongestPrefixScenarioC(t *testing.T) {
	m := &PathMap{}
	m.Insert(PathEntry{VirtualPath: "/a/b", RealPath: "/real/b", Readable: true})
	m.Insert(PathEntry{VirtualPath: "/a/b/c", RealPath: "/real/c", Writable: true})

	entry, host, ok := m.Lookup("/a/b/c/d", writableExtractor)
	require.True(t, ok)
	require.Equal(t, "/a/b/c", entry.VirtualPath)
	require.Equal(t, "/real/c/d", host)

	_, _, ok = m.Lookup("/a/b/x", writableExtractor)
	require.False(t, ok)

	entry, host, ok = m.Lookup("/a/b/x", readableExtractor)
	require.True(t, ok)
	require.Equal(t, "/a/b", entry.VirtualPath)
	require.Equal(t, "/real/b/x", host)
}

func TestPrefixIsComponentWiseNotByteWise(t *testing.T) {
	m := &PathMap{}
	m.Insert(PathEntry{VirtualPath: "/foo", RealPath: "/real/foo", Readable: true})

	_, _, ok := m.Lookup("/foobar", readableExtractor)
	require.False(t, ok, "/foo must not be treated as a prefix of /foobar")

	_, _, ok = m.Lookup("/foo/bar", readableExtractor)
	require.True(t, ok)
}

func TestLookupEmptyMapDenies(t *testing.T) {
	m := &PathMap{}
	_, _, ok := m.Lookup("/anything", readableExtractor)
	require.False(t, ok)
}

func TestLookupNoMatchingAncestorDenies(t *testing.T) {
	m := &PathMap{}
	m.Insert(PathEntry{VirtualPath: "/etc", RealPath: "/real/etc", Readable: true})

	_, _, ok := m.Lookup("/var/log", readableExtractor)
	require.False(t, ok)
}
