package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// resolveEnv expands a raw --allow-env style entry list against hostEnv
// (normally os.Environ, injectable for tests) per spec §4.1: an entry
// ending in "*" selects every host variable whose name starts with the
// prefix; otherwise the entry names a single variable captured by value
// at construction time. Literal "KEY=VALUE" entries have any "$HOME",
// "$PWD", or "$VAR" token in VALUE expanded against the host environment
// (applyDollarVars, supplemented from original_source's
// apply_dollar_vars) before being passed through.
func resolveEnv(entries []string, hostEnv []string) []string {
	index := make(map[string]string, len(hostEnv))
	var names []string
	for _, kv := range hostEnv {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, exists := index[k]; !exists {
			names = append(names, k)
		}
		index[k] = v
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(entries))
	var out []string
	add := func(kv string) {
		k, _, _ := strings.Cut(kv, "=")
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, kv)
	}

	for _, entry := range entries {
		if k, v, ok := strings.Cut(entry, "="); ok {
			add(fmt.Sprintf("%s=%s", k, applyDollarVars(v)))
			continue
		}
		if strings.HasSuffix(entry, "*") {
			prefix := strings.TrimSuffix(entry, "*")
			for _, name := range names {
				if strings.HasPrefix(name, prefix) {
					add(fmt.Sprintf("%s=%s", name, index[name]))
				}
			}
			continue
		}
		if v, ok := index[entry]; ok {
			add(fmt.Sprintf("%s=%s", entry, v))
		}
	}
	return out
}

// hostEnviron is a seam for tests; production code always passes
// os.Environ().
func hostEnviron() []string { return os.Environ() }
