// Package resolve maps client-facing model aliases to backend model identifiers.
package resolve

import (
	"sort"

	"ollamabridge/internal/core"
)

// ModelMapping is an immutable alias -> backend identifier table. The zero
// value is an empty mapping. It is safe for concurrent use without locking
// because nothing mutates it after construction.
type ModelMapping struct {
	entries map[string]string
}

// NewModelMapping copies entries into a new mapping. Entries with an empty
// alias or an empty backend identifier are dropped, since they could never
// resolve.
func NewModelMapping(entries map[string]string) ModelMapping {
	m := ModelMapping{entries: make(map[string]string, len(entries))}
	for alias, backend := range entries {
		if alias == "" || backend == "" {
			continue
		}
		m.entries[alias] = backend
	}
	return m
}

// Resolve returns the backend identifier for alias, or a 404-class
// *core.StatusError naming the alias when it is not mapped.
func (m ModelMapping) Resolve(alias string) (string, error) {
	if backend, ok := m.entries[alias]; ok && alias != "" {
		return backend, nil
	}
	return "", core.ErrUnresolvedModel(alias)
}

// Aliases returns the mapped aliases in sorted order.
func (m ModelMapping) Aliases() []string {
	aliases := make([]string, 0, len(m.entries))
	for alias := range m.entries {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Len returns the number of mapped aliases.
func (m ModelMapping) Len() int {
	return len(m.entries)
}
