// Package typeregistry implements the artifact-type classifier: mapping a
// reference path to a named type and its default TTL. The registry is
// built once at startup and is effectively immutable thereafter;
// Register/Unregister go through a reset-and-rebuild of the
// priority-ordered list under a write lock.
package typeregistry

import (
	"sort"
	"sync"
	"time"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/internal/globmatch"
)

// Type is a named classifier: an ordered set of glob patterns (first match
// within the type wins), a default TTL, and optional archive policy.
type Type struct {
	Name              string
	Patterns          []string
	DefaultTTL        time.Duration
	ArchiveAfterDays  int    // 0 means "never archive"
	ArchiveStorage    string // archive-tier target name, e.g. "s3"
	builtin           bool
	registrationOrder int
}

// Builtin reports whether this type is one of the five mandatory built-ins.
func (t Type) Builtin() bool { return t.builtin }

// builtinSpecs is the mandatory five: docs, specs, config, logs,
// schemas. Declared in registration order, which is their lookup priority
// among themselves; every custom type outranks all of them.
var builtinSpecs = []Type{
	{Name: "docs", Patterns: []string{"docs/**", "**/*.md"}, DefaultTTL: 24 * time.Hour, builtin: true},
	{Name: "specs", Patterns: []string{"specs/**", "**/*.spec.md"}, DefaultTTL: 7 * 24 * time.Hour, builtin: true},
	{Name: "config", Patterns: []string{"config/**", "**/*.config.yaml", "**/*.config.json"}, DefaultTTL: time.Hour, builtin: true},
	{Name: "logs", Patterns: []string{"logs/**", "**/*.log"}, DefaultTTL: time.Hour, builtin: true},
	{Name: "schemas", Patterns: []string{"schemas/**", "**/*.schema.json"}, DefaultTTL: 7 * 24 * time.Hour, builtin: true},
}

// defaultType is the sentinel returned when nothing matches: a 1-hour TTL,
// never present in List().
var defaultType = Type{Name: "default", DefaultTTL: time.Hour}

// Registry holds the priority-ordered type list. The zero value is not
// usable; construct with New.
type Registry struct {
	mu    sync.RWMutex
	types []Type // custom types first (higher priority), then builtins
	next  int     // next registration-order counter
}

// New builds a registry pre-seeded with the five built-in types.
func New() *Registry {
	r := &Registry{}
	r.rebuild(nil)
	return r
}

// rebuild recomputes the priority-ordered list: custom types (in the order
// given) first, builtins after, both internally stable-sorted by
// registration order. Must be called with mu held for writing.
func (r *Registry) rebuild(custom []Type) {
	all := make([]Type, 0, len(custom)+len(builtinSpecs))
	all = append(all, custom...)
	for _, b := range builtinSpecs {
		b.registrationOrder = r.next
		r.next++
		all = append(all, b)
	}
	sort.SliceStable(all, func(i, j int) bool {
		// custom types (builtin=false) always outrank builtins; among
		// equals, registration order breaks ties.
		if all[i].builtin != all[j].builtin {
			return !all[i].builtin
		}
		return all[i].registrationOrder < all[j].registrationOrder
	})
	r.types = all
}

// Register adds (or replaces, by name) a custom type. Registering a name
// that collides with a builtin fails with a ConfigInvalid error; the error
// taxonomy has no separate BuiltinImmutable code.
func (r *Registry) Register(t Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range builtinSpecs {
		if b.Name == t.Name {
			return codexerr.New(codexerr.CodeConfigInvalid, "cannot register over builtin type "+t.Name)
		}
	}

	custom := r.customTypes()
	replaced := false
	for i, existing := range custom {
		if existing.Name == t.Name {
			t.registrationOrder = existing.registrationOrder
			custom[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		t.registrationOrder = r.next
		r.next++
		custom = append(custom, t)
	}

	r.rebuildKeepingOrder(custom)
	return nil
}

// Unregister removes a custom type by name. Unregistering a builtin fails
// with a ConfigInvalid error (there is no separate BuiltinImmutable code);
// unregistering an unknown name is a no-op returning nil.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range builtinSpecs {
		if b.Name == name {
			return codexerr.New(codexerr.CodeConfigInvalid, "cannot unregister builtin type "+name)
		}
	}

	custom := r.customTypes()
	out := custom[:0:0]
	for _, t := range custom {
		if t.Name != name {
			out = append(out, t)
		}
	}
	r.rebuildKeepingOrder(out)
	return nil
}

// customTypes returns the current custom (non-builtin) types in priority
// order, a snapshot callers of Register/Unregister mutate before rebuilding.
func (r *Registry) customTypes() []Type {
	out := make([]Type, 0, len(r.types))
	for _, t := range r.types {
		if !t.builtin {
			out = append(out, t)
		}
	}
	return out
}

// rebuildKeepingOrder rebuilds the list from a custom-type slice whose
// registrationOrder fields are already set, without touching builtins'
// counters.
func (r *Registry) rebuildKeepingOrder(custom []Type) {
	all := make([]Type, 0, len(custom)+len(builtinSpecs))
	all = append(all, custom...)
	for _, b := range builtinSpecs {
		all = append(all, b)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].builtin != all[j].builtin {
			return !all[i].builtin
		}
		return all[i].registrationOrder < all[j].registrationOrder
	})
	r.types = all
}

// LookupType returns the first type whose patterns match path, scanning
// types in priority order and patterns in declaration order within each
// type. If nothing matches, it returns the sentinel default type.
func (r *Registry) LookupType(path string) Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.types {
		for _, pattern := range t.Patterns {
			if globmatch.Match(pattern, path) {
				return t
			}
		}
	}
	return defaultType
}

// LookupTTL is shorthand for LookupType(path).DefaultTTL.
func (r *Registry) LookupTTL(path string) time.Duration {
	return r.LookupType(path).DefaultTTL
}

// List returns all registered types (custom then builtin) in priority
// order. It never includes the sentinel default type.
func (r *Registry) List() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, len(r.types))
	copy(out, r.types)
	return out
}

// IsBuiltin reports whether name identifies one of the five mandatory
// built-in types.
func (r *Registry) IsBuiltin(name string) bool {
	for _, b := range builtinSpecs {
		if b.Name == name {
			return true
		}
	}
	return false
}
