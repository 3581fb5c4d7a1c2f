package typeregistry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsPresentWithDefaultTTLs(t *testing.T) {
	r := New()
	want := map[string]time.Duration{
		"docs":    24 * time.Hour,
		"specs":   7 * 24 * time.Hour,
		"config":  time.Hour,
		"logs":    time.Hour,
		"schemas": 7 * 24 * time.Hour,
	}
	for name, ttl := range want {
		assert.True(t, r.IsBuiltin(name))
		found := false
		for _, ty := range r.List() {
			if ty.Name == name {
				found = true
				assert.Equal(t, ttl, ty.DefaultTTL)
			}
		}
		assert.Truef(t, found, "expected builtin %s in List()", name)
	}
}

func TestLookupUnknownPathReturnsOneHourDefault(t *testing.T) {
	r := New()
	ty := r.LookupType("totally/unmatched/path.bin")
	assert.Equal(t, "default", ty.Name)
	assert.Equal(t, time.Hour, ty.DefaultTTL)
}

func TestCustomTypeOutranksBuiltin(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Type{
		Name:       "fast-docs",
		Patterns:   []string{"docs/**"},
		DefaultTTL: 5 * time.Minute,
	}))

	ty := r.LookupType("docs/readme.md")
	assert.Equal(t, "fast-docs", ty.Name)
	assert.Equal(t, 5*time.Minute, ty.DefaultTTL)
}

func TestUnregisterBuiltinFails(t *testing.T) {
	r := New()
	err := r.Unregister("docs")
	require.Error(t, err)
}

func TestUnregisterCustomType(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Type{Name: "tmp", Patterns: []string{"tmp/**"}, DefaultTTL: time.Minute}))
	require.NoError(t, r.Unregister("tmp"))
	ty := r.LookupType("tmp/file.txt")
	assert.NotEqual(t, "tmp", ty.Name)
}

func TestFirstMatchWinsWithinType(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Type{
		Name:       "ordered",
		Patterns:   []string{"a/*.txt", "a/**"},
		DefaultTTL: time.Minute,
	}))
	ty := r.LookupType("a/b.txt")
	assert.Equal(t, "ordered", ty.Name)
}
