package storage

import (
	"context"
	"sort"

	"github.com/fractary/codex/internal/codexerr"
	"github.com/fractary/codex/internal/telemetry"
	"github.com/fractary/codex/reference"
)

// Manager selects among registered Providers by ascending priority (ties
// broken by registration order) and implements the ordered-failover rule.
type Manager struct {
	providers []Provider // registration order, re-sorted on Register
}

// NewManager builds an empty Manager; use Register to add providers.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a provider, keeping the list sorted by ascending priority
// with registration order as the tie-breaker (a stable sort, since
// providers already present retain their relative order).
func (m *Manager) Register(p Provider) {
	m.providers = append(m.providers, p)
	sort.SliceStable(m.providers, func(i, j int) bool {
		return m.providers[i].Priority() < m.providers[j].Priority()
	})
}

// Providers returns the current priority-ordered provider list.
func (m *Manager) Providers() []Provider {
	out := make([]Provider, len(m.providers))
	copy(out, m.providers)
	return out
}

// Fetch iterates providers that CanHandle ref in priority order. A
// recoverable failure (NotFound, Transport) falls through to the next
// provider; Unauthorized or ContentTooLarge fail fast. No claiming provider
// means NoProvider. The winning provider's name is recorded on
// the result's Source field for telemetry.
func (m *Manager) Fetch(ctx context.Context, ref reference.Resolved, opts FetchOptions) (Result, error) {
	log := telemetry.WithComponent("storage-manager").WithField("uri", ref.String())

	claimed := false
	var lastErr error
	for _, p := range m.providers {
		if !p.CanHandle(ref) {
			continue
		}
		claimed = true

		result, err := p.Fetch(ctx, ref, opts)
		if err == nil {
			result.Source = p.Name()
			log.WithField("provider", p.Name()).Debug("fetch succeeded")
			return result, nil
		}

		lastErr = err
		if !codexerr.IsRecoverable(err) {
			log.WithField("provider", p.Name()).WithError(err).Debug("fetch failed fast (non-recoverable)")
			return Result{}, err
		}
		log.WithField("provider", p.Name()).WithError(err).Debug("fetch failed, trying next provider")
	}

	if !claimed {
		return Result{}, codexerr.New(codexerr.CodeNoProvider, "no provider claims "+ref.String())
	}
	return Result{}, lastErr
}

// Exists returns false as soon as any claiming provider reports absence
// (it does not fall through on NotFound the way Fetch does), and true on
// first positive.
func (m *Manager) Exists(ctx context.Context, ref reference.Resolved) (bool, error) {
	claimed := false
	for _, p := range m.providers {
		if !p.CanHandle(ref) {
			continue
		}
		claimed = true

		ok, err := p.Exists(ctx, ref)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		return false, nil
	}

	if !claimed {
		return false, codexerr.New(codexerr.CodeNoProvider, "no provider claims "+ref.String())
	}
	return false, nil
}
