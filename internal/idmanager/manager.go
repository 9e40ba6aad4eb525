// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package idmanager normalizes scholarly identifiers (DOI, PMCID, PMID,
// arXiv, ORCID) and resolves their validity through the validity cache and,
// when allowed, a remote authority.
package idmanager

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/citeconv/internal/logger"
	"github.com/pdiddy/citeconv/internal/validity"
	"github.com/pdiddy/citeconv/pkg/types"
)

// Authority answers whether an identifier exists at its registration agency.
type Authority interface {
	Exists(ctx context.Context, id types.NormalizedIdentifier) (bool, error)
}

// Manager normalizes identifiers and tracks their validity. Once an
// identifier is resolved it is written to the cache and never re-resolved.
type Manager struct {
	cache  validity.Cache
	auth   Authority
	wanted map[string]bool
	log    logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithAuthority enables remote validation. Without it the manager is
// offline and never resolves unknown identifiers.
func WithAuthority(a Authority) Option {
	return func(m *Manager) { m.auth = a }
}

// WithWanted restricts managed DOIs to the given canonical ids.
func WithWanted(ids map[string]bool) Option {
	return func(m *Manager) { m.wanted = ids }
}

// WithLogger sets the logger for swallowed cache and authority errors.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New returns a Manager backed by cache.
func New(cache validity.Cache, opts ...Option) *Manager {
	m := &Manager{cache: cache, log: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Offline reports whether remote validation is disabled.
func (m *Manager) Offline() bool { return m.auth == nil }

// Normalize returns the canonical form of raw tagged with the validity the
// cache currently holds. It never calls the authority. It reports false for
// unmanaged schemes, malformed values and DOIs outside the wanted list.
func (m *Manager) Normalize(ctx context.Context, raw types.RawIdentifier) (types.NormalizedIdentifier, bool) {
	scheme, id, ok := Canonical(raw.Schema, raw.ID)
	if !ok {
		return types.NormalizedIdentifier{}, false
	}
	if scheme == SchemeDOI && m.wanted != nil && !m.wanted[id] {
		return types.NormalizedIdentifier{}, false
	}
	return types.NormalizedIdentifier{
		ID:       id,
		Scheme:   scheme,
		Validity: m.stored(ctx, id),
	}, true
}

// NormalizeAll normalizes raws, dropping unmanaged ones and duplicates.
func (m *Manager) NormalizeAll(ctx context.Context, raws []types.RawIdentifier) []types.NormalizedIdentifier {
	var out []types.NormalizedIdentifier
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		n, ok := m.Normalize(ctx, raw)
		if !ok || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}

// ResolveBulk reports which identifiers of kind in raws the cache already
// knows as valid or invalid. Unresolved ones are left out.
func (m *Manager) ResolveBulk(ctx context.Context, raws []types.RawIdentifier, kind types.IDKind) types.ValidityList {
	list := types.ValidityList{Kind: kind}
	for _, n := range m.NormalizeAll(ctx, raws) {
		if KindOf(n.Scheme) != kind {
			continue
		}
		switch n.Validity {
		case types.Valid:
			list.Valid = append(list.Valid, n.ID)
		case types.Invalid:
			list.Invalid = append(list.Invalid, n.ID)
		}
	}
	return list
}

// Validate resolves id: a cached disposition is returned as is, otherwise
// the authority is asked and its answer cached. Authority failures leave
// the identifier unresolved and uncached.
func (m *Manager) Validate(ctx context.Context, id types.NormalizedIdentifier) types.Validity {
	if v := m.stored(ctx, id.ID); v != types.Unresolved {
		return v
	}
	if m.auth == nil {
		return types.Unresolved
	}

	exists, err := m.auth.Exists(ctx, id)
	if err != nil {
		m.log.Debug("authority lookup failed", zap.String("id", id.ID), zap.Error(err))
		return types.Unresolved
	}
	if err := m.cache.Put(ctx, id.ID, exists); err != nil {
		m.log.Warn("caching validity failed", zap.String("id", id.ID), zap.Error(err))
	}
	return types.ValidityOf(exists)
}

// Admit reports whether id may be used in an output row. Offline, a
// syntactically valid but unresolved identifier is admitted.
func (m *Manager) Admit(ctx context.Context, id types.NormalizedIdentifier) bool {
	switch m.Validate(ctx, id) {
	case types.Valid:
		return true
	case types.Unresolved:
		return m.Offline()
	default:
		return false
	}
}

// Persist flushes the underlying cache.
func (m *Manager) Persist(ctx context.Context) error {
	return m.cache.Persist(ctx)
}

func (m *Manager) stored(ctx context.Context, id string) types.Validity {
	v, err := m.cache.Get(ctx, id)
	if err != nil {
		m.log.Debug("cache read failed", zap.String("id", id), zap.Error(err))
		return types.Unresolved
	}
	return v
}
