// Package tags provides a validating facade over the store's
// polymorphic tagging tables, closing the Kind enum the store itself
// leaves open to any string.
package tags

import (
	"context"
	"fmt"

	"github.com/brunobiangulo/docintel/store"
)

var validKinds = map[store.TagKind]bool{
	store.TagKindDocument:   true,
	store.TagKindChunk:      true,
	store.TagKindImage:      true,
	store.TagKindExtraction: true,
	store.TagKindCluster:    true,
}

// Manager applies and queries tags against a store, rejecting kinds
// outside the closed set.
type Manager struct {
	store *store.Store
}

func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Apply tags a target, validating kind first so a typo doesn't
// silently create an orphaned tag association.
func (m *Manager) Apply(ctx context.Context, name string, kind store.TagKind, targetID int64) error {
	if !validKinds[kind] {
		return fmt.Errorf("tags: invalid kind %q", kind)
	}
	return m.store.TagTarget(ctx, name, kind, targetID)
}

// Remove untags a target.
func (m *Manager) Remove(ctx context.Context, name string, kind store.TagKind, targetID int64) error {
	if !validKinds[kind] {
		return fmt.Errorf("tags: invalid kind %q", kind)
	}
	return m.store.UntagTarget(ctx, name, kind, targetID)
}

// For returns every tag name on a target.
func (m *Manager) For(ctx context.Context, kind store.TagKind, targetID int64) ([]string, error) {
	return m.store.GetTagsForTarget(ctx, kind, targetID)
}

// Targets returns every (kind, id) pair carrying a tag, grouped by kind.
func (m *Manager) Targets(ctx context.Context, name string) (map[store.TagKind][]int64, error) {
	tagged, err := m.store.GetTargetsForTag(ctx, name)
	if err != nil {
		return nil, err
	}
	byKind := map[store.TagKind][]int64{}
	for _, t := range tagged {
		byKind[t.Kind] = append(byKind[t.Kind], t.TargetID)
	}
	return byKind, nil
}
