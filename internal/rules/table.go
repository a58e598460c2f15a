package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Applier renders the full active rule set into a platform enforcement
// backend. It is called only when a transaction actually changed the set.
type Applier interface {
	Apply(ctx context.Context, active []Rule) error
}

// Table is the authoritative installed rule set. The controller invokes
// it serially; the mutex only guards against read-side callers such as
// status queries.
type Table struct {
	mu      sync.Mutex
	rules   map[uint32]Rule
	applier Applier
}

// NewTable builds an empty table. A nil applier keeps the table purely
// in-memory.
func NewTable(applier Applier) *Table {
	return &Table{
		rules:   make(map[uint32]Rule),
		applier: applier,
	}
}

// Replace applies one transaction: removals first, then installs. If the
// resulting set equals the current one, no backend call is made. If the
// backend rejects the new set, the table is left at its previous state
// and the error is propagated.
func (t *Table) Replace(ctx context.Context, tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid rule transaction: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[uint32]Rule, len(t.rules)+len(tx.Add))
	for id, r := range t.rules {
		next[id] = r
	}
	for _, id := range tx.RemoveIDs {
		delete(next, id)
	}
	for _, r := range tx.Add {
		next[r.ID] = r
	}

	if equalSets(t.rules, next) {
		return nil
	}
	if t.applier != nil {
		if err := t.applier.Apply(ctx, sortedRules(next)); err != nil {
			return fmt.Errorf("apply rule set: %w", err)
		}
	}
	t.rules = next
	return nil
}

// Active returns the installed rules ordered by id.
func (t *Table) Active() []Rule {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedRules(t.rules)
}

func sortedRules(m map[uint32]Rule) []Rule {
	out := make([]Rule, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func equalSets(a, b map[uint32]Rule) bool {
	if len(a) != len(b) {
		return false
	}
	for id, r := range a {
		if other, ok := b[id]; !ok || other != r {
			return false
		}
	}
	return true
}
