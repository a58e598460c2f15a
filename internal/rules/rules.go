// Package rules manages the redirect rule set that gates the fixed
// domains. Rules are applied in whole-set replace transactions so the
// installed set is never observably half-applied.
package rules

import (
	"context"
	"errors"
	"fmt"
)

// GatedDomains is the fixed domain set. Index order matches the stable
// rule identifiers 1..3.
var GatedDomains = []string{"x.com", "twitter.com", "t.co"}

// Rule redirects one gated domain to the local informational page.
type Rule struct {
	ID          uint32 `json:"id"`
	Domain      string `json:"domain"`
	RedirectURL string `json:"redirect_url"`
}

// Transaction removes and installs rules as a single unit.
type Transaction struct {
	RemoveIDs []uint32
	Add       []Rule
}

// Engine applies transactions to an installed rule set. Replace either
// fully applies the transaction or leaves the set untouched; both
// directions are idempotent (re-installing an identical rule or removing
// an absent id is a no-op).
type Engine interface {
	Replace(ctx context.Context, tx Transaction) error
	Active() []Rule
}

// BlockSet builds the full redirect rule set for the gated domains.
func BlockSet(redirectURL string) []Rule {
	set := make([]Rule, 0, len(GatedDomains))
	for i, domain := range GatedDomains {
		set = append(set, Rule{
			ID:          uint32(i + 1),
			Domain:      domain,
			RedirectURL: redirectURL,
		})
	}
	return set
}

// BlockTransaction replaces whatever is installed with the full block
// set.
func BlockTransaction(redirectURL string) Transaction {
	return Transaction{RemoveIDs: allIDs(), Add: BlockSet(redirectURL)}
}

// AllowTransaction removes the full block set.
func AllowTransaction() Transaction {
	return Transaction{RemoveIDs: allIDs()}
}

func allIDs() []uint32 {
	ids := make([]uint32, 0, len(GatedDomains))
	for i := range GatedDomains {
		ids = append(ids, uint32(i+1))
	}
	return ids
}

// Validate rejects transactions that could not be applied atomically.
func (tx Transaction) Validate() error {
	seen := make(map[uint32]bool, len(tx.Add))
	for _, r := range tx.Add {
		if r.ID == 0 {
			return errors.New("rule id must be positive")
		}
		if r.Domain == "" {
			return fmt.Errorf("rule %d has empty domain", r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule id %d in transaction", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
