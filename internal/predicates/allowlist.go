package predicates

import (
	"strings"

	"github.com/arkhai-io/alkahest-sub000/internal/attestation"
	"github.com/arkhai-io/alkahest-sub000/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
)

// AllowList accepts string obligations whose item is in a fixed set and
// rejects every other string obligation. Attestations under other schemas
// are skipped. A zero schema accepts any schema whose payload decodes.
type AllowList struct {
	schema common.Hash
	items  map[string]struct{}
}

// NewAllowList builds an AllowList; items are compared after trimming spaces
func NewAllowList(schema common.Hash, items []string) *AllowList {
	a := &AllowList{schema: schema, items: make(map[string]struct{}, len(items))}
	for _, item := range items {
		a.items[strings.TrimSpace(item)] = struct{}{}
	}
	return a
}

// Judge implements oracle.SyncFunc
func (a *AllowList) Judge(item *oracle.AttestationWithDemand) oracle.Verdict {
	if item == nil || item.Attestation == nil {
		return oracle.Skip
	}
	if a.schema != (common.Hash{}) && item.Attestation.Schema != a.schema {
		return oracle.Skip
	}
	obligation, err := attestation.DecodeStringObligation(item.Attestation.Data)
	if err != nil {
		return oracle.Skip
	}
	_, ok := a.items[strings.TrimSpace(obligation.Item)]
	return oracle.VerdictOf(ok)
}

// Predicate adapts the allow-list for ArbitrateMany
func (a *AllowList) Predicate() oracle.Predicate {
	return oracle.Sync(a.Judge)
}
