package transformer

import (
	"encoding/json"
	"fmt"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/wasm"
)

// contractInfoKey is the canonical form of the "contract_info" state key
// most cw2-conformant contracts write their version metadata under
var contractInfoKey = wasm.CanonicalKey([]byte("contract_info"))

// ContractInfoRule mirrors each contract's cw2 version entry into a derived
// row, so version queries skip the raw event table.
func ContractInfoRule() Rule {
	return Rule{
		Name: "contractInfo",
		Matches: func(event domain.StateEvent) bool {
			return event.Key == contractInfoKey && !event.Delete && event.ValueJSON != nil
		},
		Extract: func(event domain.StateEvent) (json.RawMessage, error) {
			return event.ValueJSON, nil
		},
	}
}

// JSONKeyRule snapshots the JSON value written under the given state key for
// the given code groups. The derived row takes the given name.
func JSONKeyRule(name string, key []byte, codeIDsKeys []string) Rule {
	canonical := wasm.CanonicalKey(key)
	return Rule{
		Name:        name,
		CodeIDsKeys: codeIDsKeys,
		Matches: func(event domain.StateEvent) bool {
			return event.Key == canonical && !event.Delete && event.ValueJSON != nil
		},
		Extract: func(event domain.StateEvent) (json.RawMessage, error) {
			if event.ValueJSON == nil {
				return nil, fmt.Errorf("no JSON value for key %s", canonical)
			}
			return event.ValueJSON, nil
		},
	}
}
