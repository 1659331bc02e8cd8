package allowlist

import (
	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/registry"
)

// Rule restricts which state keys are persisted for the contracts of a set
// of code groups
type Rule struct {
	// CodeIDsKeys are symbolic code-group names, resolved through the
	// wasm-code registry
	CodeIDsKeys []string
	// StateKeys are the permitted keys, in canonical form
	StateKeys []string
}

// Filter applies a chain's allowlist rules to resolved state events.
//
// A rule only constrains contracts whose code ID is in its resolved set.
// When several rules cover the same code ID, an event must satisfy all of
// them: overlapping rules tighten, never widen. Events with an unresolved
// code ID always pass; the filter keeps no state, so an event that passed
// this way is not judged again once its contract's code ID is known.
type Filter struct {
	rules []compiledRule
}

type compiledRule struct {
	codeIDs   map[uint64]struct{}
	stateKeys map[string]struct{}
}

// New compiles the rules for one chain against the current registry state.
// Build a fresh filter per batch so tracker updates take effect.
func New(rules []Rule, reg registry.WasmCodeRegistry) *Filter {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		keys := make(map[string]struct{}, len(rule.StateKeys))
		for _, k := range rule.StateKeys {
			keys[k] = struct{}{}
		}
		compiled = append(compiled, compiledRule{
			codeIDs:   reg.CodeIDsForKeys(rule.CodeIDsKeys),
			stateKeys: keys,
		})
	}
	return &Filter{rules: compiled}
}

// Keep reports whether a state event passes every applicable rule
func (f *Filter) Keep(event domain.StateEvent) bool {
	if event.CodeID == domain.CodeIDUnknown {
		return true
	}
	for _, rule := range f.rules {
		if _, covered := rule.codeIDs[event.CodeID]; !covered {
			continue
		}
		if _, allowed := rule.stateKeys[event.Key]; !allowed {
			return false
		}
	}
	return true
}

// Apply returns the batch's state events that pass, in their original
// order; the input slice is not modified
func (f *Filter) Apply(events []domain.StateEvent) []domain.StateEvent {
	if len(f.rules) == 0 {
		return events
	}
	kept := events[:0:0]
	for _, event := range events {
		if f.Keep(event) {
			kept = append(kept, event)
		}
	}
	return kept
}
