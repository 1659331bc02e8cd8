package transformer

import (
	"encoding/json"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
)

// Rule derives a named JSON value from matching state events. Rules are
// data, not a type hierarchy: registering a rule is the whole extension
// surface.
type Rule struct {
	// Name is the derived row's name
	Name string
	// CodeIDsKeys restricts the rule to contracts of these code groups;
	// empty means every contract
	CodeIDsKeys []string
	// Matches decides whether the rule applies to a state event
	Matches func(event domain.StateEvent) bool
	// Extract produces the derived value for a matching event
	Extract func(event domain.StateEvent) (json.RawMessage, error)
}

// Registry holds the registered transformation rules
type Registry struct {
	rules []Rule
}

// NewRegistry creates a registry with the given rules
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{}
	r.Register(rules...)
	return r
}

// Register adds rules to the registry
func (r *Registry) Register(rules ...Rule) {
	r.rules = append(r.rules, rules...)
}

// Rules returns the registered rules
func (r *Registry) Rules() []Rule {
	return r.rules
}
