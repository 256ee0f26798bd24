package rules

// Registry maps rule ids to rule implementations. It is a pure lookup
// table: registration completes at process start, after which the registry
// is treated as read-only, so concurrent evaluations can share it safely.
type Registry struct {
	rules map[string]PolicyRule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]PolicyRule),
	}
}

// NewDefaultRegistry creates a fresh registry populated with the shipped
// built-in rules. Callers construct custom registries for testing or
// extension; there is no process-wide default.
func NewDefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(NewEncryptionEnabledRule())
	reg.Register(NewPublicACLRule())
	reg.Register(NewPublicPolicyRule())
	reg.Register(NewSecureTransportRule())
	return reg
}

// Register inserts or replaces a rule under its own id. The last
// registration for a given id wins; overwriting is not an error.
func (r *Registry) Register(rule PolicyRule) {
	r.rules[rule.ID()] = rule
}

// Get retrieves a rule by id, returning *UnknownRuleError when absent.
func (r *Registry) Get(ruleID string) (PolicyRule, error) {
	rule, ok := r.rules[ruleID]
	if !ok {
		return nil, &UnknownRuleError{RuleID: ruleID}
	}
	return rule, nil
}

// IDs returns the registered rule ids, in no particular order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.rules))
	for id := range r.rules {
		ids = append(ids, id)
	}
	return ids
}
