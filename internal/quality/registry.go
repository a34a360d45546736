package quality

import (
	"fmt"

	"SourceGuard/internal/domain"
)

// Rule is one independent check over a prepared document.
type Rule interface {
	Name() string
	Check(doc *Document) []domain.QualityFinding
}

// RuleFunc adapts a plain function into a Rule.
type RuleFunc struct {
	name  string
	check func(doc *Document) []domain.QualityFinding
}

// NewRule wraps check under the given name.
func NewRule(name string, check func(doc *Document) []domain.QualityFinding) RuleFunc {
	return RuleFunc{name: name, check: check}
}

func (r RuleFunc) Name() string { return r.name }

func (r RuleFunc) Check(doc *Document) []domain.QualityFinding { return r.check(doc) }

// Registry keeps rules in registration order so reports are stable.
type Registry struct {
	rules []Rule
	index map[string]int
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: map[string]int{}}
}

// Register adds a rule, or replaces the rule of the same name in place.
func (r *Registry) Register(rule Rule) {
	if r.index == nil {
		r.index = map[string]int{}
	}
	if i, ok := r.index[rule.Name()]; ok {
		r.rules[i] = rule
		return
	}
	r.index[rule.Name()] = len(r.rules)
	r.rules = append(r.rules, rule)
}

// Resolve returns a rule by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Rule, error) {
	if i, ok := r.index[name]; ok {
		return r.rules[i], nil
	}
	return nil, fmt.Errorf("rule %s is not registered: %w", name, domain.ErrNotFound)
}

// Rules returns the registered rules in order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// DefaultRegistry registers the standard rule set.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	for _, rule := range []Rule{
		NewRule("meta", checkMeta),
		NewRule("sections", checkSections),
		NewRule("keyword", checkKeyword),
		NewRule("markup", checkMarkup),
		NewRule("hrefs", checkHrefs),
		NewRule("citations", checkCitations),
		NewRule("sources", checkSources),
		NewRule("structure", checkStructure),
		NewRule("internal_links", checkInternalLinks),
	} {
		reg.Register(rule)
	}
	return reg
}
