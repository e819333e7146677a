package graph

import (
	"errors"
	"fmt"
	"sync"
)

// AdapterRule describes how to bridge generic nodes into nodes that require
// a native backend.
type AdapterRule struct {
	// Key is the native backend the adapter belongs to.
	Key string
	// Accepts reports whether the rule can adapt source. Nil accepts all.
	Accepts func(source *Node) bool
	// New builds an adapter node for source. It runs without the context
	// lock held.
	New func(ctx *Context, source *Node) (*Node, error)
}

// AdapterRules maps native keys to adapter rules.
type AdapterRules struct {
	mu    sync.RWMutex
	rules map[string]AdapterRule
}

var errDuplicateRule = errors.New("duplicate adapter rule")

// NewAdapterRules creates an empty rule set.
func NewAdapterRules() *AdapterRules {
	return &AdapterRules{rules: make(map[string]AdapterRule)}
}

// DefaultAdapterRules returns a rule set holding VoiceRule.
func DefaultAdapterRules() *AdapterRules {
	r := NewAdapterRules()
	r.MustRegister(VoiceRule())
	return r
}

// Register adds a rule.
func (r *AdapterRules) Register(rule AdapterRule) error {
	if rule.Key == "" {
		return errors.New("empty native key")
	}

	if rule.New == nil {
		return errors.New("nil adapter constructor")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.Key]; exists {
		return fmt.Errorf("%w: %s", errDuplicateRule, rule.Key)
	}

	r.rules[rule.Key] = rule

	return nil
}

// MustRegister is like Register but panics on error.
func (r *AdapterRules) MustRegister(rule AdapterRule) {
	err := r.Register(rule)
	if err != nil {
		panic("graph adapter rules: " + err.Error())
	}
}

// Lookup returns the rule for key.
func (r *AdapterRules) Lookup(key string) (AdapterRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[key]
	return rule, ok
}
