// Package space implements the shared fact and rule store. Facts and rules
// live in one canonically-keyed trie; rules are additionally indexed by
// (head symbol, arity) so candidate selection is O(k) in the number of
// candidates rather than O(total rules). All mutation goes through one
// coarse lock held only for the minimal critical section.
package space

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"

	"github.com/chazu/weft/codec"
	"github.com/chazu/weft/trie"
	"github.com/chazu/weft/unify"
	"github.com/chazu/weft/value"
)

var log = commonlog.GetLogger("weft.space")

// RuleHead is the head symbol of the expression form rules are stored
// under: (= pattern template).
const RuleHead = "="

var (
	// ErrNotGround is returned when a fact contains variables.
	ErrNotGround = errors.New("space: facts must be ground")
	// ErrStoreFailed is returned once a mutation has faulted mid critical
	// section; the store refuses further mutation.
	ErrStoreFailed = errors.New("space: store failed during a previous mutation")
)

// Rule pairs a pattern with the template it rewrites to.
type Rule struct {
	Pattern  value.Value
	Template value.Value
}

// Expr returns the (= pattern template) expression form of the rule.
func (r Rule) Expr() value.Expr {
	return value.NewExpr(value.Symbol(RuleHead), r.Pattern, r.Template)
}

// AsRule decomposes a (= pattern template) expression, reporting whether v
// has that shape.
func AsRule(v value.Value) (Rule, bool) {
	head, arity, ok := value.HeadArity(v)
	if !ok || head != RuleHead || arity != 2 {
		return Rule{}, false
	}
	e := v.(value.Expr)
	return Rule{Pattern: e[1], Template: e[2]}, true
}

type indexKey struct {
	head  string
	arity int
}

// Space is the shared store of facts and rules.
type Space struct {
	mu       sync.RWMutex
	trie     *trie.Trie
	headed   map[indexKey][]Rule // insertion order preserved per key
	wildcard []Rule              // rules whose pattern has no concrete head
	mult     map[xxh3.Uint128]int
	failed   atomic.Bool
}

// New creates an empty space.
func New() *Space {
	return &Space{
		trie:   trie.New(),
		headed: make(map[indexKey][]Rule),
		mult:   make(map[xxh3.Uint128]int),
	}
}

// mutate runs fn under the store lock. A panic inside the critical section
// marks the store failed; all later mutation is refused.
func (s *Space) mutate(fn func() error) error {
	if s.failed.Load() {
		return ErrStoreFailed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.failed.Store(true)
			panic(r)
		}
	}()
	return fn()
}

// ---------------------------------------------------------------------------
// Assertion
// ---------------------------------------------------------------------------

// AssertFact stores a ground value. Duplicate asserts are idempotent.
// A ground (= pattern template) expression is still a rule and is routed
// through rule handling so the index stays in step with the trie.
func (s *Space) AssertFact(v value.Value) error {
	if rule, ok := AsRule(v); ok {
		return s.AssertRule(rule.Pattern, rule.Template)
	}
	if !value.IsGround(v) {
		return fmt.Errorf("%w: %s", ErrNotGround, v)
	}
	key := codec.Encode(v)
	return s.mutate(func() error {
		if s.trie.Insert(key) {
			log.Debugf("assert fact %s", v)
		}
		return nil
	})
}

// AssertRule stores a rewrite rule as the fact (= pattern template) and
// registers it in the rule index in the same critical section, so the index
// is never observably out of step with the trie. Re-asserting a rule bumps
// its multiplicity.
func (s *Space) AssertRule(pattern, template value.Value) error {
	rule := Rule{Pattern: pattern, Template: template}
	key := codec.Encode(rule.Expr())
	return s.mutate(func() error {
		s.insertRuleLocked(rule, key)
		return nil
	})
}

// Assert stores any value, dispatching (= pattern template) expressions to
// rule handling and everything else to fact handling.
func (s *Space) Assert(v value.Value) error {
	if rule, ok := AsRule(v); ok {
		return s.AssertRule(rule.Pattern, rule.Template)
	}
	return s.AssertFact(v)
}

// insertRuleLocked adds a rule under an already-held lock.
func (s *Space) insertRuleLocked(rule Rule, key []byte) {
	s.trie.Insert(key)
	id := xxh3.Hash128(key)
	s.mult[id]++
	if s.mult[id] > 1 {
		return
	}
	if head, arity, ok := value.HeadArity(rule.Pattern); ok {
		k := indexKey{head: head, arity: arity}
		s.headed[k] = append(s.headed[k], rule)
		log.Debugf("register rule %s (head=%s arity=%d)", rule.Pattern, head, arity)
	} else {
		s.wildcard = append(s.wildcard, rule)
		log.Debugf("register wildcard rule %s", rule.Pattern)
	}
}

// AssertBulk stores a batch of values in a single pass: keys are encoded
// and assembled into a private sub-trie outside the lock, and only the
// final join with the shared trie runs inside the critical section. The
// result is identical to asserting the items one at a time in any order.
// An empty batch is a no-op and takes no lock.
func (s *Space) AssertBulk(items []value.Value) error {
	if len(items) == 0 {
		return nil
	}

	keys := make([][]byte, 0, len(items))
	type pendingRule struct {
		rule Rule
		key  []byte
	}
	var rules []pendingRule
	for _, v := range items {
		if rule, ok := AsRule(v); ok {
			// Rules carry multiplicity bookkeeping, so they are
			// registered individually under the lock below.
			rules = append(rules, pendingRule{rule: rule, key: codec.Encode(v)})
			continue
		}
		if !value.IsGround(v) {
			return fmt.Errorf("%w: %s", ErrNotGround, v)
		}
		keys = append(keys, codec.Encode(v))
	}

	// Built from private, unshared memory; no lock held.
	sub := trie.Build(keys)

	return s.mutate(func() error {
		s.trie.Join(sub)
		for _, p := range rules {
			s.insertRuleLocked(p.rule, p.key)
		}
		log.Debugf("bulk assert: %d facts, %d rules", len(keys), len(rules))
		return nil
	})
}

// ---------------------------------------------------------------------------
// Retraction
// ---------------------------------------------------------------------------

// Retract removes a fact or rule, reporting whether it was present. For a
// rule asserted n times, each retract decrements the multiplicity; the rule
// leaves the trie and the index only when the count reaches zero.
func (s *Space) Retract(v value.Value) (bool, error) {
	present := false
	err := s.mutate(func() error {
		rule, isRule := AsRule(v)
		if !isRule {
			present = s.trie.Delete(codec.Encode(v))
			return nil
		}

		key := codec.Encode(v)
		id := xxh3.Hash128(key)
		count := s.mult[id]
		if count == 0 {
			return nil
		}
		present = true
		if count > 1 {
			s.mult[id] = count - 1
			return nil
		}
		delete(s.mult, id)
		s.trie.Delete(key)
		s.unregisterLocked(rule)
		return nil
	})
	return present, err
}

// unregisterLocked removes a rule from the index under an already-held lock.
func (s *Space) unregisterLocked(rule Rule) {
	expr := rule.Expr()
	if head, arity, ok := value.HeadArity(rule.Pattern); ok {
		k := indexKey{head: head, arity: arity}
		bucket := s.headed[k]
		for i, r := range bucket {
			if r.Expr().Equal(expr) {
				s.headed[k] = append(bucket[:i], bucket[i+1:]...)
				if len(s.headed[k]) == 0 {
					delete(s.headed, k)
				}
				return
			}
		}
		return
	}
	for i, r := range s.wildcard {
		if r.Expr().Equal(expr) {
			s.wildcard = append(s.wildcard[:i], s.wildcard[i+1:]...)
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Contains reports whether the exact value is stored.
func (s *Space) Contains(v value.Value) bool {
	key := codec.Encode(v)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trie.Contains(key)
}

// Len returns the number of stored entries (facts plus distinct rules).
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trie.Len()
}

// Candidates returns the rules to try for a query with the given head and
// arity: headed rules matching exactly, then the wildcard bucket, each in
// original assertion order. An empty head selects only wildcard rules.
func (s *Space) Candidates(head string, arity int) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Rule
	if head != "" {
		bucket := s.headed[indexKey{head: head, arity: arity}]
		out = make([]Rule, 0, len(bucket)+len(s.wildcard))
		out = append(out, bucket...)
	}
	return append(out, s.wildcard...)
}

// MatchResult pairs a stored value that unified with a query pattern with
// the environment the unification produced.
type MatchResult struct {
	Fact value.Value
	Env  *unify.Env
}

// Match unifies pattern against stored entries and returns every match in
// canonical key order. When the pattern has a concrete head, the scan is
// restricted to the trie subrange sharing that head's encoded prefix.
func (s *Space) Match(pattern value.Value) []MatchResult {
	var prefix []byte
	if head, arity, ok := value.HeadArity(pattern); ok {
		prefix = codec.AppendPrefix(nil, head, arity+1)
	} else {
		prefix = []byte{codec.Version}
	}

	var results []MatchResult
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.trie.WalkPrefix(prefix, func(key []byte) bool {
		fact, err := codec.Decode(key)
		if err != nil {
			// Keys are produced solely by codec.Encode; a decode failure
			// is an implementation bug.
			panic(fmt.Sprintf("space: undecodable stored key %x: %v", key, err))
		}
		if env, ok := unify.Unify(pattern, fact, unify.NewEnv()); ok {
			results = append(results, MatchResult{Fact: fact, Env: env})
		}
		return true
	})
	return results
}

// Facts returns every stored entry in canonical key order.
func (s *Space) Facts() []value.Value {
	all := s.Match(value.Variable("_"))
	out := make([]value.Value, len(all))
	for i, m := range all {
		out[i] = m.Fact
	}
	return out
}
