// Package ratelimit decides whether a request may proceed: a policy table
// maps the request path to a (category, limit, window) triple, a key
// builder maps the caller to a counter key, and the limiter runs a fixed
// window counter in Redis.
package ratelimit

import (
	"sort"
	"strings"
	"time"
)

// Categories used by the default policy table.
const (
	CategoryAuth    = "auth"
	CategoryAI      = "ai"
	CategoryDefault = "default"
)

// Policy is the admission rule for one category of request.
type Policy struct {
	Category string
	Limit    int
	Window   time.Duration
}

// Rule binds a path prefix to a policy.
type Rule struct {
	Prefix string
	Policy Policy
}

// PolicyTable classifies request paths. It is immutable after construction
// and safe for concurrent use.
type PolicyTable struct {
	rules    []Rule
	fallback Policy
}

// NewPolicyTable returns a table that applies the rule with the longest
// matching prefix, or fallback when none matches.
func NewPolicyTable(fallback Policy, rules ...Rule) *PolicyTable {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &PolicyTable{rules: sorted, fallback: fallback}
}

// Limits are the per-category overrides read from configuration. Zero
// fields keep the default.
type Limits struct {
	Auth    int
	AI      int
	Default int
	Window  time.Duration
}

// DefaultLimits mirror the production policy: 5 auth, 20 ai and 100 other
// requests per minute.
var DefaultLimits = Limits{Auth: 5, AI: 20, Default: 100, Window: time.Minute}

// NewDefaultPolicyTable builds the table for the API mounted under /api/v1.
func NewDefaultPolicyTable(l Limits) *PolicyTable {
	if l.Auth <= 0 {
		l.Auth = DefaultLimits.Auth
	}
	if l.AI <= 0 {
		l.AI = DefaultLimits.AI
	}
	if l.Default <= 0 {
		l.Default = DefaultLimits.Default
	}
	if l.Window <= 0 {
		l.Window = DefaultLimits.Window
	}
	return NewPolicyTable(
		Policy{Category: CategoryDefault, Limit: l.Default, Window: l.Window},
		Rule{Prefix: "/api/v1/auth", Policy: Policy{Category: CategoryAuth, Limit: l.Auth, Window: l.Window}},
		Rule{Prefix: "/api/v1/ai", Policy: Policy{Category: CategoryAI, Limit: l.AI, Window: l.Window}},
	)
}

// Classify returns the policy for path. It never fails.
func (t *PolicyTable) Classify(path string) Policy {
	for _, r := range t.rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Policy
		}
	}
	return t.fallback
}
