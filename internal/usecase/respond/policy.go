package respond

import (
	"sync/atomic"
	"time"
)

// PostPolicy is the delivery slice of the webhook configuration.
type PostPolicy struct {
	EnableThreading      bool
	EnableDirectMessages bool
	MaxResponseLength    int
	PostTimeout          time.Duration
}

// PolicySource holds the delivery policy in effect. Configuration
// reload swaps the whole value atomically, so in-flight events never
// observe a half-applied change.
type PolicySource struct {
	p atomic.Pointer[PostPolicy]
}

// NewPolicySource creates a policy source seeded with the given policy.
func NewPolicySource(policy PostPolicy) *PolicySource {
	s := &PolicySource{}
	s.p.Store(&policy)
	return s
}

// Current returns the policy in effect right now.
func (s *PolicySource) Current() PostPolicy {
	return *s.p.Load()
}

// Update replaces the policy; subsequent events see the new values.
func (s *PolicySource) Update(policy PostPolicy) {
	s.p.Store(&policy)
}
