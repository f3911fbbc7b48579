package guard

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy limits which operations callers may reach.
type Policy struct {
	// AllowedOperations are glob patterns, e.g. "get_*" or "*".
	AllowedOperations []string `yaml:"allowed_operations" json:"allowed_operations"`
	ReadOnly          bool     `yaml:"read_only" json:"read_only"`
	// MaxPending caps simultaneously pending writes. Zero means unlimited.
	MaxPending int `yaml:"max_pending" json:"max_pending"`
}

// DefaultPolicy allows everything with a generous pending cap.
var DefaultPolicy = Policy{
	AllowedOperations: []string{"*"},
	MaxPending:        50,
}

// Operations that are never blocked, so a caller can always finish or
// inspect what is already pending.
var alwaysAllowed = map[string]bool{
	"confirm_operation": true,
	"get_context":       true,
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckOperation verifies the operation is allowed and, in read-only mode,
// that it does not write.
func (g *Guard) CheckOperation(name string, readOnly bool) *Violation {
	if alwaysAllowed[name] {
		return nil
	}

	allowed := false
	for _, pattern := range g.policy.AllowedOperations {
		match, err := doublestar.Match(pattern, name)
		if err == nil && match {
			allowed = true
			break
		}
	}
	if !allowed {
		return &Violation{Rule: "allowed_operations", Message: "Operation not allowed: " + name}
	}

	if g.policy.ReadOnly && !readOnly {
		return &Violation{Rule: "read_only", Message: "Write operations are disabled: " + name}
	}
	return nil
}

// CheckPending verifies another write may be queued while count are pending.
func (g *Guard) CheckPending(count int) *Violation {
	if g.policy.MaxPending > 0 && count >= g.policy.MaxPending {
		return &Violation{
			Rule:    "max_pending",
			Message: fmt.Sprintf("Too many pending operations (%d); confirm or cancel one first", count),
		}
	}
	return nil
}

// ValidatePatterns reports the first malformed glob in the policy.
func (p Policy) ValidatePatterns() error {
	for _, pattern := range p.AllowedOperations {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid operation pattern %q", pattern)
		}
	}
	return nil
}
