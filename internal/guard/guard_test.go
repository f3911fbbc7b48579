package guard

import (
	"testing"
)

func TestGuard_CheckOperation(t *testing.T) {
	g := New(Policy{
		AllowedOperations: []string{"get_*", "create_{event,list}"},
	})

	t.Run("Allowed", func(t *testing.T) {
		for _, op := range []string{"get_events", "get_event_with_list_and_items", "create_event", "create_list"} {
			if v := g.CheckOperation(op, false); v != nil {
				t.Errorf("Unexpected violation for %s: %v", op, v.Message)
			}
		}
	})

	t.Run("Blocked", func(t *testing.T) {
		for _, op := range []string{"delete_event", "create_item", "assign_list_to_event"} {
			v := g.CheckOperation(op, false)
			if v == nil {
				t.Errorf("Expected violation for %s", op)
				continue
			}
			if v.Rule != "allowed_operations" {
				t.Errorf("Expected allowed_operations rule, got %s", v.Rule)
			}
		}
	})

	t.Run("Always Allowed", func(t *testing.T) {
		if v := g.CheckOperation("confirm_operation", false); v != nil {
			t.Errorf("Unexpected violation: %v", v.Message)
		}
		if v := g.CheckOperation("get_context", true); v != nil {
			t.Errorf("Unexpected violation: %v", v.Message)
		}
	})
}

func TestGuard_ReadOnly(t *testing.T) {
	g := New(Policy{AllowedOperations: []string{"*"}, ReadOnly: true})

	if v := g.CheckOperation("get_lists", true); v != nil {
		t.Errorf("Unexpected violation: %v", v.Message)
	}
	v := g.CheckOperation("delete_list", false)
	if v == nil || v.Rule != "read_only" {
		t.Errorf("Expected read_only violation, got %+v", v)
	}
	if v := g.CheckOperation("confirm_operation", false); v != nil {
		t.Errorf("confirm_operation should pass in read-only mode: %v", v.Message)
	}
}

func TestGuard_CheckPending(t *testing.T) {
	g := New(Policy{MaxPending: 2})

	if v := g.CheckPending(1); v != nil {
		t.Errorf("Unexpected violation: %v", v.Message)
	}
	if v := g.CheckPending(2); v == nil {
		t.Error("Expected max_pending violation")
	}

	unlimited := New(Policy{})
	if v := unlimited.CheckPending(1000); v != nil {
		t.Errorf("Unexpected violation with no cap: %v", v.Message)
	}
}

func TestDefaultPolicy(t *testing.T) {
	g := New(DefaultPolicy)
	if v := g.CheckOperation("unassign_list_from_event", false); v != nil {
		t.Errorf("Default policy should allow writes: %v", v.Message)
	}
	if g.Policy().MaxPending != 50 {
		t.Errorf("Expected default MaxPending 50, got %d", g.Policy().MaxPending)
	}
}

func TestPolicy_ValidatePatterns(t *testing.T) {
	if err := (Policy{AllowedOperations: []string{"get_*"}}).ValidatePatterns(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := (Policy{AllowedOperations: []string{"get_[a"}}).ValidatePatterns(); err == nil {
		t.Error("Expected error for malformed pattern")
	}
}
