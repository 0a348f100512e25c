package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, policyContent string) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), policyContent, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestDefaultPolicyAllows(t *testing.T) {
	e := newTestEngine(t, DefaultPolicy)

	allowed, reason, err := e.Allow(context.Background(), 1, "create_note", nil)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !allowed || reason != "" {
		t.Errorf("allowed=%v reason=%q", allowed, reason)
	}
}

func TestDefaultPolicyDeniesDisabledTool(t *testing.T) {
	e := newTestEngine(t, DefaultPolicy)
	ctx := context.Background()
	disabled := []string{"patch_note"}

	allowed, reason, err := e.Allow(ctx, 1, "patch_note", disabled)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Error("disabled tool must be denied")
	}
	if reason != "tool 'patch_note' is disabled" {
		t.Errorf("reason = %q", reason)
	}

	allowed, _, err = e.Allow(ctx, 1, "create_note", disabled)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !allowed {
		t.Error("other tools stay allowed")
	}
}

func TestCustomObjectDecision(t *testing.T) {
	const policy = `
package tool_policy

default decision = {"decision": "allow"}

decision = {"decision": "deny", "reason": "writes are frozen"} {
	input.tool == "create_note"
}
`
	e := newTestEngine(t, policy)

	allowed, reason, err := e.Allow(context.Background(), 1, "create_note", nil)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed || reason != "writes are frozen" {
		t.Errorf("allowed=%v reason=%q", allowed, reason)
	}
}

func TestBrokenPolicyRejectedAtPrepare(t *testing.T) {
	if _, err := NewEngine(context.Background(), "package tool_policy\n\ndecision :=", zerolog.Nop()); err == nil {
		t.Fatal("expected prepare error")
	}
}
