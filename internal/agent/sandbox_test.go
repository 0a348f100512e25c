package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ainotes/backend/internal/llm"
	"github.com/ainotes/backend/internal/store"
)

func sandboxCall(name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       "call_test",
		Type:     "function",
		Function: llm.ToolCallFunction{Name: name, Arguments: args},
	}
}

type denyPolicy struct {
	tool   string
	reason string
}

func (p *denyPolicy) Allow(ctx context.Context, userID int64, tool string, disabled []string) (bool, string, error) {
	if tool == p.tool {
		return false, p.reason, nil
	}
	return true, "", nil
}

// listPolicy denies exactly the tools in the caller-provided disabled list.
type listPolicy struct{}

func (listPolicy) Allow(ctx context.Context, userID int64, tool string, disabled []string) (bool, string, error) {
	for _, d := range disabled {
		if d == tool {
			return false, fmt.Sprintf("tool '%s' is disabled", tool), nil
		}
	}
	return true, "", nil
}

func TestSandboxUnknownTool(t *testing.T) {
	s := NewSandbox(NewRegistry(), nil, 0, testLogger())

	got := s.Execute(context.Background(), sandboxCall("nope", "{}"), &ExecContext{})
	if got != "Error: tool 'nope' not found" {
		t.Errorf("result = %q", got)
	}
}

func TestSandboxPolicyDenies(t *testing.T) {
	r := fallbackRegistry(t, "create_note")
	s := NewSandbox(r, &denyPolicy{tool: "create_note", reason: "tool 'create_note' is disabled"}, 0, testLogger())

	got := s.Execute(context.Background(), sandboxCall("create_note", "{}"), &ExecContext{UserID: 1})
	want := "Error: tool 'create_note' is not allowed: tool 'create_note' is disabled"
	if got != want {
		t.Errorf("result = %q, want %q", got, want)
	}
}

func TestSandboxPolicyReadsDisabledToolsThroughTxStore(t *testing.T) {
	st := newAgentTestStore(t)
	ctx := context.Background()
	if err := st.SetToolDisabled(ctx, 1, "create_note", true); err != nil {
		t.Fatalf("SetToolDisabled failed: %v", err)
	}

	r := fallbackRegistry(t, "create_note", "skip_save")
	s := NewSandbox(r, listPolicy{}, 0, testLogger())

	// The in-memory store has a single connection; inside a transaction the
	// sandbox must read the disabled list through the tx handle or it
	// blocks forever waiting for the connection the transaction holds.
	fin := make(chan struct{})
	go func() {
		defer close(fin)
		err := st.WithTx(ctx, func(tx *store.SQLiteStore) error {
			exec := &ExecContext{UserID: 1, Store: tx}
			got := s.Execute(ctx, sandboxCall("create_note", "{}"), exec)
			want := "Error: tool 'create_note' is not allowed: tool 'create_note' is disabled"
			if got != want {
				t.Errorf("denied result = %q", got)
			}
			if got := s.Execute(ctx, sandboxCall("skip_save", "{}"), exec); strings.HasPrefix(got, "Error:") {
				t.Errorf("allowed tool failed: %q", got)
			}
			return nil
		})
		if err != nil {
			t.Errorf("WithTx failed: %v", err)
		}
	}()

	select {
	case <-fin:
	case <-time.After(5 * time.Second):
		t.Fatal("policy check deadlocked inside the tool transaction")
	}
}

func TestSandboxInvalidJSONArgs(t *testing.T) {
	r := fallbackRegistry(t, "create_note")
	s := NewSandbox(r, nil, 0, testLogger())

	got := s.Execute(context.Background(), sandboxCall("create_note", "{broken"), &ExecContext{})
	if !strings.HasPrefix(got, "Error: invalid JSON arguments for tool 'create_note'") {
		t.Errorf("result = %q", got)
	}
}

func TestSandboxValidationError(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&ToolDefinition{
		Name: "echo",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"text"},
		},
		Timeout: time.Second,
		Handler: func(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
			return args["text"].(string), nil
		},
	})
	s := NewSandbox(r, nil, 0, testLogger())

	got := s.Execute(context.Background(), sandboxCall("echo", "{}"), &ExecContext{})
	if !strings.HasPrefix(got, "Error: tool 'echo' validation error") {
		t.Errorf("result = %q", got)
	}

	got = s.Execute(context.Background(), sandboxCall("echo", `{"text":"привет"}`), &ExecContext{})
	if got != "привет" {
		t.Errorf("result = %q", got)
	}
}

func TestSandboxHandlerFailureIsIsolated(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&ToolDefinition{
		Name:    "boom",
		Timeout: time.Second,
		Handler: func(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
			return "", errors.New("Fragment not found")
		},
	})
	s := NewSandbox(r, nil, 0, testLogger())

	got := s.Execute(context.Background(), sandboxCall("boom", "{}"), &ExecContext{})
	if got != "Error executing boom: Fragment not found" {
		t.Errorf("result = %q", got)
	}
}

func TestSandboxTimeout(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&ToolDefinition{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Handler: func(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
			select {
			case <-time.After(time.Second):
				return "done", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	})
	s := NewSandbox(r, nil, 0, testLogger())

	got := s.Execute(context.Background(), sandboxCall("slow", "{}"), &ExecContext{})
	if !strings.HasPrefix(got, "Error: tool 'slow' timed out after") {
		t.Errorf("result = %q", got)
	}
}

func TestSandboxTruncatesLongOutput(t *testing.T) {
	const max = 1000
	long := strings.Repeat("a", 5000)
	r := NewRegistry()
	r.MustRegister(&ToolDefinition{
		Name:    "big",
		Timeout: time.Second,
		Handler: func(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
			return long, nil
		},
	})
	s := NewSandbox(r, nil, max, testLogger())

	got := s.Execute(context.Background(), sandboxCall("big", "{}"), &ExecContext{})
	marker := fmt.Sprintf("[TRIMMED %d chars]", len(long))
	if !strings.Contains(got, marker) {
		t.Fatalf("missing marker %q in %q", marker, got)
	}
	if !strings.HasPrefix(got, strings.Repeat("a", 700)) {
		t.Error("head was not kept")
	}
	if !strings.HasSuffix(got, strings.Repeat("a", 200)) {
		t.Error("tail was not kept")
	}
}

func TestSandboxTruncatesOnRuneBoundaries(t *testing.T) {
	const max = 105
	long := strings.Repeat("ё", 1000)
	r := NewRegistry()
	r.MustRegister(&ToolDefinition{
		Name:    "big",
		Timeout: time.Second,
		Handler: func(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
			return long, nil
		},
	})
	s := NewSandbox(r, nil, max, testLogger())

	got := s.Execute(context.Background(), sandboxCall("big", "{}"), &ExecContext{})
	if !utf8.ValidString(got) {
		t.Fatalf("truncated output is not valid UTF-8: %q", got)
	}
	// The limit counts characters, so 1000 two-byte runes still trim.
	if !strings.Contains(got, "[TRIMMED 1000 chars]") {
		t.Fatalf("missing marker in %q", got)
	}
	if !strings.HasPrefix(got, strings.Repeat("ё", 73)+"\n") {
		t.Error("head must keep 73 whole characters")
	}
	if !strings.HasSuffix(got, strings.Repeat("ё", 21)) {
		t.Error("tail must keep 21 whole characters")
	}
}

func TestSandboxShortOutputUntouched(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&ToolDefinition{
		Name:    "small",
		Timeout: time.Second,
		Handler: func(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
			return "ok", nil
		},
	})
	s := NewSandbox(r, nil, 1000, testLogger())

	if got := s.Execute(context.Background(), sandboxCall("small", "{}"), &ExecContext{}); got != "ok" {
		t.Errorf("result = %q", got)
	}
}
