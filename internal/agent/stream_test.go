package agent

import (
	"testing"

	"github.com/ainotes/backend/internal/llm"
)

func frag(index int, id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		Index:    &index,
		ID:       id,
		Function: llm.ToolCallFunction{Name: name, Arguments: args},
	}
}

func TestAccumulatorReassemblesFragments(t *testing.T) {
	acc := NewAccumulator()
	acc.AddToolCall(frag(0, "call_abc", "create_note", `{"tit`))
	acc.AddToolCall(frag(0, "", "", `le":"x"}`))

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].ID != "call_abc" {
		t.Errorf("id = %q", calls[0].ID)
	}
	if calls[0].Function.Name != "create_note" {
		t.Errorf("name = %q", calls[0].Function.Name)
	}
	if calls[0].Function.Arguments != `{"title":"x"}` {
		t.Errorf("arguments = %q", calls[0].Function.Arguments)
	}
}

func TestAccumulatorChunkingInvariance(t *testing.T) {
	full := `{"title":"заметка","content":"текст"}`

	whole := NewAccumulator()
	whole.AddToolCall(frag(0, "call_1", "create_note", full))

	pieces := NewAccumulator()
	pieces.AddToolCall(frag(0, "call_1", "create_note", ""))
	for _, r := range full {
		pieces.AddToolCall(frag(0, "", "", string(r)))
	}

	a, b := whole.Finalize(), pieces.Finalize()
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected 1 call each, got %d and %d", len(a), len(b))
	}
	if a[0] != b[0] {
		t.Errorf("chunked result differs: %+v vs %+v", a[0], b[0])
	}
}

func TestAccumulatorPlaceholderIDNeverOverwritesReal(t *testing.T) {
	acc := NewAccumulator()
	acc.AddToolCall(frag(0, "call_real", "create_note", "{"))
	acc.AddToolCall(frag(0, "0", "", "}"))

	calls := acc.Finalize()
	if calls[0].ID != "call_real" {
		t.Errorf("id = %q, want call_real", calls[0].ID)
	}
}

func TestAccumulatorPlaceholderIDUsedWhenNothingBetter(t *testing.T) {
	acc := NewAccumulator()
	acc.AddToolCall(frag(0, "0", "skip_save", "{}"))

	calls := acc.Finalize()
	if calls[0].ID != "0" {
		t.Errorf("id = %q, want 0", calls[0].ID)
	}
}

func TestAccumulatorOrdersByIndex(t *testing.T) {
	acc := NewAccumulator()
	acc.AddToolCall(frag(2, "call_c", "third", "{}"))
	acc.AddToolCall(frag(0, "call_a", "first", "{}"))
	acc.AddToolCall(frag(1, "call_b", "second", "{}"))

	calls := acc.Finalize()
	got := []string{calls[0].Function.Name, calls[1].Function.Name, calls[2].Function.Name}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAccumulatorIgnoresFragmentsWithoutIndex(t *testing.T) {
	acc := NewAccumulator()
	acc.AddToolCall(llm.ToolCall{ID: "call_x", Function: llm.ToolCallFunction{Name: "create_note"}})

	if calls := acc.Finalize(); len(calls) != 0 {
		t.Errorf("expected no calls, got %d", len(calls))
	}
}

func TestAccumulatorFinalizeDrains(t *testing.T) {
	acc := NewAccumulator()
	acc.AddContent("hello")
	acc.AddToolCall(frag(0, "call_1", "skip_save", "{}"))

	if got := acc.Finalize(); len(got) != 1 {
		t.Fatalf("expected 1 call, got %d", len(got))
	}
	// Drained and closed: later fragments are ignored.
	acc.AddToolCall(frag(1, "call_2", "skip_save", "{}"))
	acc.AddContent(" world")
	if got := acc.Finalize(); len(got) != 0 {
		t.Errorf("expected drained accumulator, got %d calls", len(got))
	}
	if acc.Content() != "hello" {
		t.Errorf("content = %q", acc.Content())
	}
}
