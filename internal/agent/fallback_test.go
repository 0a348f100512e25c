package agent

import (
	"context"
	"testing"
	"time"
)

func fallbackRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, name := range names {
		r.MustRegister(&ToolDefinition{
			Name:    name,
			Timeout: time.Second,
			Handler: func(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
				return "", nil
			},
		})
	}
	return r
}

func TestParseFallbackCallPlainJSON(t *testing.T) {
	r := fallbackRegistry(t, "create_note")

	call, ok := ParseFallbackCall(`{"name":"create_note","arguments":{"title":"x"}}`, r)
	if !ok {
		t.Fatal("expected a fallback call")
	}
	if call.Function.Name != "create_note" {
		t.Errorf("name = %q", call.Function.Name)
	}
	if call.ID != "fallback_create_note" {
		t.Errorf("id = %q", call.ID)
	}
	if call.Function.Arguments != `{"title":"x"}` {
		t.Errorf("arguments = %q", call.Function.Arguments)
	}
}

func TestParseFallbackCallTaggedAndFenced(t *testing.T) {
	r := fallbackRegistry(t, "skip_save")

	cases := []string{
		`<tool_call>{"name":"skip_save"}</tool_call>`,
		`Вот вызов: <function-call>{"name":"skip_save"}</function-call>`,
		"```json\n{\"name\":\"skip_save\"}\n```",
		"```\n{\"name\":\"skip_save\"}\n```",
	}
	for _, content := range cases {
		call, ok := ParseFallbackCall(content, r)
		if !ok {
			t.Errorf("no call detected in %q", content)
			continue
		}
		if call.Function.Name != "skip_save" {
			t.Errorf("name = %q for %q", call.Function.Name, content)
		}
		if call.Function.Arguments != "{}" {
			t.Errorf("arguments = %q for %q", call.Function.Arguments, content)
		}
	}
}

func TestParseFallbackCallStringArguments(t *testing.T) {
	r := fallbackRegistry(t, "create_note")

	call, ok := ParseFallbackCall(`{"name":"create_note","arguments":"{\"title\":\"y\"}"}`, r)
	if !ok {
		t.Fatal("expected a fallback call")
	}
	if call.Function.Arguments != `{"title":"y"}` {
		t.Errorf("arguments = %q", call.Function.Arguments)
	}
}

func TestParseFallbackCallRejects(t *testing.T) {
	r := fallbackRegistry(t, "create_note")

	cases := []string{
		"",
		"обычный текст без вызова",
		`{"name":"unknown_tool"}`,
		`{"arguments":{}}`,
		`{not json}`,
		`просто упоминание {"почти":"json"} в тексте`,
	}
	for _, content := range cases {
		if _, ok := ParseFallbackCall(content, r); ok {
			t.Errorf("unexpected call detected in %q", content)
		}
	}
}
