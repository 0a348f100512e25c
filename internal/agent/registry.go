// Package agent implements the LLM agent core: tool registry and sandbox,
// streaming turn engine, intent classification, specialized executors and
// the progress event bridge.
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ainotes/backend/internal/llm"
)

// HandlerFunc executes a tool against validated arguments. It returns the
// textual result fed back to the model.
type HandlerFunc func(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error)

// ToolDefinition describes one callable tool.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]interface{}
	Timeout    time.Duration
	Handler    HandlerFunc
}

// OpenAITool renders the definition in the chat-completions tools format.
func (d *ToolDefinition) OpenAITool() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		},
	}
}

// Registry stores tool definitions keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*ToolDefinition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*ToolDefinition),
	}
}

// Register adds a tool definition. A non-positive timeout is a programming
// error, not a runtime condition.
func (r *Registry) Register(def *ToolDefinition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("handler is required for %s", def.Name)
	}
	if def.Timeout <= 0 {
		return fmt.Errorf("invalid timeout for tool %s: %v", def.Name, def.Timeout)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// MustRegister adds a tool definition or panics.
func (r *Registry) MustRegister(def *ToolDefinition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the definition for name, or nil when unregistered.
func (r *Registry) Get(name string) *ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// OpenAITools renders all definitions in the chat-completions tools format,
// sorted by name for stable request payloads.
func (r *Registry) OpenAITools() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]llm.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name].OpenAITool())
	}
	return out
}
