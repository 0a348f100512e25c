package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/llm"
)

// ToolPolicy decides whether a user may run a tool. The caller supplies the
// user's disabled-tool list so evaluation never touches the database itself.
type ToolPolicy interface {
	Allow(ctx context.Context, userID int64, tool string, disabled []string) (bool, string, error)
}

// Sandbox executes tool calls. Every failure is converted to a textual
// result so the model always gets feedback on the same channel.
type Sandbox struct {
	registry       *Registry
	policy         ToolPolicy
	maxOutputChars int
	log            zerolog.Logger
}

// NewSandbox creates a sandbox. policy may be nil to allow all tools.
func NewSandbox(registry *Registry, policy ToolPolicy, maxOutputChars int, log zerolog.Logger) *Sandbox {
	if maxOutputChars <= 0 {
		maxOutputChars = 8000
	}
	return &Sandbox{
		registry:       registry,
		policy:         policy,
		maxOutputChars: maxOutputChars,
		log:            log.With().Str("component", "sandbox").Logger(),
	}
}

// Execute runs one tool call and returns the textual result fed back to the
// model.
func (s *Sandbox) Execute(ctx context.Context, call llm.ToolCall, exec *ExecContext) string {
	name := call.Function.Name
	def := s.registry.Get(name)
	if def == nil {
		return fmt.Sprintf("Error: tool '%s' not found", name)
	}

	if s.policy != nil {
		// Read through exec.Store: inside a tool transaction that is the
		// tx handle, and the in-memory store has a single connection.
		var disabled []string
		if exec.Store != nil {
			var derr error
			disabled, derr = exec.Store.ListDisabledTools(ctx, exec.UserID)
			if derr != nil {
				s.log.Error().Err(derr).Str("tool", name).Msg("loading disabled tools failed")
				return fmt.Sprintf("Error executing %s: policy evaluation failed", name)
			}
		}
		allowed, reason, err := s.policy.Allow(ctx, exec.UserID, name, disabled)
		if err != nil {
			s.log.Error().Err(err).Str("tool", name).Msg("policy evaluation failed")
			return fmt.Sprintf("Error executing %s: policy evaluation failed", name)
		}
		if !allowed {
			if reason == "" {
				reason = "disabled for this user"
			}
			return fmt.Sprintf("Error: tool '%s' is not allowed: %s", name, reason)
		}
	}

	args := map[string]interface{}{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return fmt.Sprintf("Error: invalid JSON arguments for tool '%s': %v", name, err)
		}
	}

	if err := validateArguments(def.Parameters, args); err != nil {
		return fmt.Sprintf("Error: tool '%s' validation error: %v", name, err)
	}

	// Registration rejects non-positive timeouts, so a zero here is a
	// corrupted definition.
	if def.Timeout <= 0 {
		panic(fmt.Sprintf("tool '%s' has invalid timeout %v", name, def.Timeout))
	}

	toolCtx, cancel := context.WithTimeout(ctx, def.Timeout)
	defer cancel()

	type toolResult struct {
		out string
		err error
	}
	done := make(chan toolResult, 1)
	go func() {
		out, err := def.Handler(toolCtx, args, exec)
		done <- toolResult{out: out, err: err}
	}()

	var result string
	select {
	case <-toolCtx.Done():
		if toolCtx.Err() == context.DeadlineExceeded {
			return fmt.Sprintf("Error: tool '%s' timed out after %ds", name, int(def.Timeout.Seconds()))
		}
		return fmt.Sprintf("Error executing %s: %s", name, shortDetail(toolCtx.Err()))
	case res := <-done:
		if res.err != nil {
			s.log.Error().Err(res.err).Str("tool", name).Str("call_id", call.ID).Msg("tool execution failed")
			return fmt.Sprintf("Error executing %s: %s", name, shortDetail(res.err))
		}
		result = res.out
	}

	return s.truncate(result)
}

// truncate caps long tool output keeping the head and tail with a marker
// carrying the original length. The limit counts characters, not bytes, so
// the cut never lands inside a multi-byte rune.
func (s *Sandbox) truncate(result string) string {
	runes := []rune(result)
	if len(runes) <= s.maxOutputChars {
		return result
	}
	head := string(runes[:int(float64(s.maxOutputChars)*0.7)])
	tail := string(runes[len(runes)-int(float64(s.maxOutputChars)*0.2):])
	return fmt.Sprintf("%s\n\n... [TRIMMED %d chars] ...\n\n%s", head, len(runes), tail)
}

func shortDetail(err error) string {
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
