// Package policy gates tool execution with an OPA rego policy. The default
// policy denies tools the user disabled in settings; deployments can swap
// in stricter rules without touching the agent code.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

// Engine evaluates the tool policy per call. It implements the agent's
// ToolPolicy interface.
type Engine struct {
	query rego.PreparedEvalQuery
	log   zerolog.Logger
}

// NewEngine prepares the rego query once; evaluation is then cheap enough
// to run on every tool call.
func NewEngine(ctx context.Context, policyContent string, log zerolog.Logger) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{
		query: query,
		log:   log.With().Str("component", "policy").Logger(),
	}, nil
}

// Allow evaluates the policy for one tool call. The rego input carries the
// tool name, the user id and the user's disabled-tool list, which the
// caller resolves so the engine stays free of database access.
func (e *Engine) Allow(ctx context.Context, userID int64, tool string, disabled []string) (bool, string, error) {
	if disabled == nil {
		disabled = []string{}
	}
	input := map[string]interface{}{
		"tool":     tool,
		"user_id":  userID,
		"disabled": disabled,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// Policy defines a default, so an empty result means the module
		// is broken rather than "no opinion".
		e.log.Warn().Str("tool", tool).Msg("policy returned no decision, allowing")
		return true, "", nil
	}

	switch v := results[0].Expressions[0].Value.(type) {
	case string:
		return v == "allow", reasonFor(v, tool), nil
	case map[string]interface{}:
		decision, _ := v["decision"].(string)
		reason, _ := v["reason"].(string)
		if reason == "" {
			reason = reasonFor(decision, tool)
		}
		return decision == "allow", reason, nil
	default:
		return true, "", nil
	}
}

func reasonFor(decision, tool string) string {
	if decision == "allow" {
		return ""
	}
	return fmt.Sprintf("tool '%s' is disabled", tool)
}

// DefaultPolicy allows everything except tools the user disabled.
const DefaultPolicy = `
package tool_policy

default decision = "allow"

decision = "deny" {
	input.disabled[_] == input.tool
}
`
