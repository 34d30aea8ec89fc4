// Package guard evaluates a CEL expression that decides whether the
// reconcile loop may restart a stale gateway. Operators use it to pin
// automatic restarts to maintenance windows, for example
// "stale && (hour < 6 || hour > 22)".
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/XPrime17/moltworker/internal/supervisor"
)

const evalTimeout = 5 * time.Second

// RestartGuard holds a compiled guard expression.
type RestartGuard struct {
	prg cel.Program
}

// Compile builds a guard from expr. The expression sees these variables:
//
//	stale    bool    version check decided the gateway is outdated
//	reason   string  human-readable version check reason
//	running  string  fingerprint found in the sandbox, empty if none
//	expected string  fingerprint of the current config
//	hour     int     local hour of day, 0-23
//
// It must evaluate to a boolean: true permits the restart.
func Compile(expr string) (*RestartGuard, error) {
	env, err := cel.NewEnv(
		cel.Variable("stale", cel.BoolType),
		cel.Variable("reason", cel.StringType),
		cel.Variable("running", cel.StringType),
		cel.Variable("expected", cel.StringType),
		cel.Variable("hour", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create guard environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile guard expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("guard expression must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, fmt.Errorf("build guard program: %w", err)
	}
	return &RestartGuard{prg: prg}, nil
}

// Allow reports whether the guard permits a restart for the given version
// check result at now. A nil guard always allows.
func (g *RestartGuard) Allow(ctx context.Context, res supervisor.VersionCheckResult, now time.Time) (bool, error) {
	if g == nil {
		return true, nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	out, _, err := g.prg.ContextEval(evalCtx, map[string]any{
		"stale":    !res.Current,
		"reason":   res.Reason,
		"running":  res.Running,
		"expected": res.Expected,
		"hour":     now.Hour(),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate guard: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("guard returned %T, want bool", out.Value())
	}
	return allowed, nil
}
