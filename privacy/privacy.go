package privacy

import (
	"context"
	"errors"
	"fmt"

	mongoo "github.com/developer-rs5/easy-mongoo"
	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"
)

// Policy decision sentinels. Rules return them, possibly wrapped, to
// steer evaluation; check with errors.Is:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow terminates evaluation permitting the mutation.
	Allow = errors.New("privacy: allow rule")

	// Deny terminates evaluation rejecting the mutation.
	Deny = errors.New("privacy: deny rule")

	// Skip abstains and hands evaluation to the next rule.
	Skip = errors.New("privacy: skip rule")
)

// Allowf returns a formatted decision wrapping Allow.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted decision wrapping Deny.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted decision wrapping Skip.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// A Rule decides one mutation: Allow, Deny (any non-decision error
// counts as a denial) or Skip.
type Rule interface {
	EvalMutation(context.Context, hook.Mutation) error
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(context.Context, hook.Mutation) error

// EvalMutation returns f(ctx, m).
func (f RuleFunc) EvalMutation(ctx context.Context, m hook.Mutation) error {
	return f(ctx, m)
}

// Policy is an ordered rule chain. The first Allow permits, the first
// Deny or plain error rejects, Skip falls through, and a chain that
// runs out of rules permits.
type Policy []Rule

// EvalMutation evaluates the mutation against the policy. A decision
// forced through DecisionContext preempts the rules.
func (p Policy) EvalMutation(ctx context.Context, m hook.Mutation) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// Hook returns the policy as mutation middleware: a rejection stops
// the chain before the store write.
func (p Policy) Hook() hook.Hook {
	return func(next hook.Mutator) hook.Mutator {
		return hook.MutateFunc(func(ctx context.Context, m hook.Mutation) (schema.Document, error) {
			if err := p.EvalMutation(ctx, m); err != nil {
				return nil, err
			}
			return next.Mutate(ctx, m)
		})
	}
}

// Enforce installs the policy as a pre hook on the named lifecycle
// operations ("save", "create", "update", "remove", ...). With no
// names the policy guards every write:
//
//	err := reg.Extend("Post", privacy.Enforce(policy)...)
func Enforce(p Policy, operations ...string) []mongoo.Extension {
	if len(operations) == 0 {
		operations = []string{"save", "remove"}
	}
	exts := make([]mongoo.Extension, len(operations))
	for i, op := range operations {
		exts[i] = mongoo.WithHook(op, hook.Pre, p.Hook())
	}
	return exts
}

// AlwaysAllowRule returns a rule that always allows.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always denies. Appended to a
// policy it turns the permissive fall-through into deny-by-default.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule builds a rule from a context-only evaluation function.
// Returning nil is equivalent to Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return contextDecision{eval}
}

// OnOperation evaluates rule only when the mutation's operation
// intersects op, skipping otherwise.
func OnOperation(rule Rule, op hook.Op) Rule {
	return RuleFunc(func(ctx context.Context, m hook.Mutation) error {
		if m.Op().Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// AllowOperationRule permits the given operations outright.
func AllowOperationRule(op hook.Op) Rule {
	return OnOperation(RuleFunc(func(context.Context, hook.Mutation) error {
		return Allow
	}), op)
}

// DenyOperationRule rejects the given operations outright.
func DenyOperationRule(op hook.Op) Rule {
	return OnOperation(RuleFunc(func(_ context.Context, m hook.Mutation) error {
		return Denyf("privacy: operation %s is not allowed", m.Op())
	}), op)
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a forced policy decision.
// Evaluation under it short-circuits without consulting the rules;
// Skip and nil leave the parent untouched.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves a forced decision, with Allow already
// mapped to nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalMutation(context.Context, hook.Mutation) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalMutation(ctx context.Context, _ hook.Mutation) error {
	return c.eval(ctx)
}
