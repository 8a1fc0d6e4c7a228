// Package hook provides lifecycle hooks for document mutations.
//
// Hooks are middleware over mutators, composing around the operation
// that finally writes the document:
//
//	logWrites := func(next hook.Mutator) hook.Mutator {
//	    return hook.MutateFunc(func(ctx context.Context, m hook.Mutation) (schema.Document, error) {
//	        doc, err := next.Mutate(ctx, m)
//	        log.Printf("%s on %s: err=%v", m.Op(), m.Model(), err)
//	        return doc, err
//	    })
//	}
//
// A hook registered for an operation set only fires when the mutation's
// operation matches:
//
//	hook.On(logWrites, hook.OpCreate|hook.OpUpdate)
package hook

import (
	"context"
	"fmt"
	"strings"

	"github.com/developer-rs5/easy-mongoo/schema"
)

// An Op is a bit set of mutation operations.
type Op uint

// Mutation operations.
const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpUpdateOne
	OpDelete
	OpDeleteOne
	OpAggregate
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "Create"},
	{OpUpdate, "Update"},
	{OpUpdateOne, "UpdateOne"},
	{OpDelete, "Delete"},
	{OpDeleteOne, "DeleteOne"},
	{OpAggregate, "Aggregate"},
}

// Is reports if the operation set intersects o.
func (op Op) Is(o Op) bool { return op&o != 0 }

// String returns the operation names joined by "|".
func (op Op) String() string {
	var parts []string
	for _, n := range opNames {
		if op.Is(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Op(%d)", uint(op))
	}
	return strings.Join(parts, "|")
}

// OpByName resolves a lifecycle operation name, as used by the model
// registry surface, to its operation set.
func OpByName(name string) (Op, bool) {
	switch name {
	case "create":
		return OpCreate, true
	case "save":
		return OpCreate | OpUpdate | OpUpdateOne, true
	case "update":
		return OpUpdate | OpUpdateOne, true
	case "updateOne":
		return OpUpdateOne, true
	case "delete", "remove":
		return OpDelete | OpDeleteOne, true
	case "deleteOne":
		return OpDeleteOne, true
	case "aggregate":
		return OpAggregate, true
	default:
		return 0, false
	}
}

// A Mutation carries one document change through the hook chain.
type Mutation interface {
	// Op returns the operation being performed.
	Op() Op
	// Model returns the model name.
	Model() string
	// Field returns the current value of a field.
	Field(name string) (any, bool)
	// SetField rewrites a field, marking it changed.
	SetField(name string, v any) error
	// FieldChanged reports if the field was modified by this mutation.
	FieldChanged(name string) bool
	// Fields returns the mutation's field names.
	Fields() []string
	// Document returns the working document.
	Document() schema.Document
}

// A Mutator executes a mutation and returns the resulting document.
type Mutator interface {
	Mutate(ctx context.Context, m Mutation) (schema.Document, error)
}

// MutateFunc adapts a function to the Mutator interface.
type MutateFunc func(ctx context.Context, m Mutation) (schema.Document, error)

// Mutate implements Mutator.
func (f MutateFunc) Mutate(ctx context.Context, m Mutation) (schema.Document, error) {
	return f(ctx, m)
}

// A Hook wraps a mutator with behavior before or after the mutation.
type Hook func(Mutator) Mutator

// On restricts a hook to mutations whose operation matches op.
func On(hk Hook, op Op) Hook {
	return func(next Mutator) Mutator {
		wrapped := hk(next)
		return MutateFunc(func(ctx context.Context, m Mutation) (schema.Document, error) {
			if m.Op().Is(op) {
				return wrapped.Mutate(ctx, m)
			}
			return next.Mutate(ctx, m)
		})
	}
}

// Unless restricts a hook to mutations whose operation does not match op.
func Unless(hk Hook, op Op) Hook {
	return func(next Mutator) Mutator {
		wrapped := hk(next)
		return MutateFunc(func(ctx context.Context, m Mutation) (schema.Document, error) {
			if m.Op().Is(op) {
				return next.Mutate(ctx, m)
			}
			return wrapped.Mutate(ctx, m)
		})
	}
}

// Chain composes hooks into one. The first hook runs outermost: its
// pre-mutation logic first, its post-mutation logic last.
func Chain(hooks ...Hook) Hook {
	return func(next Mutator) Mutator {
		return Apply(next, hooks...)
	}
}

// Apply wraps a terminal mutator with the hooks, preserving their
// declared order.
func Apply(terminal Mutator, hooks ...Hook) Mutator {
	m := terminal
	for i := len(hooks) - 1; i >= 0; i-- {
		m = hooks[i](m)
	}
	return m
}

// Phase says when a registered hook runs relative to the store write.
type Phase uint8

// Hook phases.
const (
	Pre Phase = iota + 1
	Post
)

func (p Phase) String() string {
	switch p {
	case Pre:
		return "pre"
	case Post:
		return "post"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// A Spec registers one hook against an operation set. Aggregation specs
// carry a pipeline stage to prepend instead of middleware.
type Spec struct {
	Op    Op
	Phase Phase
	Name  string
	Hook  Hook
	Stage schema.Document
}

// Matches reports if the spec applies to the given operation.
func (s Spec) Matches(op Op) bool { return s.Op.Is(op) }
