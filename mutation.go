package callcache

import "context"

// Invalidator drops the call recorded for args. *Token[V] implements it.
type Invalidator interface {
	Invalidate(args ...any)
}

type target struct {
	inv  Invalidator
	args func(args ...any) []any
}

// Mutation wraps a side-effecting function. After each successful run the
// calls it made stale are evicted so the next read refetches.
type Mutation[M any] struct {
	fn      func(ctx context.Context, args ...any) (M, error)
	targets []target
}

// NewMutation invalidates each target with the mutation's own arguments.
func NewMutation[M any](fn func(ctx context.Context, args ...any) (M, error), targets ...Invalidator) *Mutation[M] {
	m := &Mutation[M]{fn: fn}
	for _, inv := range targets {
		m.targets = append(m.targets, target{inv: inv})
	}
	return m
}

// On adds a target whose arguments are derived from the mutation's, e.g.
// updateUser(id, patch) invalidating getUser(id).
func (m *Mutation[M]) On(inv Invalidator, args func(args ...any) []any) *Mutation[M] {
	m.targets = append(m.targets, target{inv: inv, args: args})
	return m
}

// Run calls the wrapped function; targets are invalidated only if it succeeds.
func (m *Mutation[M]) Run(ctx context.Context, args ...any) (M, error) {
	v, err := m.fn(ctx, args...)
	if err != nil {
		return v, err
	}
	for _, t := range m.targets {
		if t.args != nil {
			t.inv.Invalidate(t.args(args...)...)
		} else {
			t.inv.Invalidate(args...)
		}
	}
	return v, nil
}
