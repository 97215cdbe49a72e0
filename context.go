package callcache

import "context"

type registryKey struct{}

// WithRegistry returns a copy of ctx carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, r)
}

// FromContext returns the registry attached to ctx, or nil.
func FromContext(ctx context.Context) *Registry {
	r, _ := ctx.Value(registryKey{}).(*Registry)
	return r
}

// ResolveRegistry returns the registry attached to ctx. Without one, a Client
// falls back to Default; a Server fails with *MissingContextError since a
// shared registry would leak results between requests.
func ResolveRegistry(ctx context.Context, env Environment) (*Registry, error) {
	if r := FromContext(ctx); r != nil {
		return r, nil
	}
	if env == Client {
		return Default(), nil
	}
	return nil, &MissingContextError{Env: env}
}
