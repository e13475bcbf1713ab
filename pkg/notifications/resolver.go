package notifications

import (
	"context"
	"fmt"
	"sync"
)

// ContextGenerator produces the render context for one named context. The
// params come from the notification's ContextParameters.
type ContextGenerator func(ctx context.Context, params map[string]any) (Context, error)

// ContextResolver maps context names to generators. It is an explicit
// instance passed into the pipeline rather than process-global state, so
// tests can construct fresh resolvers per case.
type ContextResolver struct {
	mu         sync.RWMutex
	generators map[string]ContextGenerator
}

// NewContextResolver creates a resolver, optionally seeded with generators.
func NewContextResolver(generators map[string]ContextGenerator) (*ContextResolver, error) {
	r := &ContextResolver{generators: make(map[string]ContextGenerator, len(generators))}
	for name, gen := range generators {
		if err := r.Register(name, gen); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewContextResolver works like NewContextResolver but panics on error.
// Registration failures are programmer errors, so failing fast at startup is
// usually what callers want.
func MustNewContextResolver(generators map[string]ContextGenerator) *ContextResolver {
	r, err := NewContextResolver(generators)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a named generator. Registering the same name twice fails.
func (r *ContextResolver) Register(name string, gen ContextGenerator) error {
	if name == "" {
		return ErrGeneratorName
	}
	if gen == nil {
		return fmt.Errorf("%w: %q", ErrNilGenerator, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.generators[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateGenerator, name)
	}
	r.generators[name] = gen
	return nil
}

// Resolve looks up the generator for name and invokes it with params.
func (r *ContextResolver) Resolve(ctx context.Context, name string, params map[string]any) (Context, error) {
	r.mu.RLock()
	gen, ok := r.generators[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrContextGeneratorNotFound, name)
	}
	return gen(ctx, params)
}

// Has reports whether a generator is registered under name.
func (r *ContextResolver) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.generators[name]
	return ok
}
