// Package query defines read-side handlers. Read models expose their state
// through a Query so the transport layer can serve it without knowing the model.
package query

import "context"

type (
	// Input represents the input type for a query.
	Input any

	// Result represents the result type for a query.
	Result any
)

// Query returns a result for the given input without changing state.
type Query[I Input, R Result] interface {
	Execute(ctx context.Context, input I) (R, error)
}

// Func adapts a function to Query.
type Func[I Input, R Result] func(ctx context.Context, input I) (R, error)

// Execute implements Query.
func (f Func[I, R]) Execute(ctx context.Context, input I) (R, error) {
	return f(ctx, input)
}

// WrapFunc decorates a Query with a cross-cutting concern.
type WrapFunc[I Input, R Result] func(Query[I, R]) Query[I, R]

// Chain wraps q with wrappers. The first wrapper is the outermost one.
func Chain[I Input, R Result](q Query[I, R], wrappers ...WrapFunc[I, R]) Query[I, R] {
	for i := len(wrappers) - 1; i >= 0; i-- {
		q = wrappers[i](q)
	}
	return q
}
