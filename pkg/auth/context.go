// Package auth guards the internal toolkit HTTP surface. Authentication is
// a shared-secret header; the whole surface is additionally gated by an
// explicit enable flag and fails closed when either is missing.
package auth

import (
	"context"
	"errors"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal identifies the caller of a toolkit invocation for audit
// purposes.
type Principal interface {
	GetID() string
}

// OperatorPrincipal is the principal behind an authenticated internal call.
type OperatorPrincipal struct {
	ID string
}

func (p *OperatorPrincipal) GetID() string { return p.ID }

// WithPrincipal attaches a Principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the Principal from the context.
func GetPrincipal(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok {
		return nil, errors.New("no principal in context")
	}
	return p, nil
}
