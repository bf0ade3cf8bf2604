// Package dbctx bundles a request context with an optional in-flight
// GORM transaction, so repository methods can open a short-lived
// transactional scope per call while still composing inside a caller's
// existing transaction when one is already open.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the caller's context.Context alongside an optional
// transaction handle. Repositories fall back to their own *gorm.DB
// when Tx is nil.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background returns a Context with no transaction, suitable for
// top-level calls outside of any saga or multi-step write.
func Background(ctx context.Context) Context {
	return Context{Ctx: ctx}
}
