// Package reqctx carries request-scoped values through context.Context.
//
// HTTP middleware stores a RequestMeta for every request and the verified
// token claims for authenticated ones. Services never read fiber locals;
// they receive a plain context and use the getters here, and the logging
// handler in pkg/logs reads the same values to tag every record with the
// request and user ids.
//
//	ctx = reqctx.WithRequestMeta(ctx, &reqctx.RequestMeta{RequestID: rid})
//	ctx = reqctx.WithClaims(ctx, claims)
//
//	rid := reqctx.RequestIDFromContext(ctx)
//	uid, ok := reqctx.UserIDFromContext(ctx)
package reqctx
