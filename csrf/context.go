package csrf

import "context"

type ctxKey struct{}

// ContextWithToken returns a copy of ctx carrying tok. Middleware built on
// top of the Guard (see csrfgin) uses it so handlers can read the token back
// with TokenFromContext regardless of the router.
func ContextWithToken(ctx context.Context, tok string) context.Context {
	return contextWithToken(ctx, tok)
}

func contextWithToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tok)
}

func tokenFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKey{}).(string)
	return s, ok && s != ""
}
