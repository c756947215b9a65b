package httpapi

import (
	"context"

	appAuth "github.com/lendledger/lendledger/internal/application/auth"
)

type authContextKey string

const authUserKey authContextKey = "authUser"

func withAuthUser(ctx context.Context, p *appAuth.Principal) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, authUserKey, p)
}

func authUserFromContext(ctx context.Context) *appAuth.Principal {
	val := ctx.Value(authUserKey)
	if v, ok := val.(*appAuth.Principal); ok {
		return v
	}
	return nil
}
