package api

import (
	"context"

	"github.com/org/authcore/pkg/models"
)

type contextKey string

const (
	ctxKeyUser      contextKey = "user"
	ctxKeyRequestID contextKey = "request_id"
)

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// userFromCtx returns the principal attached by a guard, or nil for anonymous requests.
func userFromCtx(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxKeyUser).(*models.User)
	return u
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
