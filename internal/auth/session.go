// Package auth resolves the user that scoped task operations run as.
package auth

import (
	"context"
	"errors"

	"taskmate/internal/model"
)

// ErrNoSession is returned when no user is signed in.
var ErrNoSession = errors.New("no active session")

// Source yields the signed-in user for a call.
type Source interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}

type userKey struct{}

// WithUser binds user to ctx.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user bound by WithUser.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey{}).(*model.User)
	return user, ok && user != nil && user.ID != ""
}

// ContextSource reads the session from the request context. HTTP
// middleware populates it after verifying the bearer token.
type ContextSource struct{}

func (ContextSource) CurrentUser(ctx context.Context) (*model.User, error) {
	if user, ok := UserFromContext(ctx); ok {
		return user, nil
	}
	return nil, ErrNoSession
}

// StaticSource always answers with the same user. A nil or empty user
// behaves as signed out.
type StaticSource struct {
	User *model.User
}

func (s StaticSource) CurrentUser(context.Context) (*model.User, error) {
	if s.User == nil || s.User.ID == "" {
		return nil, ErrNoSession
	}
	return s.User, nil
}
