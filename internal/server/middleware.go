package server

import (
	"context"
	"net/http"

	of "github.com/open-feature/go-sdk/openfeature"

	"github.com/OrlandoBitencourt/flare/internal/flare"
)

type contextKey string

const contextKeyEvalCtx contextKey = "flare_eval_ctx"

// Request headers read by the middleware
const (
	HeaderScope  = "X-Flare-Scope"
	HeaderUserID = "X-User-ID"
)

// Middleware builds an OpenFeature evaluation context for each request
type Middleware struct {
	defaultScope string
}

// NewMiddleware creates new middleware. defaultScope is used when the
// request carries no X-Flare-Scope header.
func NewMiddleware(defaultScope string) *Middleware {
	return &Middleware{defaultScope: defaultScope}
}

// Handler wraps an HTTP handler with flag evaluation context
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := m.buildContext(r)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) buildContext(r *http.Request) context.Context {
	flatCtx := of.FlattenedContext{}

	scope := r.Header.Get(HeaderScope)
	if scope == "" {
		scope = m.defaultScope
	}
	if scope != "" {
		flatCtx[flare.ScopeKey] = scope
	}

	// Extract user ID from header or cookie
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		if cookie, err := r.Cookie("user_id"); err == nil {
			userID = cookie.Value
		}
	}
	if userID != "" {
		flatCtx[of.TargetingKey] = userID
	}

	return context.WithValue(r.Context(), contextKeyEvalCtx, flatCtx)
}

// GetEvalContext extracts evaluation context from request context
func GetEvalContext(ctx context.Context) (of.FlattenedContext, bool) {
	flatCtx, ok := ctx.Value(contextKeyEvalCtx).(of.FlattenedContext)
	return flatCtx, ok
}
