package middleware

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const actorKey contextKey = "actorID"

// ActorContext reads the numeric X-User-ID header set by the upstream
// gateway and stores it on the request context. The header is optional;
// handlers record the actor on ledger rows when present.
func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-User-ID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				r = r.WithContext(context.WithValue(r.Context(), actorKey, id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor guards administrative routes. Requests without a valid
// X-User-ID header are rejected so every admin action is attributable.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorID(r.Context()); !ok {
			http.Error(w, "X-User-ID header required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorID returns the acting user id stored by ActorContext.
func ActorID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey).(int64)
	return id, ok
}
