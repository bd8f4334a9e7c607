package middleware

import (
	"context"
	"net/http"

	"github.com/lqv/messenger/internal/auth"
)

type contextKey string

// UserKeyKey holds the canonical key of the authenticated user.
const UserKeyKey contextKey = "user_key"

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.CookieName)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userKey, err := auth.VerifyCookie(cookie.Value)
		if err != nil || userKey == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserKeyKey, userKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserKey pulls the authenticated key out of a request context; empty
// when the request did not pass AuthMiddleware.
func UserKey(ctx context.Context) string {
	key, _ := ctx.Value(UserKeyKey).(string)
	return key
}
