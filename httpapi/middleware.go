package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/identity"
)

// authenticate verifies the bearer token and attaches the actor to the context.
func (a *api) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, a.Log, identity.ErrUnauthenticated)
			return
		}

		actor, err := a.Verifier.Verify(authHeader)
		if err != nil {
			a.Log.Warn("token rejected", zap.Error(err))
			writeError(w, a.Log, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
	})
}

func actorFrom(r *http.Request) identity.Actor {
	actor, _ := identity.FromContext(r.Context())
	return actor
}
