package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/asquebay/leadbase-service/internal/lib/jwtauth"
	"github.com/asquebay/leadbase-service/internal/model"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p jwtauth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFrom достаёт пользователя, положенного authenticate
func principalFrom(ctx context.Context) jwtauth.Principal {
	p, _ := ctx.Value(principalKey{}).(jwtauth.Principal)
	return p
}

// authenticate проверяет заголовок Authorization: Bearer <token>
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			h.respondError(w, http.StatusUnauthorized, model.CodeUnauthorized, "missing bearer token")
			return
		}

		p, err := h.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			h.log.Debug("rejected token", slog.String("error", err.Error()))
			h.respondError(w, http.StatusUnauthorized, model.CodeUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// requireRole пропускает только пользователей с одной из ролей
func requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := principalFrom(r.Context())
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"forbidden","code":"` + model.CodeForbidden + `"}`))
		})
	}
}
