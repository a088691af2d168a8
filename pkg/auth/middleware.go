package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
)

type claimsKeyType struct{}

var claimsKey = claimsKeyType{}

// ClaimsFromContext возвращает claims, положенные AuthMiddleware
func ClaimsFromContext(ctx context.Context) (*KeycloakClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*KeycloakClaims)
	return claims, ok
}

type authError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authError{Error: code, Code: status, Message: message})
}

// AuthMiddleware проверяет Bearer токен оператора и кладет claims и имя оператора в контекст
func AuthMiddleware(kc *KeycloakClient, logger interfaces.LoggerPort) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Требуется заголовок Authorization")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Неверный формат заголовка Authorization")
				return
			}

			claims, err := kc.ValidateToken(r.Context(), token)
			if err != nil {
				logger.WarnWithContext(r.Context(), "Токен оператора отклонен",
					interfaces.LogField{Key: "error", Value: err.Error()})
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Недействительный токен")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = interfaces.WithOperator(ctx, claims.Operator())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnyRole проверяет наличие хотя бы одной роли из списка
func RequireAnyRole(kc *KeycloakClient, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Оператор не аутентифицирован")
				return
			}

			if !kc.HasAnyRole(claims, roles...) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "Недостаточно прав для операций синхронизации")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
