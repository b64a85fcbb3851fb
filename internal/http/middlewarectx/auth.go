// Package middlewarectx содержит HTTP middleware для проверки JWT, статуса подписки,
// роли администратора и ограничения частоты запросов.
//
// JWTMiddleware проверяет наличие и валидность JWT в заголовке Authorization
// и в случае успеха добавляет в контекст идентификатор аккаунта, email и роль
// для дальнейшего использования в обработчиках.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// AccountID: ключ идентификатора аккаунта в контексте.
	AccountID Key = "account_id"
	// Email: ключ email аккаунта в контексте.
	Email Key = "email"
	// Role: ключ роли в контексте.
	Role Key = "role"
)

// TokenValidator описывает сервис проверки JWT.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.Identity, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, добавляет аккаунт, email и роль в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func JWTMiddleware(validator TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			identity, err := validator.ValidateToken(r.Context(), tokenStr)
			if err != nil || identity == nil {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity кладёт данные аутентифицированного аккаунта в контекст.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	ctx = context.WithValue(ctx, AccountID, identity.AccountID)
	ctx = context.WithValue(ctx, Email, identity.Email)
	return context.WithValue(ctx, Role, identity.Role)
}

// AccountFromContext возвращает идентификатор аккаунта из контекста.
func AccountFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountID).(string)
	return id, ok && id != ""
}

// RequireAccount достаёт аккаунт из контекста или пишет 401.
func RequireAccount(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, bool) {
	accountID, ok := AccountFromContext(r.Context())
	if !ok {
		log.Error("account identification missing")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("account identification missing"))
	}
	return accountID, ok
}
