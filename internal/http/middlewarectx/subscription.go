package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
)

// SubscriptionChecker определяет интерфейс проверки статуса подписки.
type SubscriptionChecker interface {
	SubscriptionActive(ctx context.Context, accountID string) (bool, error)
}

// SubscriptionStatusMiddleware пропускает чтение всегда, а изменяющие запросы
// только при действующей подписке. Иначе возвращает 403.
func SubscriptionStatusMiddleware(log *slog.Logger, checker SubscriptionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			accountID, ok := RequireAccount(w, r, log)
			if !ok {
				return
			}

			active, err := checker.SubscriptionActive(r.Context(), accountID)
			if err != nil {
				log.Error("failed to get subscription status", sl.Account(accountID), sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}
			if !active {
				log.Info("subscription expired, write denied", sl.Account(accountID))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("subscription expired, renew to continue"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
