// Package auth реализует HTTP-обработчики регистрации, входа и профиля владельца.
//
// Register создаёт аккаунт на пробном тарифе, Login выдаёт JWT,
// Me возвращает аккаунт вместе с остатком подписки.
package auth

import (
	"context"

	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// Service описывает бизнес-логику аутентификации.
type Service interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, *models.Account, error)
	Me(ctx context.Context, accountID string) (*models.AccountInfo, error)
}
