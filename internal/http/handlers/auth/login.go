package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/redcajeros/internal/http/request"
	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// LoginHandler обрабатывает вход по email и паролю.
type LoginHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewLogin создаёт LoginHandler.
func NewLogin(log *slog.Logger, service Service) *LoginHandler {
	return &LoginHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход владельца
// @Description Проверяет учётные данные и возвращает JWT. Истёкшая подписка вход не блокирует.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.LoginInput true "Учётные данные"
// @Success 200 {object} map[string]any "Успешная авторизация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учётные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/login [post]
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.LoginInput
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	token, account, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("login success", sl.Account(account.ID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":   token,
		"role":    account.Role(),
		"account": account,
	}))
}
