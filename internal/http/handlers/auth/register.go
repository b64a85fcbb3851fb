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

// RegisterHandler обрабатывает регистрацию нового владельца.
type RegisterHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewRegister создаёт RegisterHandler.
func NewRegister(log *slog.Logger, service Service) *RegisterHandler {
	return &RegisterHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация владельца
// @Description Создаёт аккаунт на пробном тарифе.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RegisterInput true "Данные регистрации"
// @Success 201 {object} response.Response{data=models.Account}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/register [post]
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.RegisterInput
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("account registered", sl.Account(account.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(account))
}
