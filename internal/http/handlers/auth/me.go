package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/redcajeros/internal/http/middlewarectx"
	"github.com/magabrotheeeer/redcajeros/internal/http/response"
)

// MeHandler возвращает профиль текущего владельца.
type MeHandler struct {
	log     *slog.Logger
	service Service
}

// NewMe создаёт MeHandler.
func NewMe(log *slog.Logger, service Service) *MeHandler {
	return &MeHandler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Профиль владельца
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.AccountInfo}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /auth/me [get]
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.me"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}

	info, err := h.service.Me(r.Context(), accountID)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(info))
}
