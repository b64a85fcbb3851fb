// Package config отдаёт публичную часть настроек платформы:
// валюту, список платформ, процент комиссии и цены тарифов.
package config

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// Service источник публичных настроек.
type Service interface {
	Public(ctx context.Context) (*models.PublicSettings, error)
}

// Handler обработчик GET /config.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Публичные настройки
// @Description Валюта, платформы, процент комиссии, цены тарифов и контакт администратора.
// @Tags Config
// @Produce json
// @Success 200 {object} response.Response{data=models.PublicSettings}
// @Failure 500 {object} response.ErrorResponse
// @Router /config [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.config"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	public, err := h.service.Public(r.Context())
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(public))
}
