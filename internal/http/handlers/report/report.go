// Package report отдаёт сводку по кассирам и показатели главной панели.
package report

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/redcajeros/internal/http/middlewarectx"
	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// Service описывает отчёты журнала.
type Service interface {
	Summarize(ctx context.Context, accountID string) (*models.Summary, error)
	Stats(ctx context.Context, accountID string, now time.Time) (*models.LedgerStats, error)
}

// Handler объединяет обработчики /summary и /stats.
type Handler struct {
	log     *slog.Logger
	service Service
	now     func() time.Time
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		now:     time.Now,
	}
}

// Summary godoc
// @Summary Сводка по кассирам
// @Description Непогашенные суммы по платформам, количество записей и комиссия для каждого кассира.
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Summary}
// @Router /summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.report.summary"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}

	summary, err := h.service.Summarize(r.Context(), accountID)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(summary))
}

// Stats godoc
// @Summary Показатели главной панели
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.LedgerStats}
// @Router /stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.report.stats"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), accountID, h.now())
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(stats))
}
