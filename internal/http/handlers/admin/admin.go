// Package admin реализует обработчики администратора платформы:
// очередь ожидающих оплат, ручное подтверждение и отклонение,
// статистику подписок и изменение настроек.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/redcajeros/internal/http/request"
	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// BillingService описывает ручной процесс оплаты подписок.
type BillingService interface {
	ListPending(ctx context.Context) ([]models.PendingPayment, error)
	Verify(ctx context.Context, code string) (*models.PaymentRequest, error)
	Reject(ctx context.Context, code, reason string) (*models.PaymentRequest, error)
	Stats(ctx context.Context, now time.Time) (*models.BillingStats, error)
}

// SettingsService изменяет настройки платформы.
type SettingsService interface {
	Update(ctx context.Context, values map[string]string) (*models.Settings, error)
}

// Handler объединяет обработчики /admin.
type Handler struct {
	log      *slog.Logger
	billing  BillingService
	settings SettingsService
	validate *validator.Validate
	now      func() time.Time
}

// New создаёт Handler.
func New(log *slog.Logger, billing BillingService, settings SettingsService) *Handler {
	return &Handler{
		log:      log,
		billing:  billing,
		settings: settings,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Pending godoc
// @Summary Ожидающие оплаты
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.PendingPayment}
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/payments/pending [get]
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.pending")

	list, err := h.billing.ListPending(r.Context())
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if list == nil {
		list = []models.PendingPayment{}
	}
	render.JSON(w, r, response.OKWithData(list))
}

// Verify godoc
// @Summary Подтвердить оплату
// @Description Активирует тариф владельца на срок продления.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param code path string true "Код оплаты"
// @Success 200 {object} response.Response{data=models.PaymentRequest}
// @Failure 404 {object} response.ErrorResponse "Нет ожидающего запроса с таким кодом"
// @Router /admin/payments/{code}/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.verify")

	code := chi.URLParam(r, "code")
	payment, err := h.billing.Verify(r.Context(), code)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("payment verified", slog.String("code", payment.Code), sl.Account(payment.AccountID))
	render.JSON(w, r, response.OKWithData(payment))
}

// Reject godoc
// @Summary Отклонить оплату
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Код оплаты"
// @Param request body models.RejectInput false "Причина"
// @Success 200 {object} response.Response{data=models.PaymentRequest}
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/payments/{code}/reject [post]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.reject")

	var req models.RejectInput
	if r.ContentLength != 0 {
		if !request.DecodeJSON(w, r, log, h.validate, &req) {
			return
		}
	}

	code := chi.URLParam(r, "code")
	payment, err := h.billing.Reject(r.Context(), code, strings.TrimSpace(req.Reason))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("payment rejected", slog.String("code", payment.Code), sl.Account(payment.AccountID))
	render.JSON(w, r, response.OKWithData(payment))
}

// Stats godoc
// @Summary Статистика подписок
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.BillingStats}
// @Router /admin/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.stats")

	stats, err := h.billing.Stats(r.Context(), h.now())
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(stats))
}

// UpdateSettings godoc
// @Summary Изменить настройки платформы
// @Description Принимает объект ключ-значение. Неизвестный ключ отклоняет весь набор.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body map[string]string true "Настройки"
// @Success 200 {object} response.Response{data=models.Settings}
// @Failure 400 {object} response.ErrorResponse
// @Router /admin/settings [put]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.settings")

	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil || len(values) == 0 {
		log.Info("invalid settings body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	st, err := h.settings.Update(r.Context(), values)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	log.Info("settings updated", slog.Any("keys", keys))
	render.JSON(w, r, response.OKWithData(st))
}
