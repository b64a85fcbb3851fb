// Package payment реализует запрос на оплату подписки со стороны владельца
// и просмотр его текущего ожидающего запроса.
package payment

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/redcajeros/internal/http/middlewarectx"
	"github.com/magabrotheeeer/redcajeros/internal/http/request"
	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// Service описывает бизнес-логику оплаты подписки.
type Service interface {
	RequestPayment(ctx context.Context, accountID, plan string) (*models.PaymentInstructions, error)
	PendingStatus(ctx context.Context, accountID string) (*models.PaymentRequest, error)
}

// RequestHandler создаёт запрос на оплату.
type RequestHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewRequest создаёт RequestHandler.
func NewRequest(log *slog.Logger, service Service) *RequestHandler {
	return &RequestHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запрос на оплату подписки
// @Description Выдаёт код оплаты, банковские реквизиты и ссылку WhatsApp для подтверждения перевода.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PaymentInput true "Тариф"
// @Success 201 {object} response.Response{data=models.PaymentInstructions}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Уже есть ожидающий запрос"
// @Failure 422 {object} response.ErrorResponse
// @Router /payments/requests [post]
func (h *RequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.request"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}

	var req models.PaymentInput
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	instructions, err := h.service.RequestPayment(r.Context(), accountID, req.Plan)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("payment requested", sl.Account(accountID), slog.String("code", instructions.Code))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(instructions))
}

// PendingHandler возвращает ожидающий запрос владельца.
type PendingHandler struct {
	log     *slog.Logger
	service Service
}

// NewPending создаёт PendingHandler.
func NewPending(log *slog.Logger, service Service) *PendingHandler {
	return &PendingHandler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Ожидающий запрос на оплату
// @Description Возвращает последний ожидающий запрос или pending=false.
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /payments/requests/pending [get]
func (h *PendingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.pending"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}

	pending, err := h.service.PendingStatus(r.Context(), accountID)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"pending": pending != nil,
		"request": pending,
	}))
}
