// Package charge реализует HTTP-обработчики записей журнала:
// выборку по фильтру, создание начисления или долга и удаление неоплаченной записи.
package charge

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
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// Service описывает операции журнала над записями.
type Service interface {
	ListCharges(ctx context.Context, accountID string, f models.ChargeFilter) ([]models.Charge, error)
	CreateCharge(ctx context.Context, accountID string, in models.ChargeInput) (*models.Charge, error)
	DeleteCharge(ctx context.Context, accountID string, id int64) error
}

// Handler объединяет обработчики /charges.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// List godoc
// @Summary Записи журнала
// @Description Возвращает записи, новые первыми. Даты принимаются как YYYY-MM-DD или RFC3339.
// @Tags Charges
// @Produce json
// @Security BearerAuth
// @Param from query string false "Начало периода"
// @Param to query string false "Конец периода"
// @Param cashier_id query int false "ID кассира"
// @Param platform query string false "Платформа"
// @Param limit query int false "Максимум записей"
// @Success 200 {object} response.Response{data=[]models.Charge}
// @Failure 400 {object} response.ErrorResponse
// @Router /charges [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.charge.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	filter, err := request.ChargeFilter(r.URL.Query())
	if err != nil {
		request.BadQuery(w, r, log, err)
		return
	}

	charges, err := h.service.ListCharges(r.Context(), accountID, filter)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if charges == nil {
		charges = []models.Charge{}
	}
	render.JSON(w, r, response.OKWithData(charges))
}

// Create godoc
// @Summary Новая запись журнала
// @Description Отрицательная сумма записывается как долг кассира.
// @Tags Charges
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ChargeInput true "Запись"
// @Success 201 {object} response.Response{data=models.Charge}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Кассир не найден"
// @Failure 422 {object} response.ErrorResponse
// @Router /charges [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.charge.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	var req models.ChargeInput
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	charge, err := h.service.CreateCharge(r.Context(), accountID, req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(charge))
}

// Delete godoc
// @Summary Удалить неоплаченную запись
// @Tags Charges
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID записи"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Запись уже оплачена"
// @Router /charges/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.charge.delete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCharge(r.Context(), accountID, id); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"deleted_id": id,
	}))
}
