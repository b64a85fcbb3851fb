// Package settlement реализует приём оплаты от кассира и историю расчётов.
package settlement

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

// Service описывает движок расчётов.
type Service interface {
	Record(ctx context.Context, accountID string, req models.SettlementRequest) (*models.SettlementResult, error)
	List(ctx context.Context, accountID string, cashierID *int64, limit int) ([]models.Settlement, error)
}

// Handler объединяет обработчики /settlements.
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

// Create godoc
// @Summary Принять оплату от кассира
// @Description Гасит самые старые непогашенные записи кассира. Без amount_paid оплачивается весь остаток.
// @Tags Settlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SettlementRequest true "Оплата"
// @Success 201 {object} response.Response{data=models.SettlementResult}
// @Failure 400 {object} response.ErrorResponse "Нечего гасить или неверная сумма"
// @Failure 404 {object} response.ErrorResponse "Кассир не найден"
// @Failure 409 {object} response.ErrorResponse "Записи изменились во время расчёта"
// @Failure 422 {object} response.ErrorResponse
// @Router /settlements [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settlement.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	var req models.SettlementRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	result, err := h.service.Record(r.Context(), accountID, req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("settlement recorded", sl.Account(accountID),
		slog.Int64("settlement_id", result.SettlementID),
		slog.String("branch", result.Branch))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(result))
}

// List godoc
// @Summary История расчётов
// @Tags Settlements
// @Produce json
// @Security BearerAuth
// @Param cashier_id query int false "ID кассира"
// @Param limit query int false "Максимум записей"
// @Success 200 {object} response.Response{data=[]models.Settlement}
// @Router /settlements [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settlement.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	q := r.URL.Query()
	cashierID, err := request.OptionalInt64(q, "cashier_id")
	if err != nil {
		request.BadQuery(w, r, log, err)
		return
	}
	limit, err := request.Limit(q)
	if err != nil {
		request.BadQuery(w, r, log, err)
		return
	}

	list, err := h.service.List(r.Context(), accountID, cashierID, limit)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if list == nil {
		list = []models.Settlement{}
	}
	render.JSON(w, r, response.OKWithData(list))
}
