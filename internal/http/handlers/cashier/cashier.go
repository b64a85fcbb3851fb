// Package cashier реализует HTTP-обработчики управления кассирами:
// список, создание, изменение, деактивацию, удаление и непогашенный остаток.
package cashier

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/redcajeros/internal/http/middlewarectx"
	"github.com/magabrotheeeer/redcajeros/internal/http/request"
	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// Service описывает операции журнала над кассирами.
type Service interface {
	ListCashiers(ctx context.Context, accountID string, includeInactive bool) ([]models.Cashier, error)
	CreateCashier(ctx context.Context, accountID, name string) (*models.Cashier, error)
	UpdateCashier(ctx context.Context, accountID string, id int64, in models.CashierInput) (*models.Cashier, error)
	DeactivateCashier(ctx context.Context, accountID string, id int64) (*models.Cashier, error)
	DeleteCashier(ctx context.Context, accountID string, id int64) error
}

// OutstandingService считает непогашенный остаток кассира.
type OutstandingService interface {
	Outstanding(ctx context.Context, accountID string, cashierID int64) (*models.Outstanding, error)
}

// Handler объединяет обработчики /cashiers.
type Handler struct {
	log         *slog.Logger
	service     Service
	outstanding OutstandingService
	validate    *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, outstanding OutstandingService) *Handler {
	return &Handler{
		log:         log,
		service:     service,
		outstanding: outstanding,
		validate:    validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Список кассиров
// @Tags Cashiers
// @Produce json
// @Security BearerAuth
// @Param include_inactive query bool false "Показать неактивных"
// @Success 200 {object} response.Response{data=[]models.Cashier}
// @Router /cashiers [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.cashier.list")

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))

	cashiers, err := h.service.ListCashiers(r.Context(), accountID, includeInactive)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if cashiers == nil {
		cashiers = []models.Cashier{}
	}
	render.JSON(w, r, response.OKWithData(cashiers))
}

// Create godoc
// @Summary Добавить кассира
// @Tags Cashiers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CashierInput true "Имя кассира"
// @Success 201 {object} response.Response{data=models.Cashier}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Имя уже занято"
// @Router /cashiers [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.cashier.create")

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	var req models.CashierInput
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	cashier, err := h.service.CreateCashier(r.Context(), accountID, req.Name)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(cashier))
}

// Update godoc
// @Summary Изменить кассира
// @Tags Cashiers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID кассира"
// @Param request body models.CashierInput true "Новое имя и признак активности"
// @Success 200 {object} response.Response{data=models.Cashier}
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /cashiers/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.cashier.update")

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	var req models.CashierInput
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	cashier, err := h.service.UpdateCashier(r.Context(), accountID, id, req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(cashier))
}

// Deactivate godoc
// @Summary Деактивировать кассира
// @Tags Cashiers
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID кассира"
// @Success 200 {object} response.Response{data=models.Cashier}
// @Failure 404 {object} response.ErrorResponse
// @Router /cashiers/{id}/deactivate [post]
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.cashier.deactivate")

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}

	cashier, err := h.service.DeactivateCashier(r.Context(), accountID, id)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(cashier))
}

// Delete godoc
// @Summary Удалить кассира без записей
// @Tags Cashiers
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID кассира"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "У кассира есть записи"
// @Router /cashiers/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.cashier.delete")

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCashier(r.Context(), accountID, id); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"deleted_id": id,
	}))
}

// Outstanding godoc
// @Summary Непогашенный остаток кассира
// @Tags Cashiers
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID кассира"
// @Success 200 {object} response.Response{data=models.Outstanding}
// @Failure 404 {object} response.ErrorResponse
// @Router /cashiers/{id}/outstanding [get]
func (h *Handler) Outstanding(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.cashier.outstanding")

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}

	out, err := h.outstanding.Outstanding(r.Context(), accountID, id)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OKWithData(out))
}
