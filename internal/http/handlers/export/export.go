// Package export отдаёт журнал и сводку в CSV.
//
// Файл собирается в памяти целиком, поэтому ошибка сервиса
// всё ещё может быть возвращена клиенту в обычном JSON-формате.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/redcajeros/internal/http/middlewarectx"
	"github.com/magabrotheeeer/redcajeros/internal/http/request"
	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

// Service описывает выгрузку в CSV.
type Service interface {
	Charges(ctx context.Context, accountID string, f models.ChargeFilter, w io.Writer) error
	Summary(ctx context.Context, accountID string, w io.Writer) error
}

// Handler объединяет обработчики /export.
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

func (h *Handler) writeCSV(w http.ResponseWriter, log *slog.Logger, name string, buf *bytes.Buffer) {
	filename := fmt.Sprintf("%s-%s.csv", name, h.now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Error("failed to write csv", sl.Err(err))
	}
}

// Charges godoc
// @Summary Выгрузка журнала в CSV
// @Tags Export
// @Produce text/csv
// @Security BearerAuth
// @Param from query string false "Начало периода"
// @Param to query string false "Конец периода"
// @Param cashier_id query int false "ID кассира"
// @Param platform query string false "Платформа"
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorResponse
// @Router /export/charges [get]
func (h *Handler) Charges(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.export.charges"
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

	var buf bytes.Buffer
	if err := h.service.Charges(r.Context(), accountID, filter, &buf); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	h.writeCSV(w, log, "charges", &buf)
}

// Summary godoc
// @Summary Выгрузка сводки в CSV
// @Tags Export
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /export/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.export.summary"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.RequireAccount(w, r, log)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.Summary(r.Context(), accountID, &buf); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	h.writeCSV(w, log, "summary", &buf)
}
