// Package request содержит общие шаги разбора HTTP-запроса: декодирование
// и валидацию JSON, чтение идентификаторов из пути и фильтров журнала из query.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/redcajeros/internal/http/response"
	"github.com/magabrotheeeer/redcajeros/internal/lib/sl"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

const dateLayout = "2006-01-02"

// DecodeJSON читает тело запроса в dst и проверяет его валидатором.
// При ошибке пишет ответ 400 или 422 и возвращает false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.JSON(w, r, response.ValidationError(verrs))
		} else {
			render.JSON(w, r, response.Error("invalid request body"))
		}
		return false
	}
	return true
}

// IDParam читает положительный числовой идентификатор из пути.
func IDParam(w http.ResponseWriter, r *http.Request, log *slog.Logger, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		log.Info("invalid id format", slog.String(name, raw))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return 0, false
	}
	return id, true
}

// BadQuery пишет ответ 400 для некорректных параметров строки запроса.
func BadQuery(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Info("invalid query", sl.Err(err))
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Error(err.Error()))
}

// OptionalInt64 разбирает необязательный положительный параметр.
func OptionalInt64(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &v, nil
}

// Limit разбирает параметр limit. Пустое значение даёт 0.
func Limit(q url.Values) (int, error) {
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid limit")
	}
	return v, nil
}

// parseTime принимает дату YYYY-MM-DD или время в RFC3339.
// Для даты границы "to" берётся конец дня.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// ChargeFilter собирает фильтр журнала из параметров from, to, cashier_id, platform и limit.
func ChargeFilter(q url.Values) (models.ChargeFilter, error) {
	var f models.ChargeFilter

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := parseTime(raw, false)
		if err != nil {
			return f, errors.New("invalid from")
		}
		f.From = &t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := parseTime(raw, true)
		if err != nil {
			return f, errors.New("invalid to")
		}
		f.To = &t
	}

	cashierID, err := OptionalInt64(q, "cashier_id")
	if err != nil {
		return f, err
	}
	f.CashierID = cashierID

	if p := strings.TrimSpace(q.Get("platform")); p != "" {
		f.Platform = &p
	}

	limit, err := Limit(q)
	if err != nil {
		return f, err
	}
	f.Limit = limit
	return f, nil
}
