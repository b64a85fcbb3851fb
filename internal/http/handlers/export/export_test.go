package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/redcajeros/internal/http/middlewarectx"
	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
	"github.com/magabrotheeeer/redcajeros/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Charges(ctx context.Context, accountID string, f models.ChargeFilter, w io.Writer) error {
	args := m.Called(ctx, accountID, f, w)
	if s := args.String(0); s != "" {
		_, _ = io.WriteString(w, s)
	}
	return args.Error(1)
}

func (m *ServiceMock) Summary(ctx context.Context, accountID string, w io.Writer) error {
	args := m.Called(ctx, accountID, w)
	if s := args.String(0); s != "" {
		_, _ = io.WriteString(w, s)
	}
	return args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middlewarectx.WithIdentity(req.Context(), &models.Identity{AccountID: "acc-1", Role: models.RoleUser}))
}

func newHandler(service *ServiceMock) *Handler {
	h := New(newNoopLogger(), service)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestHandler_Charges(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMocks     func(m *ServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name:   "csv",
			target: "/export/charges?platform=Zeus",
			setupMocks: func(m *ServiceMock) {
				m.On("Charges", mock.Anything, "acc-1", mock.MatchedBy(func(f models.ChargeFilter) bool {
					return f.Platform != nil && *f.Platform == "Zeus"
				}), mock.Anything).Return("id,created_at\n1,2025-06-01T10:00:00Z\n", nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantBody:       "id,created_at\n1,2025-06-01T10:00:00Z\n",
		},
		{
			name:           "bad filter",
			target:         "/export/charges?limit=x",
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:   "failure before any byte is sent",
			target: "/export/charges",
			setupMocks: func(m *ServiceMock) {
				m.On("Charges", mock.Anything, "acc-1", mock.Anything, mock.Anything).
					Return("id,created_at\n", apperr.Internal(errors.New("db down"))).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setupMocks(service)

			rec := httptest.NewRecorder()
			newHandler(service).Charges(rec, authed(httptest.NewRequest(http.MethodGet, tt.target, nil)))

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
				assert.Equal(t, `attachment; filename="charges-20250601.csv"`, rec.Header().Get("Content-Disposition"))
			} else {
				assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			}
			service.AssertExpectations(t)
		})
	}
}

func TestHandler_Summary(t *testing.T) {
	service := new(ServiceMock)
	service.On("Summary", mock.Anything, "acc-1", mock.Anything).Return("cashier,total\nTOTAL,0.00\n", nil).Once()

	rec := httptest.NewRecorder()
	newHandler(service).Summary(rec, authed(httptest.NewRequest(http.MethodGet, "/export/summary", nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cashier,total\nTOTAL,0.00\n", rec.Body.String())
	assert.Equal(t, `attachment; filename="summary-20250601.csv"`, rec.Header().Get("Content-Disposition"))
	service.AssertExpectations(t)
}
