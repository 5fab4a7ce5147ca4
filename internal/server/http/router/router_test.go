package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/ketovdk/fiscalgate/internal/config"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/usecase"
)

type facadeStub struct{}

func (facadeStub) Fiscalize(context.Context, usecase.OrderAdapter, string, string, model.ReceiptSubType) (*model.Receipt, error) {
	return nil, nil
}
func (facadeStub) Refund(context.Context, string, string, map[int]float64) (*model.Receipt, error) {
	return nil, nil
}
func (facadeStub) FiscalizeManual(context.Context, string, string, []model.ReceiptItem, model.Notify, *model.Amount) (*model.Receipt, error) {
	return nil, nil
}
func (facadeStub) RefundManual(context.Context, string, string, []model.ReceiptItem, model.Notify, *model.Amount) (*model.Receipt, error) {
	return nil, nil
}
func (facadeStub) OrderReceipts(context.Context, string, string) ([]model.Receipt, error) {
	return nil, nil
}
func (facadeStub) Receipt(context.Context, int64) (*model.Receipt, error) { return nil, nil }
func (facadeStub) ReceiptLink(*model.Receipt) string                      { return "" }
func (facadeStub) VerifySettings(context.Context) error                   { return nil }
func (facadeStub) HealthCheck(context.Context) error                      { return nil }

func TestSetupRoutes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	engine := Setup(facadeStub{}, &config.Config{APIKeyHash: string(hash)}, logger)

	t.Run("ping is open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("metrics is open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("api requires key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}

		req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
		req.Header.Set("X-Api-Key", "secret")
		rec = httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}
