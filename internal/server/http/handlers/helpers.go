package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/server/http/dto"
)

// requestOrder adapts request-supplied order content to the use case's order
// source.
type requestOrder struct {
	total    float64
	items    []model.ReceiptItem
	notify   model.Notify
	customer *model.Customer
}

func newRequestOrder(req dto.FiscalizeRequest) *requestOrder {
	order := &requestOrder{
		total: req.Total,
		items: toModelItems(req.Items),
	}
	for _, contact := range req.Contacts {
		order.notify.AddContact(contact)
	}
	if req.Customer != "" {
		order.customer = &model.Customer{Name: req.Customer}
	}
	return order
}

func (o *requestOrder) Total(context.Context, string, string) (float64, error) {
	return o.total, nil
}

func (o *requestOrder) Items(_ context.Context, _, _ string, _ model.ReceiptSubType) ([]model.ReceiptItem, error) {
	return o.items, nil
}

func (o *requestOrder) Customer(context.Context, string, string) (*model.Customer, error) {
	return o.customer, nil
}

func (o *requestOrder) Notify(context.Context, string, string) (model.Notify, error) {
	return o.notify, nil
}

func toModelItems(items []dto.ItemRequest) []model.ReceiptItem {
	result := make([]model.ReceiptItem, 0, len(items))
	for _, item := range items {
		kind := model.ItemKind(item.Type)
		if kind == 0 {
			kind = model.ItemProduct
		}
		method := model.PaymentMethod(item.PaymentMethod)
		if method == 0 {
			method = model.PaymentMethodFull
		}
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}
		result = append(result, model.ReceiptItem{
			Kind:          kind,
			Name:          item.Name,
			Price:         item.Price,
			Quantity:      quantity,
			Amount:        item.Amount,
			Vat:           item.Vat,
			PaymentMethod: method,
		})
	}
	return result
}

func toNotify(contacts []string) model.Notify {
	var notify model.Notify
	for _, contact := range contacts {
		notify.AddContact(contact)
	}
	return notify
}

func toModelAmount(amount *dto.AmountRequest) *model.Amount {
	if amount == nil {
		return nil
	}
	return &model.Amount{Prepayment: amount.Prepayment, Cashless: amount.Cashless}
}

func toReceiptResponse(receipt *model.Receipt, link string) dto.ReceiptResponse {
	return dto.ReceiptResponse{
		ID:           receipt.ID,
		UUID:         receipt.UUID,
		OrderID:      receipt.OrderID,
		SiteID:       receipt.SiteID,
		Type:         string(receipt.Type),
		SubType:      string(receipt.SubType),
		Status:       string(receipt.Status),
		Total:        receipt.Amount.Total(),
		Attempts:     receipt.Attempts,
		ResponseCode: receipt.ResponseCode,
		Link:         link,
		CreatedAt:    receipt.CreatedAt,
		UpdatedAt:    receipt.UpdatedAt,
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		sequencingErr *domainErrors.SequencingError
		validationErr *domainErrors.ValidationError
		codecErr      *domainErrors.CodecError
		gatewayErr    *domainErrors.GatewayError
		settingsErr   *domainErrors.SettingsError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &codecErr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.As(err, &sequencingErr):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.As(err, &gatewayErr):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: err.Error()})
	case errors.As(err, &settingsErr):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domainErrors.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}
