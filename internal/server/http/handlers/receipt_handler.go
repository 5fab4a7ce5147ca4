package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/server/http/dto"
)

type manualFunc func(ctx context.Context, orderID, siteID string, items []model.ReceiptItem, notify model.Notify, amount *model.Amount) (*model.Receipt, error)

// ReceiptHandler manages receipt issuing and lookup endpoints.
type ReceiptHandler struct {
	facade ReceiptFacade
}

// NewReceiptHandler constructs ReceiptHandler.
func NewReceiptHandler(facade ReceiptFacade) *ReceiptHandler {
	return &ReceiptHandler{facade: facade}
}

// Fiscalize handles POST /api/receipts.
func (h *ReceiptHandler) Fiscalize(c *gin.Context) {
	var req dto.FiscalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	receipt, err := h.facade.Fiscalize(c.Request.Context(), newRequestOrder(req),
		req.OrderID, req.SiteID, model.ReceiptSubType(req.SubType))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toReceiptResponse(receipt, h.facade.ReceiptLink(receipt)))
}

// Refund handles POST /api/refunds.
func (h *ReceiptHandler) Refund(c *gin.Context) {
	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	receipt, err := h.facade.Refund(c.Request.Context(), req.OrderID, req.SiteID, req.Lines)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toReceiptResponse(receipt, h.facade.ReceiptLink(receipt)))
}

// Manual handles POST /api/receipts/manual.
func (h *ReceiptHandler) Manual(c *gin.Context) {
	h.manual(c, h.facade.FiscalizeManual)
}

// ManualRefund handles POST /api/refunds/manual.
func (h *ReceiptHandler) ManualRefund(c *gin.Context) {
	h.manual(c, h.facade.RefundManual)
}

func (h *ReceiptHandler) manual(c *gin.Context, issue manualFunc) {
	var req dto.ManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	receipt, err := issue(c.Request.Context(), req.OrderID, req.SiteID,
		toModelItems(req.Items), toNotify(req.Contacts), toModelAmount(req.Amount))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toReceiptResponse(receipt, h.facade.ReceiptLink(receipt)))
}

// List handles GET /api/orders/:order/receipts.
func (h *ReceiptHandler) List(c *gin.Context) {
	orderID := c.Param("order")
	siteID := c.Query("site")

	receipts, err := h.facade.OrderReceipts(c.Request.Context(), orderID, siteID)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(receipts) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	response := make([]dto.ReceiptResponse, 0, len(receipts))
	for i := range receipts {
		response = append(response, toReceiptResponse(&receipts[i], h.facade.ReceiptLink(&receipts[i])))
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/receipts/:id.
func (h *ReceiptHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid receipt id"})
		return
	}

	receipt, err := h.facade.Receipt(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toReceiptResponse(receipt, h.facade.ReceiptLink(receipt)))
}
