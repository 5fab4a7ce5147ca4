package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SettingsHandler exposes configuration verification and health endpoints.
type SettingsHandler struct {
	facade ReceiptFacade
}

// NewSettingsHandler constructs SettingsHandler.
func NewSettingsHandler(facade ReceiptFacade) *SettingsHandler {
	return &SettingsHandler{facade: facade}
}

// Check handles GET /api/settings. It validates the configured fiscal
// context against the cashbox registration.
func (h *SettingsHandler) Check(c *gin.Context) {
	if err := h.facade.VerifySettings(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Ping handles GET /ping.
func (h *SettingsHandler) Ping(c *gin.Context) {
	if err := h.facade.HealthCheck(c.Request.Context()); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}
