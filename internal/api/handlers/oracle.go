package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/virellia/driftline/internal/oracle"
)

// OracleHandler exposes the on-chain oracle status plus the admin-only
// refresh and breaker controls.
type OracleHandler struct {
	oracle *oracle.Oracle
}

func NewOracleHandler(o *oracle.Oracle) *OracleHandler {
	return &OracleHandler{oracle: o}
}

// Status returns the oracle's current state.
func (h *OracleHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.oracle.Status())
}

// Refresh forces an immediate fetch regardless of cache age.
func (h *OracleHandler) Refresh(c *gin.Context) {
	refreshed, err := h.oracle.RefreshIfStale(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"refreshed": false,
			"error":     err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed})
}

// ResetBreaker manually closes the fetch circuit breaker.
func (h *OracleHandler) ResetBreaker(c *gin.Context) {
	h.oracle.ResetBreaker()
	c.JSON(http.StatusOK, gin.H{"status": "breaker reset"})
}
