package api

import (
	"net/http"

	"artisan-storefront/internal/models"

	"github.com/gin-gonic/gin"
)

type setRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

func (h *Handler) me(c *gin.Context) {
	info, err := h.svc.Access.Me(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) isAdmin(c *gin.Context) {
	isAdmin, err := h.svc.Access.IsAdmin(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isAdmin": isAdmin})
}

func (h *Handler) setUserRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	record, err := h.svc.Access.SetUserRole(c.Request.Context(), c.Param("userId"), req.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
