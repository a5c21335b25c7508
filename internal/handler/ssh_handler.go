package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arakoon-deploy-backend/internal/model"
	"arakoon-deploy-backend/internal/service"
)

type SSHHandler struct {
	sshService *service.SSHService
}

func NewSSHHandler(sshService *service.SSHService) *SSHHandler {
	return &SSHHandler{
		sshService: sshService,
	}
}

func (h *SSHHandler) TestConnection(c *gin.Context) {
	var req model.SSHTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	if apiErr := validateIPs("ip", req.IP); apiErr != nil {
		badRequest(c, apiErr)
		return
	}

	result := h.sshService.TestConnection(&req)
	c.JSON(http.StatusOK, result)
}

func (h *SSHHandler) BatchTestConnection(c *gin.Context) {
	var req model.BatchSSHTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	results := h.sshService.BatchTestConnection(&req)
	c.JSON(http.StatusOK, results)
}
