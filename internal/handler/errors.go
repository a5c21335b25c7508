package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"arakoon-deploy-backend/internal/model"
	"arakoon-deploy-backend/internal/pkg/arakoon"
	"arakoon-deploy-backend/internal/pkg/remote"
	"arakoon-deploy-backend/pkg/utils"
)

// toAPIError maps a cluster operation failure onto a status and an APIError.
func toAPIError(operation string, err error) (int, *utils.APIError) {
	var (
		notFound    *arakoon.ConfigNotFoundError
		ports       *arakoon.PortAllocationError
		unavailable *arakoon.ClusterUnavailableError
		service     *arakoon.ServiceControlError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, utils.NewConfigNotFoundError(err)
	case errors.As(err, &ports):
		return http.StatusConflict, utils.NewPortAllocationError(err)
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, utils.NewClusterUnavailableError(err)
	case errors.As(err, &service):
		return http.StatusInternalServerError, utils.NewDeployError(service.Action, err)
	case errors.Is(err, arakoon.ErrInvalidClusterID):
		return http.StatusBadRequest, utils.NewValidationError("clusterId", err)
	case errors.Is(err, remote.ErrInvalidIP):
		return http.StatusBadRequest, utils.NewValidationError("ip", err)
	default:
		return http.StatusInternalServerError, utils.NewClusterError(operation, err)
	}
}

func abortWithError(c *gin.Context, operation string, err error) {
	status, apiErr := toAPIError(operation, err)
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

func badRequest(c *gin.Context, apiErr *utils.APIError) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

func invalidPayload(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Code:    utils.CodeValidation,
		Message: "Invalid request payload",
		Details: err.Error(),
	})
}

// validateIPs returns the APIError of the first invalid address.
func validateIPs(field string, ips ...string) *utils.APIError {
	for _, ip := range ips {
		if err := utils.ValidateIP(ip); err != nil {
			return utils.NewValidationError(field, ip)
		}
	}
	return nil
}
