package utils

import "fmt"

const (
	CodeSSH                = 1001
	CodeDeployStep         = 2001
	CodeValidation         = 3001
	CodeClusterOperation   = 4001
	CodeConfigNotFound     = 4004
	CodePortAllocation     = 4009
	CodeSystem             = 5001
	CodeClusterUnavailable = 5003
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func NewSSHError(err error) *APIError {
	return &APIError{
		Code:    CodeSSH,
		Message: "SSH connection failed",
		Details: err.Error(),
	}
}

func NewDeployError(step string, err error) *APIError {
	return &APIError{
		Code:    CodeDeployStep,
		Message: fmt.Sprintf("deploy step %s failed", step),
		Details: err.Error(),
	}
}

func NewValidationError(field string, value interface{}) *APIError {
	return &APIError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("invalid parameter: %s", field),
		Details: fmt.Sprintf("invalid value: %v", value),
	}
}

func NewClusterError(operation string, err error) *APIError {
	return &APIError{
		Code:    CodeClusterOperation,
		Message: fmt.Sprintf("cluster operation %s failed", operation),
		Details: err.Error(),
	}
}

func NewConfigNotFoundError(err error) *APIError {
	return &APIError{
		Code:    CodeConfigNotFound,
		Message: "cluster configuration not found",
		Details: err.Error(),
	}
}

func NewPortAllocationError(err error) *APIError {
	return &APIError{
		Code:    CodePortAllocation,
		Message: "no free ports available",
		Details: err.Error(),
	}
}

func NewClusterUnavailableError(err error) *APIError {
	return &APIError{
		Code:    CodeClusterUnavailable,
		Message: "cluster unavailable",
		Details: err.Error(),
	}
}

func NewSystemError(err error) *APIError {
	return &APIError{
		Code:    CodeSystem,
		Message: "system error",
		Details: err.Error(),
	}
}
