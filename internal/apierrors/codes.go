// Package apierrors provides structured API error codes and responses.
// All codes are namespaced (e.g., "core:invalid_request", "registry:not_found").
package apierrors

import "net/http"

// Core error codes - registered automatically at init
const (
	CodeInvalidRequest = "core:invalid_request"
	CodeNotFound       = "core:not_found"
	CodeInternalError  = "core:internal_error"
)

// Registry error codes
const (
	CodePluginNotFound     = "registry:not_found"
	CodeValidationFailed   = "registry:validation_failed"
	CodeStorageUnavailable = "registry:storage_unavailable"
)

// knownErrors defines all error codes with their default messages and HTTP status
var knownErrors = []ErrorCode{
	{Code: CodeInvalidRequest, Message: "Invalid request body", HTTPStatus: http.StatusBadRequest},
	{Code: CodeNotFound, Message: "Resource not found", HTTPStatus: http.StatusNotFound},
	{Code: CodeInternalError, Message: "Internal server error", HTTPStatus: http.StatusInternalServerError},

	{Code: CodePluginNotFound, Message: "Plugin not found", HTTPStatus: http.StatusNotFound},
	{Code: CodeValidationFailed, Message: "Plugin manifest validation failed", HTTPStatus: http.StatusBadRequest},
	{Code: CodeStorageUnavailable, Message: "Registry storage unavailable", HTTPStatus: http.StatusServiceUnavailable},
}

func init() {
	for _, e := range knownErrors {
		Registry.Register(e)
	}
}
