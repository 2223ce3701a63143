package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/services"
)

// Machine-readable error codes carried in failure envelopes.
const (
	CodeUpstreamUnavailable  = "upstream_unavailable"
	CodeMalformedModelOutput = "malformed_model_output"
	CodeInvalidRequest       = "invalid_request"
	CodeNotFound             = "not_found"
	CodeStreamInterrupted    = "stream_interrupted"
)

// respondError maps a service error to a failure envelope with an HTTP
// status and a typed code.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := CodeUpstreamUnavailable

	switch {
	case errors.Is(err, services.ErrMalformedModelOutput):
		status = http.StatusBadGateway
		code = CodeMalformedModelOutput
	case errors.Is(err, services.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
		code = CodeUpstreamUnavailable
	case errors.Is(err, services.ErrNotConfigured):
		status = http.StatusServiceUnavailable
		code = CodeUpstreamUnavailable
	case errors.Is(err, services.ErrStreamInterrupted):
		status = http.StatusBadGateway
		code = CodeStreamInterrupted
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

func respondInvalid(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
		"code":    CodeInvalidRequest,
	})
}

func respondNotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error":   msg,
		"code":    CodeNotFound,
	})
}
