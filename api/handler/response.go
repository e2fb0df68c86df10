package handler

import (
	"errors"
	"net/http"

	"github.com/fabsignup/fabsignup/internal/mapping"
	"github.com/fabsignup/fabsignup/internal/resolver"
	"github.com/fabsignup/fabsignup/internal/service"
	"github.com/fabsignup/fabsignup/internal/validation"
	"github.com/fabsignup/fabsignup/pkg/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 未登记表单时的提示
const noFormMessage = "This service needs a form linked to a response sheet. Please register the form definition and its response header first."

// errorStatus 错误到 HTTP 状态码与错误码的映射
func errorStatus(err error) (int, string) {
	var issue *validation.Issue
	switch {
	case errors.As(err, &issue):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED"
	case errors.Is(err, service.ErrNoForm):
		return http.StatusNotFound, "NO_FORM"
	case errors.Is(err, service.ErrNoAPIKey):
		return http.StatusUnprocessableEntity, "API_KEY_MISSING"
	case errors.Is(err, service.ErrNotAllowed):
		return http.StatusBadRequest, "NOT_ALLOWED"
	case errors.Is(err, mapping.ErrRowNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	}
	switch resolver.CategoryOf(err) {
	case resolver.CategoryConfiguration:
		return http.StatusUnprocessableEntity, "CONFIGURATION_ERROR"
	case resolver.CategoryMalformedInput:
		return http.StatusUnprocessableEntity, "MALFORMED_INPUT"
	case resolver.CategoryRemoteAPI:
		return http.StatusBadGateway, "REMOTE_API_ERROR"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeError 统一错误输出；data 可附带已写回的状态等上下文
func writeError(c *gin.Context, err error, data interface{}) {
	status, code := errorStatus(err)
	msg := err.Error()
	if code == "NO_FORM" {
		msg = noFormMessage
	}
	var issue *validation.Issue
	if data == nil && errors.As(err, &issue) {
		data = issue
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "request_id", c.GetString("request_id"), "code", code, "error", err)
	}
	c.JSON(status, ErrorResponse{Code: code, Message: msg, Data: data})
}

func writeOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "SUCCESS",
		"message": message,
		"data":    data,
	})
}

func writeBadRequest(c *gin.Context, err error) {
	logger.Warn("Invalid request parameters", "request_id", c.GetString("request_id"), "error", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    "INVALID_PARAMS",
		Message: "invalid request: " + err.Error(),
	})
}
