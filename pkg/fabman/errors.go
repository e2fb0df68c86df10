package fabman

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// TagDuplicateEmail 422 响应中表示邮箱已存在的标记
const TagDuplicateEmail = "duplicateEmailAddress"

// APIError 远端返回非 2xx
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	// Message 仅 400 响应体中的 message 字段
	Message string
	Body    []byte
}

// NewAPIError 由响应构造错误，400 时解析 message
func NewAPIError(resp *Response) *APIError {
	e := &APIError{
		Method:     resp.Method,
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
	if resp.StatusCode == http.StatusBadRequest {
		var parsed struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(resp.Body, &parsed); err == nil {
			e.Message = parsed.Message
		}
	}
	return e
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("Couldn't %s %s (HTTP %d)", e.Method, e.URL, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// HasTag 响应状态为 status 且响应体 data.<tag> 为真值
func (e *APIError) HasTag(status int, tag string) bool {
	if e.StatusCode != status {
		return false
	}
	var parsed struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(e.Body, &parsed); err != nil || parsed.Data == nil {
		return false
	}
	switch v := parsed.Data[tag].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	default:
		return true
	}
}

// IsDuplicateEmail 是否为邮箱重复（422 + data.duplicateEmailAddress）
func IsDuplicateEmail(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.HasTag(http.StatusUnprocessableEntity, TagDuplicateEmail)
}
