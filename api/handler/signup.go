package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fabsignup/fabsignup/internal/catalog"
	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/internal/service"
	"github.com/gin-gonic/gin"
)

// SignupHandler 宿主触发、菜单操作与映射表维护
type SignupHandler struct {
	svc *service.SignupService
}

// NewSignupHandler 创建处理器
func NewSignupHandler(svc *service.SignupService) *SignupHandler {
	return &SignupHandler{svc: svc}
}

// Health GET /api/v1/health
func (h *SignupHandler) Health(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if err := h.svc.Health(); err != nil {
		status = "unhealthy: " + err.Error()
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// FormRequest 表单定义
type FormRequest struct {
	Items  []model.FormItem `json:"items" binding:"required"`
	Header []string         `json:"header"`
}

// RegisterForm POST /api/v1/form
func (h *SignupHandler) RegisterForm(c *gin.Context) {
	var req FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.svc.RegisterForm(ctx, req.Items); err != nil {
		writeError(c, err, nil)
		return
	}
	if req.Header != nil {
		if err := h.svc.SetResponseHeader(ctx, req.Header); err != nil {
			writeError(c, err, nil)
			return
		}
	}
	writeOK(c, "form registered", gin.H{"items": len(req.Items)})
}

// HeaderRequest 回复表表头
type HeaderRequest struct {
	Titles []string `json:"titles" binding:"required"`
}

// SetResponseHeader PUT /api/v1/form/header
func (h *SignupHandler) SetResponseHeader(c *gin.Context) {
	var req HeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.svc.SetResponseHeader(c.Request.Context(), req.Titles); err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "response header stored", gin.H{"columns": len(req.Titles)})
}

// Setup POST /api/v1/setup
func (h *SignupHandler) Setup(c *gin.Context) {
	res, err := h.svc.Setup(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "setup finished", res)
}

// HandleEdit POST /api/v1/edits
func (h *SignupHandler) HandleEdit(c *gin.Context) {
	var req service.Edit
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	res, err := h.svc.HandleEdit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "edit handled", res)
}

// Submit POST /api/v1/submissions
func (h *SignupHandler) Submit(c *gin.Context) {
	var req service.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	sub, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		// 状态已写回提交记录，随错误一并返回
		writeError(c, err, sub)
		return
	}
	writeOK(c, sub.Status, sub)
}

// ListSubmissions GET /api/v1/submissions
func (h *SignupHandler) ListSubmissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	subs, err := h.svc.Submissions(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "ok", subs)
}

// GetSubmission GET /api/v1/submissions/:id
func (h *SignupHandler) GetSubmission(c *gin.Context) {
	sub, err := h.svc.Submission(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "ok", sub)
}

// GetSettings GET /api/v1/settings
func (h *SignupHandler) GetSettings(c *gin.Context) {
	rows, err := h.svc.Settings(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "ok", rows)
}

// APIKeyRequest 设置 API Key
type APIKeyRequest struct {
	APIKey string `json:"api_key"`
}

// SetAPIKey PUT /api/v1/settings/api-key
func (h *SignupHandler) SetAPIKey(c *gin.Context) {
	var req APIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.svc.SetAPIKey(c.Request.Context(), req.APIKey); err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "API key stored", nil)
}

// Catalog GET /api/v1/catalog
func (h *SignupHandler) Catalog(c *gin.Context) {
	writeOK(c, "ok", catalog.Names())
}

// ListFieldMappings GET /api/v1/mappings/fields
func (h *SignupHandler) ListFieldMappings(c *gin.Context) {
	rows, err := h.svc.FieldRows(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "ok", rows)
}

// TargetRequest 修改映射目标
type TargetRequest struct {
	Target string `json:"target"`
}

func rowParam(c *gin.Context) (int, bool) {
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil || row < model.FirstDataRow {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_ROW", Message: "row must be a number >= 2"})
		return 0, false
	}
	return row, true
}

// SetFieldTarget PUT /api/v1/mappings/fields/:row
func (h *SignupHandler) SetFieldTarget(c *gin.Context) {
	row, ok := rowParam(c)
	if !ok {
		return
	}
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	pu, err := h.svc.SetFieldTarget(c.Request.Context(), row, req.Target)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "field mapping updated", pu)
}

// ListPackageMappings GET /api/v1/mappings/packages
func (h *SignupHandler) ListPackageMappings(c *gin.Context) {
	rows, err := h.svc.PackageRows(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "ok", rows)
}

// SetPackageTarget PUT /api/v1/mappings/packages/:row
func (h *SignupHandler) SetPackageTarget(c *gin.Context) {
	row, ok := rowParam(c)
	if !ok {
		return
	}
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.svc.SetPackageTarget(c.Request.Context(), row, req.Target); err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "package mapping updated", nil)
}

// ListGenderMappings GET /api/v1/mappings/genders
func (h *SignupHandler) ListGenderMappings(c *gin.Context) {
	rows, err := h.svc.GenderRows(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "ok", rows)
}

// GenderRequest 整表替换性别映射
type GenderRequest struct {
	Rows []service.GenderInput `json:"rows" binding:"dive"`
}

// ReplaceGenderMappings PUT /api/v1/mappings/genders
func (h *SignupHandler) ReplaceGenderMappings(c *gin.Context) {
	var req GenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.svc.ReplaceGenderMappings(c.Request.Context(), req.Rows); err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "gender mappings replaced", gin.H{"rows": len(req.Rows)})
}

// Validate POST /api/v1/actions/validate
func (h *SignupHandler) Validate(c *gin.Context) {
	issue, err := h.svc.Validate(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if issue != nil {
		writeError(c, issue, issue)
		return
	}
	writeOK(c, "Your settings seem to be OK.", nil)
}

// UpdateFromForm POST /api/v1/actions/update-from-form
func (h *SignupHandler) UpdateFromForm(c *gin.Context) {
	res, err := h.svc.UpdateFromForm(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "mappings updated from form", res)
}

// UpdateFromRemote POST /api/v1/actions/update-from-remote
func (h *SignupHandler) UpdateFromRemote(c *gin.Context) {
	res, err := h.svc.UpdateFromRemote(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "package mappings updated", res)
}

// ExportRequest 导出参数
type ExportRequest struct {
	Backend string `json:"backend" binding:"omitempty,oneof=local minio"`
}

// ExportMappings POST /api/v1/actions/export
func (h *SignupHandler) ExportMappings(c *gin.Context) {
	var req ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBadRequest(c, err)
			return
		}
	}
	obj, err := h.svc.ExportMappings(c.Request.Context(), req.Backend)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	writeOK(c, "mappings exported", obj)
}
