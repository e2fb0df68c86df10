package router

import (
	"net/http"
	"time"

	"github.com/fabsignup/fabsignup/api/handler"
	"github.com/fabsignup/fabsignup/internal/service"
	"github.com/fabsignup/fabsignup/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Version 服务版本
const Version = "1.0.0"

// SetupRouter 设置路由
func SetupRouter(svc *service.SignupService, mode string) *gin.Engine {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	h := handler.NewSignupHandler(svc)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Fabman Self Sign-Up",
			"version": Version,
			"status":  "running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.GET("/catalog", h.Catalog)

		// 宿主触发：表单登记、编辑、提交
		v1.POST("/form", h.RegisterForm)
		v1.PUT("/form/header", h.SetResponseHeader)
		v1.POST("/setup", h.Setup)
		v1.POST("/edits", h.HandleEdit)

		submissions := v1.Group("/submissions")
		{
			submissions.POST("", h.Submit)
			submissions.GET("", h.ListSubmissions)
			submissions.GET("/:id", h.GetSubmission)
		}

		settings := v1.Group("/settings")
		{
			settings.GET("", h.GetSettings)
			settings.PUT("/api-key", h.SetAPIKey)
		}

		mappings := v1.Group("/mappings")
		{
			mappings.GET("/fields", h.ListFieldMappings)
			mappings.PUT("/fields/:row", h.SetFieldTarget)
			mappings.GET("/packages", h.ListPackageMappings)
			mappings.PUT("/packages/:row", h.SetPackageTarget)
			mappings.GET("/genders", h.ListGenderMappings)
			mappings.PUT("/genders", h.ReplaceGenderMappings)
		}

		// 菜单操作
		actions := v1.Group("/actions")
		{
			actions.POST("/validate", h.Validate)
			actions.POST("/update-from-form", h.UpdateFromForm)
			actions.POST("/update-from-remote", h.UpdateFromRemote)
			actions.POST("/export", h.ExportMappings)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		requestID := c.GetString("request_id")
		method := c.Request.Method
		path := c.Request.URL.Path
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()

		logger.Info("HTTP Request",
			"request_id", requestID,
			"method", method,
			"path", path,
			"status", statusCode,
			"duration", duration,
			"client_ip", clientIP,
			"user_agent", c.Request.UserAgent(),
		)

		if statusCode >= 400 {
			logger.Warn("HTTP Error",
				"request_id", requestID,
				"method", method,
				"path", path,
				"status", statusCode,
				"duration", duration,
			)
		}
	}
}
