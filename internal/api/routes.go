package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mautops/permit-gin/internal/auth"
	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/websocket"
)

// Controllers 路由需要的控制器集合
type Controllers struct {
	Draft      *DraftController
	Form       *FormController
	Submission *SubmissionController
}

// SetupRoutes 配置路由
func SetupRoutes(cfg *config.Config, db *gorm.DB, hub *websocket.Hub, validator *auth.TokenValidator, ctrl *Controllers) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(&cfg.CORS))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(db, hub)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 通知路由
	if hub != nil && validator != nil {
		router.GET("/ws/notifications", websocket.NotificationHandler(hub, validator))
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(auth.AuthMiddleware(validator))
	{
		// 草稿管理路由
		drafts := v1.Group("/drafts")
		{
			// 自动保存流量远大于其余接口,单独限流
			drafts.POST("/autosave", RateLimitMiddleware(50, 100), ctrl.Draft.AutoSave)
			drafts.POST("", ctrl.Draft.Save)
			drafts.GET("", ctrl.Draft.List)
			drafts.GET("/:id", ctrl.Draft.Get)
			drafts.DELETE("/:id", ctrl.Draft.Delete)
			drafts.POST("/:id/publish", ctrl.Draft.Publish)
		}

		// 许可证管理路由
		forms := v1.Group("/forms")
		{
			forms.GET("", ctrl.Form.List)
			forms.GET("/pending", ctrl.Form.Pending)
			forms.GET("/:id", ctrl.Form.Get)
			forms.PUT("/:id", ctrl.Form.Update)
			forms.DELETE("/:id", ctrl.Form.Delete)
			forms.POST("/:id/duplicate", ctrl.Form.Duplicate)

			// 审批流转需要审批人角色
			forms.POST("/:id/approve", auth.RequireRole("approver", "admin"), ctrl.Form.Approve)
			forms.POST("/:id/close", auth.RequireRole("approver", "admin"), ctrl.Form.Close)

			// 填报路由
			forms.POST("/:id/submissions", ctrl.Submission.Create)
			forms.GET("/:id/submissions", ctrl.Submission.List)
		}
	}

	return router
}

// NewControllers 创建控制器集合
func NewControllers(draftSvc service.DraftService, formSvc service.FormService, workflowSvc service.WorkflowService, submissionSvc service.SubmissionService) *Controllers {
	return &Controllers{
		Draft:      NewDraftController(draftSvc),
		Form:       NewFormController(formSvc, workflowSvc),
		Submission: NewSubmissionController(submissionSvc),
	}
}
