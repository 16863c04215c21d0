package container

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mautops/permit-gin/internal/auth"
	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/database"
	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/mautops/permit-gin/internal/repository"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/websocket"
)

// Container 依赖注入容器
// 管理数据库、仓储、服务与 WebSocket hub
type Container struct {
	db             *gorm.DB
	hub            *websocket.Hub
	tokenValidator *auth.TokenValidator
	collector      *metrics.Collector

	draftService      service.DraftService
	formService       service.FormService
	workflowService   service.WorkflowService
	submissionService service.SubmissionService
	auditLogService   service.AuditLogService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 初始化仓储层
	draftRepo := repository.NewDraftRepository(db)
	formRepo := repository.NewFormRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// 3. 初始化 WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// 4. 初始化服务层
	reconciler := service.NewReconciler()
	allocator := service.NewPermitNumberAllocator(formRepo)
	auditLogSvc := service.NewAuditLogService(auditLogRepo)

	draftSvc := service.NewDraftService(db, draftRepo, formRepo, reconciler, allocator, auditLogSvc)
	formSvc := service.NewFormService(db, formRepo, reconciler, allocator, auditLogSvc)
	workflowSvc := service.NewWorkflowService(db, formRepo, submissionRepo, auditLogSvc)
	submissionSvc := service.NewSubmissionService(db, formRepo, submissionRepo, hub, auditLogSvc)

	// 5. 初始化 Token 验证器
	tokenValidator := auth.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// 6. 启动指标收集器,周期刷新连接池与许可证状态分布
	collector := metrics.NewCollector(db, 30*time.Second)
	collector.Start()

	return &Container{
		db:                db,
		hub:               hub,
		tokenValidator:    tokenValidator,
		collector:         collector,
		draftService:      draftSvc,
		formService:       formSvc,
		workflowService:   workflowSvc,
		submissionService: submissionSvc,
		auditLogService:   auditLogSvc,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Hub 获取 WebSocket hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// TokenValidator 获取 Token 验证器
func (c *Container) TokenValidator() *auth.TokenValidator {
	return c.tokenValidator
}

// DraftService 获取草稿服务
func (c *Container) DraftService() service.DraftService {
	return c.draftService
}

// FormService 获取许可证服务
func (c *Container) FormService() service.FormService {
	return c.formService
}

// WorkflowService 获取审批流转服务
func (c *Container) WorkflowService() service.WorkflowService {
	return c.workflowService
}

// SubmissionService 获取填报服务
func (c *Container) SubmissionService() service.SubmissionService {
	return c.submissionService
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogService
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}

	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	return nil
}
