package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取默认连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
// driver 为 sqlite 时走嵌入式库(开发/测试),否则连接 PostgreSQL。
// 开启 TranslateError,唯一约束冲突统一翻译为 gorm.ErrDuplicatedKey,
// 自动保存草稿的并发创建竞争依赖这一点
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}

	var db *gorm.DB
	var err error
	if cfg.Driver == "sqlite" {
		path := cfg.DBName
		if path == "" {
			path = "permit.db"
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	} else {
		db, err = gorm.Open(postgres.Open(BuildDSN(cfg)), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	poolConfig := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接(指数退避)
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb,需要手动创建表
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		if err := db.AutoMigrate(
			&model.DraftModel{},
			&model.FormModel{},
			&model.SectionModel{},
			&model.ComponentModel{},
			&model.SubmissionModel{},
			&model.AuditLogModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表(使用 TEXT 替代 jsonb)
func createSQLiteTables(db *gorm.DB) error {
	// 创建 drafts 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255),
			is_auto_save BOOLEAN NOT NULL DEFAULT 0,
			user_id VARCHAR(64) NOT NULL,
			company_id VARCHAR(64) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create drafts table: %w", err)
	}

	// 创建 forms 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS forms (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			work_permit_no VARCHAR(16),
			status VARCHAR(16) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			company_id VARCHAR(64) NOT NULL,
			closure TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create forms table: %w", err)
	}

	// 创建 sections 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sections (
			id VARCHAR(64) PRIMARY KEY,
			parent_type VARCHAR(8) NOT NULL,
			parent_id VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			position INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create sections table: %w", err)
	}

	// 创建 components 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS components (
			id VARCHAR(64) PRIMARY KEY,
			section_id VARCHAR(64) NOT NULL,
			label VARCHAR(255) NOT NULL,
			type VARCHAR(32) NOT NULL,
			required BOOLEAN NOT NULL DEFAULT 0,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			options TEXT,
			position INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create components table: %w", err)
	}

	// 创建 submissions 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id VARCHAR(64) PRIMARY KEY,
			form_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			answers TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create submissions table: %w", err)
	}

	// 创建 audit_logs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			resource_type VARCHAR(32) NOT NULL,
			resource_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64),
			ip VARCHAR(45),
			user_agent TEXT,
			details TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
// 包含两条关键唯一约束:每个 (user_id, company_id) 至多一条自动保存草稿
// (部分唯一索引,自动保存创建竞争的最终裁决),以及已发布许可证编号全局唯一
func CreateIndexes(db *gorm.DB) error {
	dialector := db.Dialector.Name()

	// drafts 表索引
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_drafts_autosave_scope ON drafts(user_id, company_id) WHERE is_auto_save").Error; err != nil {
		return fmt.Errorf("failed to create idx_drafts_autosave_scope: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_drafts_user_id ON drafts(user_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_drafts_user_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_drafts_updated_at ON drafts(updated_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_drafts_updated_at: %w", err)
	}

	// forms 表索引
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_forms_permit_no ON forms(work_permit_no) WHERE work_permit_no IS NOT NULL").Error; err != nil {
		return fmt.Errorf("failed to create idx_forms_permit_no: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_forms_status ON forms(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_forms_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_forms_user_company ON forms(user_id, company_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_forms_user_company: %w", err)
	}

	// sections / components 树索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_sections_parent ON sections(parent_type, parent_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_sections_parent: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_components_section ON components(section_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_components_section: %w", err)
	}

	// submissions 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_submissions_form ON submissions(form_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_submissions_form: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_submissions_user: %w", err)
	}

	// audit_logs 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_resource: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_logs(user_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_user_id: %w", err)
	}

	// PostgreSQL 特定的 GIN 索引
	if dialector == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_submissions_answers_gin ON submissions USING GIN (answers)").Error; err != nil {
			return fmt.Errorf("failed to create idx_submissions_answers_gin: %w", err)
		}
	}

	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}
