package model

import (
	"errors"
	"time"
)

// DraftModel 草稿数据模型
// 每个 (user_id, company_id) 至多存在一条 is_auto_save=true 的草稿,
// 由 database.CreateIndexes 中的部分唯一索引保证;手动快照草稿数量不限
type DraftModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	Title      string    `gorm:"type:varchar(255)"`
	IsAutoSave bool      `gorm:"not null;default:false;index"`
	UserID     string    `gorm:"type:varchar(64);not null;index"` // 所有者 ID,唯一编辑者
	CompanyID  string    `gorm:"type:varchar(64);not null;index"`
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (DraftModel) TableName() string {
	return "drafts"
}

// Validate 验证草稿模型
func (dm *DraftModel) Validate() error {
	if dm.ID == "" {
		return errors.New("draft ID is required")
	}
	if dm.UserID == "" {
		return errors.New("user ID is required")
	}
	if dm.CompanyID == "" {
		return errors.New("company ID is required")
	}
	return nil
}
