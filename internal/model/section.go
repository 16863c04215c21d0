package model

import (
	"errors"
	"time"
)

// 分区父级类型
const (
	ParentDraft = "draft"
	ParentForm  = "form"
)

// SectionModel 表单分区数据模型
// 分区归属于草稿或已发布许可证之一,从不被两个父级共享;
// position 在每次调和时按传入顺序整体覆盖
type SectionModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	ParentType string    `gorm:"type:varchar(8);not null;index:idx_sections_parent"` // draft/form
	ParentID   string    `gorm:"type:varchar(64);not null;index:idx_sections_parent"`
	Title      string    `gorm:"type:varchar(255);not null"`
	Enabled    bool      `gorm:"not null;default:true"`
	Position   int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (SectionModel) TableName() string {
	return "sections"
}

// Validate 验证分区模型
func (sm *SectionModel) Validate() error {
	if sm.ID == "" {
		return errors.New("section ID is required")
	}
	if sm.ParentType != ParentDraft && sm.ParentType != ParentForm {
		return errors.New("invalid section parent type")
	}
	if sm.ParentID == "" {
		return errors.New("section parent ID is required")
	}
	if sm.Title == "" {
		return errors.New("section title is required")
	}
	return nil
}
