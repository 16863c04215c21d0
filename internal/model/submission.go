package model

import (
	"errors"
	"time"
)

// SubmissionModel 填报记录数据模型
// answers 为按组件 ID 组织的答案树(JSON),结构由客户端决定,核心不强制校验
type SubmissionModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	FormID    string    `gorm:"type:varchar(64);not null;index"`
	UserID    string    `gorm:"type:varchar(64);not null;index"` // 填报人 ID
	Answers   []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (SubmissionModel) TableName() string {
	return "submissions"
}

// Validate 验证填报记录模型
func (sm *SubmissionModel) Validate() error {
	if sm.ID == "" {
		return errors.New("submission ID is required")
	}
	if sm.FormID == "" {
		return errors.New("form ID is required")
	}
	if sm.UserID == "" {
		return errors.New("user ID is required")
	}
	if len(sm.Answers) == 0 {
		return errors.New("submission answers are required")
	}
	return nil
}
