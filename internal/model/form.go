package model

import (
	"errors"
	"time"
)

// 许可证状态
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusClosed   = "CLOSED"
)

// FormModel 已发布的作业许可证数据模型
// work_permit_no 允许为空(编号分配为尽力而为),非空时全局唯一
type FormModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	Title        string    `gorm:"type:varchar(255);not null"`
	WorkPermitNo *string   `gorm:"type:varchar(16)"` // 许可证编号,唯一索引在 database.CreateIndexes 中创建
	Status       string    `gorm:"type:varchar(16);not null;index"` // PENDING/APPROVED/CLOSED
	UserID       string    `gorm:"type:varchar(64);not null;index"` // 所有者 ID
	CompanyID    string    `gorm:"type:varchar(64);not null;index"`
	Closure      []byte    `gorm:"type:jsonb"` // 关闭记录(关闭时写入,原样保存)
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (FormModel) TableName() string {
	return "forms"
}

// Validate 验证许可证模型
func (fm *FormModel) Validate() error {
	if fm.ID == "" {
		return errors.New("form ID is required")
	}
	if fm.Title == "" {
		return errors.New("form title is required")
	}
	if fm.UserID == "" {
		return errors.New("user ID is required")
	}
	if fm.CompanyID == "" {
		return errors.New("company ID is required")
	}
	switch fm.Status {
	case StatusPending, StatusApproved, StatusClosed:
	default:
		return errors.New("invalid form status")
	}
	return nil
}

// CanTransition 状态只能前进: PENDING→APPROVED, PENDING|APPROVED→CLOSED
// CLOSED 为终态,不允许任何离开终态的迁移
func CanTransition(from, to string) bool {
	switch {
	case from == StatusPending && to == StatusApproved:
		return true
	case from == StatusPending && to == StatusClosed:
		return true
	case from == StatusApproved && to == StatusClosed:
		return true
	case from == StatusApproved && to == StatusApproved:
		// 重复审批视为幂等
		return true
	default:
		return false
	}
}
