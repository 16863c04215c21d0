package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ComponentModel 表单组件(单个字段)数据模型
// 组件的父分区一经持久化不再变更,跨分区移动建模为删除+新建
type ComponentModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	SectionID string    `gorm:"type:varchar(64);not null;index"`
	Label     string    `gorm:"type:varchar(255);not null"`
	Type      string    `gorm:"type:varchar(32);not null"` // 组件类型标签,见 component_kind.go
	Required  bool      `gorm:"not null;default:false"`
	Enabled   bool      `gorm:"not null;default:true"`
	Options   []byte    `gorm:"type:jsonb"` // 选项列表(JSON 字符串数组),仅选择类组件有意义
	Position  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ComponentModel) TableName() string {
	return "components"
}

// Validate 验证组件模型
func (cm *ComponentModel) Validate() error {
	if cm.ID == "" {
		return errors.New("component ID is required")
	}
	if cm.SectionID == "" {
		return errors.New("component section ID is required")
	}
	if cm.Label == "" {
		return errors.New("component label is required")
	}
	return nil
}

// OptionList 反序列化选项列表,无选项时返回空切片
func (cm *ComponentModel) OptionList() []string {
	if len(cm.Options) == 0 {
		return []string{}
	}
	var opts []string
	if err := json.Unmarshal(cm.Options, &opts); err != nil {
		return []string{}
	}
	return opts
}

// SetOptions 序列化并写入选项列表
func (cm *ComponentModel) SetOptions(opts []string) {
	if len(opts) == 0 {
		cm.Options = []byte("[]")
		return
	}
	data, err := json.Marshal(opts)
	if err != nil {
		cm.Options = []byte("[]")
		return
	}
	cm.Options = data
}
