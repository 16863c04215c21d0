package service

import (
	"encoding/json"
	"time"
)

// FormShape 客户端提交的表单载荷
// @Description 草稿保存与许可证更新共用的树形载荷
// Sections 为 nil 表示载荷省略了 sections 键,对既有分区不做任何操作;
// 为空切片表示显式清空全部分区。两者语义不同,依赖 JSON 绑定的 nil/空区分
type FormShape struct {
	Title        string         `json:"title"`
	WorkPermitNo *string        `json:"work_permit_no,omitempty"` // 用户自填编号(仅许可证更新时有意义)
	Sections     []SectionInput `json:"sections,omitempty"`
}

// SectionInput 客户端提交的分区节点
// @Description 携带 id 的节点按既有节点更新,无 id 或 id 未知的节点一律按新建处理
type SectionInput struct {
	ID         string           `json:"id,omitempty"`
	Title      *string          `json:"title,omitempty"`
	Enabled    *bool            `json:"enabled,omitempty"`
	Components []ComponentInput `json:"components,omitempty"`
}

// ComponentInput 客户端提交的组件节点
// @Description 指针字段缺省时回落到已持久化的值,从不回落到硬编码默认值
type ComponentInput struct {
	ID       string   `json:"id,omitempty"`
	Label    *string  `json:"label,omitempty"`
	Type     *string  `json:"type,omitempty"`
	Required *bool    `json:"required,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// ComponentNode 组件树响应节点
type ComponentNode struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Enabled  bool     `json:"enabled"`
	Options  []string `json:"options"`
}

// SectionNode 分区树响应节点
type SectionNode struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Enabled    bool            `json:"enabled"`
	Components []ComponentNode `json:"components"`
}

// DraftTree 草稿完整树响应
type DraftTree struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	IsAutoSave bool          `json:"is_auto_save"`
	UserID     string        `json:"user_id"`
	CompanyID  string        `json:"company_id"`
	Sections   []SectionNode `json:"sections"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// FormTree 许可证完整树响应
type FormTree struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	WorkPermitNo string          `json:"work_permit_no,omitempty"`
	Status       string          `json:"status"`
	UserID       string          `json:"user_id"`
	CompanyID    string          `json:"company_id"`
	Sections     []SectionNode   `json:"sections"`
	Closure      json.RawMessage `json:"closure,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
