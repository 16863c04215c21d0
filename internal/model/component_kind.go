package model

import "strings"

// 已知组件类型标签
const (
	KindText      = "text"
	KindTextarea  = "textarea"
	KindDate      = "date"
	KindTime      = "time"
	KindCheckbox  = "checkbox"
	KindRadio     = "radio"
	KindSignature = "signature"
	KindTable     = "table"
	KindHeader    = "header"
	KindLogo      = "logo"
)

// knownKinds 已知类型集合,渲染端可对其穷举
var knownKinds = map[string]struct{}{
	KindText: {}, KindTextarea: {}, KindDate: {}, KindTime: {},
	KindCheckbox: {}, KindRadio: {}, KindSignature: {}, KindTable: {},
	KindHeader: {}, KindLogo: {},
}

// ComponentKind 组件类型的标签联合:
// 已知类型归一化到封闭集合,未知类型保留原始标签作为自定义变体,
// 以兼容前端新增的组件类型
type ComponentKind struct {
	tag    string
	custom bool
}

// ParseComponentKind 解析组件类型标签
// 空标签解析为 text;未知标签不报错,标记为自定义
func ParseComponentKind(tag string) ComponentKind {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	if normalized == "" {
		return ComponentKind{tag: KindText}
	}
	if _, ok := knownKinds[normalized]; ok {
		return ComponentKind{tag: normalized}
	}
	return ComponentKind{tag: strings.TrimSpace(tag), custom: true}
}

// Tag 返回类型标签(自定义类型返回原始标签)
func (k ComponentKind) Tag() string {
	return k.tag
}

// IsCustom 是否为封闭集合之外的自定义类型
func (k ComponentKind) IsCustom() bool {
	return k.custom
}

// IsChoice 是否为选择类组件(options 字段有意义)
func (k ComponentKind) IsChoice() bool {
	return k.tag == KindCheckbox || k.tag == KindRadio
}
