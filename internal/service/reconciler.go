package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// Reconciler 两级树调和器
// 使持久化的分区/组件树与客户端提交的(部分带 ID 的)树完全一致,
// 并最大限度保留已匹配节点的身份:携带已知 ID 的节点原地更新,
// 无 ID 或 ID 未知的节点新建,未被重新提交的节点删除(分区删除级联组件)。
// 分区与组件两层共用同一个 reconcileLevel,避免两层逻辑漂移
type Reconciler struct{}

// NewReconciler 创建树调和器
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// levelOps 单层调和回调,由调用方提供字段覆写与增删实现
type levelOps struct {
	update func(id string, position int, index int) error // 将第 index 个传入节点覆写到已有节点
	create func(position int, index int) (string, error)  // 创建第 index 个传入节点,返回新 ID
	remove func(ids []string) error                       // 删除未被重新提交的节点(含级联)
}

// reconcileLevel 单层调和
// persistedIDs 为持久层当前节点 ID 集;incomingIDs 与传入数组一一对应,
// 新节点为空串。ID 未知的传入节点按新建处理,从不报错。
// 最终存储顺序等于传入数组顺序,position 每次整体覆写。
// 返回与传入数组一一对应的已解析节点 ID
func reconcileLevel(persistedIDs []string, incomingIDs []string, ops levelOps) ([]string, error) {
	known := make(map[string]bool, len(persistedIDs))
	for _, id := range persistedIDs {
		known[id] = true
	}

	resolved := make([]string, len(incomingIDs))
	kept := make(map[string]bool, len(incomingIDs))
	for i, id := range incomingIDs {
		if id != "" && known[id] {
			if err := ops.update(id, i, i); err != nil {
				return nil, err
			}
			resolved[i] = id
			kept[id] = true
			continue
		}
		newID, err := ops.create(i, i)
		if err != nil {
			return nil, err
		}
		resolved[i] = newID
	}

	var toDelete []string
	for _, id := range persistedIDs {
		if !kept[id] {
			toDelete = append(toDelete, id)
		}
	}
	if len(toDelete) > 0 {
		if err := ops.remove(toDelete); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}

// ReconcileTree 在事务 tx 内调和 parent 下的完整分区/组件树
// incoming 为 nil 表示载荷省略了 sections 键,不做任何操作;
// 为空切片表示显式清空全部分区。
// 校验在任何写入之前完成,单个节点校验失败使整个事务回滚
func (r *Reconciler) ReconcileTree(tx *gorm.DB, parentType, parentID string, incoming []SectionInput) error {
	if incoming == nil {
		return nil
	}

	persisted, componentsBySection, err := loadPersistedTree(tx, parentType, parentID)
	if err != nil {
		return err
	}

	if err := validateIncoming(persisted, componentsBySection, incoming); err != nil {
		return err
	}

	now := time.Now()

	persistedIDs := make([]string, len(persisted))
	byID := make(map[string]*model.SectionModel, len(persisted))
	for i, s := range persisted {
		persistedIDs[i] = s.ID
		byID[s.ID] = s
	}
	incomingIDs := make([]string, len(incoming))
	for i, in := range incoming {
		if _, ok := byID[in.ID]; ok {
			incomingIDs[i] = in.ID
		}
	}

	resolved, err := reconcileLevel(persistedIDs, incomingIDs, levelOps{
		update: func(id string, position, index int) error {
			s := byID[id]
			in := incoming[index]
			if in.Title != nil {
				s.Title = *in.Title
			}
			if in.Enabled != nil {
				s.Enabled = *in.Enabled
			}
			s.Position = position
			s.UpdatedAt = now
			return tx.Save(s).Error
		},
		create: func(position, index int) (string, error) {
			in := incoming[index]
			s := &model.SectionModel{
				ID:         uuid.New().String(),
				ParentType: parentType,
				ParentID:   parentID,
				Title:      strings.TrimSpace(*in.Title),
				Enabled:    true, // 仅创建时默认启用
				Position:   position,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if in.Enabled != nil {
				s.Enabled = *in.Enabled
			}
			return s.ID, tx.Create(s).Error
		},
		remove: func(ids []string) error {
			// 分区删除级联其全部组件,被删除分区不再进入组件层调和
			if err := tx.Where("section_id IN ?", ids).Delete(&model.ComponentModel{}).Error; err != nil {
				return err
			}
			return tx.Where("id IN ?", ids).Delete(&model.SectionModel{}).Error
		},
	})
	if err != nil {
		return err
	}

	// 组件层调和仅对存活(或新建)的分区执行,
	// 此时分区行已提交,组件不会挂到尚未持久化的分区 ID 上
	for i, in := range incoming {
		if err := r.reconcileComponents(tx, resolved[i], componentsBySection[incomingIDs[i]], in.Components, now); err != nil {
			return err
		}
	}

	return nil
}

// reconcileComponents 调和单个分区下的组件层
func (r *Reconciler) reconcileComponents(tx *gorm.DB, sectionID string, persisted []*model.ComponentModel, incoming []ComponentInput, now time.Time) error {
	if incoming == nil {
		return nil
	}

	persistedIDs := make([]string, len(persisted))
	byID := make(map[string]*model.ComponentModel, len(persisted))
	for i, c := range persisted {
		persistedIDs[i] = c.ID
		byID[c.ID] = c
	}
	incomingIDs := make([]string, len(incoming))
	for i, in := range incoming {
		if _, ok := byID[in.ID]; ok {
			incomingIDs[i] = in.ID
		}
	}

	_, err := reconcileLevel(persistedIDs, incomingIDs, levelOps{
		update: func(id string, position, index int) error {
			c := byID[id]
			in := incoming[index]
			if in.Label != nil {
				c.Label = *in.Label
			}
			if in.Type != nil {
				c.Type = model.ParseComponentKind(*in.Type).Tag()
			}
			if in.Required != nil {
				c.Required = *in.Required
			}
			if in.Enabled != nil {
				c.Enabled = *in.Enabled
			}
			if in.Options != nil {
				c.SetOptions(in.Options)
			}
			c.Position = position
			c.UpdatedAt = now
			return tx.Save(c).Error
		},
		create: func(position, index int) (string, error) {
			in := incoming[index]
			c := &model.ComponentModel{
				ID:        uuid.New().String(),
				SectionID: sectionID,
				Label:     strings.TrimSpace(*in.Label),
				Type:      model.KindText,
				Required:  false,
				Enabled:   true, // 仅创建时默认启用
				Position:  position,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if in.Type != nil {
				c.Type = model.ParseComponentKind(*in.Type).Tag()
			}
			if in.Required != nil {
				c.Required = *in.Required
			}
			if in.Enabled != nil {
				c.Enabled = *in.Enabled
			}
			c.SetOptions(in.Options)
			return c.ID, tx.Create(c).Error
		},
		remove: func(ids []string) error {
			return tx.Where("id IN ?", ids).Delete(&model.ComponentModel{}).Error
		},
	})
	return err
}

// loadPersistedTree 一次性读出父级下的分区及其组件
func loadPersistedTree(tx *gorm.DB, parentType, parentID string) ([]*model.SectionModel, map[string][]*model.ComponentModel, error) {
	var sections []*model.SectionModel
	if err := tx.Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Order("position ASC").Find(&sections).Error; err != nil {
		return nil, nil, err
	}

	componentsBySection := make(map[string][]*model.ComponentModel, len(sections))
	if len(sections) > 0 {
		ids := make([]string, len(sections))
		for i, s := range sections {
			ids[i] = s.ID
		}
		var components []*model.ComponentModel
		if err := tx.Where("section_id IN ?", ids).
			Order("position ASC").Find(&components).Error; err != nil {
			return nil, nil, err
		}
		for _, c := range components {
			componentsBySection[c.SectionID] = append(componentsBySection[c.SectionID], c)
		}
	}

	return sections, componentsBySection, nil
}

// validateIncoming 在任何写入之前校验传入树
// 新建分区缺 title、新建组件缺 label 均使整个调和失败,不做部分应用
func validateIncoming(persisted []*model.SectionModel, componentsBySection map[string][]*model.ComponentModel, incoming []SectionInput) error {
	knownSections := make(map[string]bool, len(persisted))
	for _, s := range persisted {
		knownSections[s.ID] = true
	}

	for i, in := range incoming {
		sectionIsNew := in.ID == "" || !knownSections[in.ID]
		if sectionIsNew && (in.Title == nil || strings.TrimSpace(*in.Title) == "") {
			return newValidationError(fmt.Sprintf("sections[%d].title", i), "title is required for new sections")
		}

		knownComponents := make(map[string]bool)
		if !sectionIsNew {
			for _, c := range componentsBySection[in.ID] {
				knownComponents[c.ID] = true
			}
		}
		for j, comp := range in.Components {
			componentIsNew := comp.ID == "" || !knownComponents[comp.ID]
			if componentIsNew && (comp.Label == nil || strings.TrimSpace(*comp.Label) == "") {
				return newValidationError(fmt.Sprintf("sections[%d].components[%d].label", i, j), "label is required for new components")
			}
		}
	}

	return nil
}
