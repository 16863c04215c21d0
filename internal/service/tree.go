package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// loadSectionNodes 读出父级的完整分区/组件树响应
func loadSectionNodes(db *gorm.DB, parentType, parentID string) ([]SectionNode, error) {
	sections, componentsBySection, err := loadPersistedTree(db, parentType, parentID)
	if err != nil {
		return nil, err
	}

	nodes := make([]SectionNode, 0, len(sections))
	for _, s := range sections {
		node := SectionNode{
			ID:         s.ID,
			Title:      s.Title,
			Enabled:    s.Enabled,
			Components: make([]ComponentNode, 0, len(componentsBySection[s.ID])),
		}
		for _, c := range componentsBySection[s.ID] {
			node.Components = append(node.Components, ComponentNode{
				ID:       c.ID,
				Label:    c.Label,
				Type:     c.Type,
				Required: c.Required,
				Enabled:  c.Enabled,
				Options:  c.OptionList(),
			})
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// copyTree 将源父级的分区/组件树深拷贝到目标父级
// 全树分配新 ID,这是创建而非调和,源树不被改动
func copyTree(tx *gorm.DB, srcType, srcID, dstType, dstID string, now time.Time) error {
	sections, componentsBySection, err := loadPersistedTree(tx, srcType, srcID)
	if err != nil {
		return err
	}

	for _, s := range sections {
		newSection := &model.SectionModel{
			ID:         uuid.New().String(),
			ParentType: dstType,
			ParentID:   dstID,
			Title:      s.Title,
			Enabled:    s.Enabled,
			Position:   s.Position,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Create(newSection).Error; err != nil {
			return err
		}
		for _, c := range componentsBySection[s.ID] {
			newComponent := &model.ComponentModel{
				ID:        uuid.New().String(),
				SectionID: newSection.ID,
				Label:     c.Label,
				Type:      c.Type,
				Required:  c.Required,
				Enabled:   c.Enabled,
				Options:   c.Options,
				Position:  c.Position,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(newComponent).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteTree 删除父级下的全部分区与组件(父级删除时的级联)
func deleteTree(tx *gorm.DB, parentType, parentID string) error {
	var sectionIDs []string
	if err := tx.Model(&model.SectionModel{}).
		Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Pluck("id", &sectionIDs).Error; err != nil {
		return err
	}
	if len(sectionIDs) > 0 {
		if err := tx.Where("section_id IN ?", sectionIDs).Delete(&model.ComponentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", sectionIDs).Delete(&model.SectionModel{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// getUserIDFromContext 从 context 中获取用户 ID(由认证中间件设置)
func getUserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value("user_id").(string); ok {
		return userID
	}
	return ""
}
