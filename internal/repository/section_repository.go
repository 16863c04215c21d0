package repository

import (
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// SectionRepository 分区仓储接口
type SectionRepository interface {
	Save(section *model.SectionModel) error
	FindByParent(parentType, parentID string) ([]*model.SectionModel, error)
	DeleteByIDs(ids []string) error
	DeleteByParent(parentType, parentID string) error
}

// sectionRepository 分区仓储实现
type sectionRepository struct {
	db *gorm.DB
}

// NewSectionRepository 创建分区仓储
func NewSectionRepository(db *gorm.DB) SectionRepository {
	return &sectionRepository{db: db}
}

// Save 保存分区
func (r *sectionRepository) Save(section *model.SectionModel) error {
	return r.db.Save(section).Error
}

// FindByParent 按持久化顺序查找父级下的所有分区
func (r *sectionRepository) FindByParent(parentType, parentID string) ([]*model.SectionModel, error) {
	var sections []*model.SectionModel
	err := r.db.Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Order("position ASC").Find(&sections).Error
	return sections, err
}

// DeleteByIDs 批量删除分区
func (r *sectionRepository) DeleteByIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Where("id IN ?", ids).Delete(&model.SectionModel{}).Error
}

// DeleteByParent 删除父级下的所有分区
func (r *sectionRepository) DeleteByParent(parentType, parentID string) error {
	return r.db.Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Delete(&model.SectionModel{}).Error
}
