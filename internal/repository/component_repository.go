package repository

import (
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// ComponentRepository 组件仓储接口
type ComponentRepository interface {
	Save(component *model.ComponentModel) error
	FindBySection(sectionID string) ([]*model.ComponentModel, error)
	FindBySections(sectionIDs []string) ([]*model.ComponentModel, error)
	DeleteByIDs(ids []string) error
	DeleteBySections(sectionIDs []string) error
}

// componentRepository 组件仓储实现
type componentRepository struct {
	db *gorm.DB
}

// NewComponentRepository 创建组件仓储
func NewComponentRepository(db *gorm.DB) ComponentRepository {
	return &componentRepository{db: db}
}

// Save 保存组件
func (r *componentRepository) Save(component *model.ComponentModel) error {
	return r.db.Save(component).Error
}

// FindBySection 按持久化顺序查找分区下的所有组件
func (r *componentRepository) FindBySection(sectionID string) ([]*model.ComponentModel, error) {
	var components []*model.ComponentModel
	err := r.db.Where("section_id = ?", sectionID).
		Order("position ASC").Find(&components).Error
	return components, err
}

// FindBySections 批量查找多个分区下的组件
func (r *componentRepository) FindBySections(sectionIDs []string) ([]*model.ComponentModel, error) {
	if len(sectionIDs) == 0 {
		return []*model.ComponentModel{}, nil
	}
	var components []*model.ComponentModel
	err := r.db.Where("section_id IN ?", sectionIDs).
		Order("position ASC").Find(&components).Error
	return components, err
}

// DeleteByIDs 批量删除组件
func (r *componentRepository) DeleteByIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Where("id IN ?", ids).Delete(&model.ComponentModel{}).Error
}

// DeleteBySections 删除多个分区下的所有组件(分区级联删除用)
func (r *componentRepository) DeleteBySections(sectionIDs []string) error {
	if len(sectionIDs) == 0 {
		return nil
	}
	return r.db.Where("section_id IN ?", sectionIDs).Delete(&model.ComponentModel{}).Error
}
