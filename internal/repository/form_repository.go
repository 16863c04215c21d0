package repository

import (
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// FormRepository 许可证仓储接口
type FormRepository interface {
	Save(form *model.FormModel) error
	FindByID(id string) (*model.FormModel, error)
	FindByFilter(filter *FormFilter) ([]*model.FormModel, error)
	FindByIDs(ids []string) ([]*model.FormModel, error)
	ExistsPermitNo(candidate string, excludeID string) (bool, error)
	Delete(id string) error
}

// FormFilter 许可证查询过滤器
type FormFilter struct {
	UserID    *string
	CompanyID *string
	Status    *string
}

// formRepository 许可证仓储实现
type formRepository struct {
	db *gorm.DB
}

// NewFormRepository 创建许可证仓储
func NewFormRepository(db *gorm.DB) FormRepository {
	return &formRepository{db: db}
}

// Save 保存许可证
func (r *formRepository) Save(form *model.FormModel) error {
	return r.db.Save(form).Error
}

// FindByID 根据 ID 查找许可证
func (r *formRepository) FindByID(id string) (*model.FormModel, error) {
	var form model.FormModel
	if err := r.db.Where("id = ?", id).First(&form).Error; err != nil {
		return nil, err
	}
	return &form, nil
}

// FindByFilter 根据过滤器查找许可证
func (r *formRepository) FindByFilter(filter *FormFilter) ([]*model.FormModel, error) {
	var forms []*model.FormModel
	query := r.db.Model(&model.FormModel{})

	if filter != nil {
		if filter.UserID != nil {
			query = query.Where("user_id = ?", *filter.UserID)
		}
		if filter.CompanyID != nil {
			query = query.Where("company_id = ?", *filter.CompanyID)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
	}

	err := query.Order("created_at DESC").Find(&forms).Error
	return forms, err
}

// FindByIDs 批量查找许可证
func (r *formRepository) FindByIDs(ids []string) ([]*model.FormModel, error) {
	if len(ids) == 0 {
		return []*model.FormModel{}, nil
	}
	var forms []*model.FormModel
	err := r.db.Where("id IN ?", ids).Find(&forms).Error
	return forms, err
}

// ExistsPermitNo 检查许可证编号是否已被占用
// excludeID 非空时排除该许可证自身(用于更新时校验用户自填编号)
func (r *formRepository) ExistsPermitNo(candidate string, excludeID string) (bool, error) {
	var count int64
	query := r.db.Model(&model.FormModel{}).Where("work_permit_no = ?", candidate)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete 删除许可证(仅许可证行,树级联由服务层事务负责)
func (r *formRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.FormModel{}).Error
}
