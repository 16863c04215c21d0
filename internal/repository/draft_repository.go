package repository

import (
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// DraftRepository 草稿仓储接口
type DraftRepository interface {
	Save(draft *model.DraftModel) error
	FindByID(id string) (*model.DraftModel, error)
	FindByUser(userID string) ([]*model.DraftModel, error)
	FindAutoSave(userID, companyID string) (*model.DraftModel, error)
	Delete(id string) error
}

// draftRepository 草稿仓储实现
type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository 创建草稿仓储
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

// Save 保存草稿
func (r *draftRepository) Save(draft *model.DraftModel) error {
	return r.db.Save(draft).Error
}

// FindByID 根据 ID 查找草稿
func (r *draftRepository) FindByID(id string) (*model.DraftModel, error) {
	var draft model.DraftModel
	if err := r.db.Where("id = ?", id).First(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// FindByUser 查找用户的所有草稿
func (r *draftRepository) FindByUser(userID string) ([]*model.DraftModel, error) {
	var drafts []*model.DraftModel
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&drafts).Error
	return drafts, err
}

// FindAutoSave 查找 (userID, companyID) 范围内的自动保存草稿
// 不存在时返回 gorm.ErrRecordNotFound,这是首次自动保存的预期状态
func (r *draftRepository) FindAutoSave(userID, companyID string) (*model.DraftModel, error) {
	var draft model.DraftModel
	err := r.db.Where("user_id = ? AND company_id = ? AND is_auto_save = ?", userID, companyID, true).
		First(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// Delete 删除草稿(仅草稿行,树级联由服务层事务负责)
func (r *draftRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.DraftModel{}).Error
}
