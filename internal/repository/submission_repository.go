package repository

import (
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// SubmissionRepository 填报记录仓储接口
type SubmissionRepository interface {
	Save(submission *model.SubmissionModel) error
	FindByID(id string) (*model.SubmissionModel, error)
	FindByForm(formID string) ([]*model.SubmissionModel, error)
	FindAll() ([]*model.SubmissionModel, error)
}

// submissionRepository 填报记录仓储实现
type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository 创建填报记录仓储
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// Save 保存填报记录
func (r *submissionRepository) Save(submission *model.SubmissionModel) error {
	return r.db.Save(submission).Error
}

// FindByID 根据 ID 查找填报记录
func (r *submissionRepository) FindByID(id string) (*model.SubmissionModel, error) {
	var submission model.SubmissionModel
	if err := r.db.Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByForm 查找许可证下的所有填报记录
func (r *submissionRepository) FindByForm(formID string) ([]*model.SubmissionModel, error) {
	var submissions []*model.SubmissionModel
	err := r.db.Where("form_id = ?", formID).Order("created_at DESC").Find(&submissions).Error
	return submissions, err
}

// FindAll 查找所有填报记录(待审批路由扫描用)
func (r *submissionRepository) FindAll() ([]*model.SubmissionModel, error) {
	var submissions []*model.SubmissionModel
	err := r.db.Order("created_at DESC").Find(&submissions).Error
	return submissions, err
}
