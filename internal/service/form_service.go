package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"gorm.io/gorm"
)

// FormService 许可证服务接口
// Update 是已发布许可证的调和入口;Duplicate 深拷贝整棵树并尽力分配新编号
type FormService interface {
	Get(formID string) (*FormTree, error)
	List(filter *repository.FormFilter) ([]*FormTree, error)
	Update(ctx context.Context, formID, userID string, shape *FormShape) (*FormTree, error)
	Delete(ctx context.Context, formID, userID string) error
	Duplicate(ctx context.Context, formID, userID string) (*FormTree, error)
}

// formService 许可证服务实现
type formService struct {
	db          *gorm.DB
	forms       repository.FormRepository
	reconciler  *Reconciler
	allocator   *PermitNumberAllocator
	auditLogSvc AuditLogService
}

// NewFormService 创建许可证服务
func NewFormService(db *gorm.DB, forms repository.FormRepository, reconciler *Reconciler, allocator *PermitNumberAllocator, auditLogSvc AuditLogService) FormService {
	return &formService{
		db:          db,
		forms:       forms,
		reconciler:  reconciler,
		allocator:   allocator,
		auditLogSvc: auditLogSvc,
	}
}

// Get 获取许可证完整树
func (s *formService) Get(formID string) (*FormTree, error) {
	_, err := s.findForm(formID)
	if err != nil {
		return nil, err
	}
	return loadFormTree(s.db, formID)
}

// List 按过滤器列出许可证(含完整树)
func (s *formService) List(filter *repository.FormFilter) ([]*FormTree, error) {
	forms, err := s.forms.FindByFilter(filter)
	if err != nil {
		return nil, err
	}

	trees := make([]*FormTree, 0, len(forms))
	for _, f := range forms {
		tree, err := formToTree(s.db, f)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

// Update 更新许可证(调和入口)
// 所有权检查后调和分区/组件树;载荷携带用户自填编号时先校验唯一性,
// 冲突返回 Conflict,调和与时间戳更新在同一事务内提交
func (s *formService) Update(ctx context.Context, formID, userID string, shape *FormShape) (*FormTree, error) {
	if shape == nil {
		return nil, newValidationError("", "request body is required")
	}

	form, err := s.findOwned(formID, userID)
	if err != nil {
		return nil, err
	}

	if shape.WorkPermitNo != nil && *shape.WorkPermitNo != "" {
		unique, err := s.allocator.IsUnique(*shape.WorkPermitNo, form.ID)
		if err != nil {
			return nil, err
		}
		if !unique {
			return nil, conflictErr(fmt.Sprintf("work permit number %s is already taken", *shape.WorkPermitNo))
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if shape.Title != "" {
			form.Title = shape.Title
		}
		if shape.WorkPermitNo != nil && *shape.WorkPermitNo != "" {
			form.WorkPermitNo = shape.WorkPermitNo
		}
		form.UpdatedAt = time.Now()
		if err := tx.Save(form).Error; err != nil {
			return err
		}
		return s.reconciler.ReconcileTree(tx, model.ParentForm, form.ID, shape.Sections)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, userID, "update", "form", formID, map[string]string{"title": form.Title})

	return loadFormTree(s.db, formID)
}

// Delete 删除许可证,级联删除其分区与组件
func (s *formService) Delete(ctx context.Context, formID, userID string) error {
	form, err := s.findOwned(formID, userID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteTree(tx, model.ParentForm, form.ID); err != nil {
			return err
		}
		return tx.Where("id = ?", form.ID).Delete(&model.FormModel{}).Error
	})
	if err != nil {
		return err
	}

	s.audit(ctx, userID, "delete", "form", formID, nil)
	return nil
}

// Duplicate 复制许可证
// 深拷贝整棵树(全树新 ID),标题追加 " (Copy)",并尽力分配新编号:
// 分配耗尽时副本无编号,这是合法状态
func (s *formService) Duplicate(ctx context.Context, formID, userID string) (*FormTree, error) {
	src, err := s.findOwned(formID, userID)
	if err != nil {
		return nil, err
	}

	permitNo, err := s.allocator.Allocate(DefaultAllocateAttempts, "")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dup := model.FormModel{
		ID:        uuid.New().String(),
		Title:     src.Title + " (Copy)",
		Status:    model.StatusPending,
		UserID:    userID,
		CompanyID: src.CompanyID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if permitNo != "" {
		dup.WorkPermitNo = &permitNo
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dup).Error; err != nil {
			return err
		}
		return copyTree(tx, model.ParentForm, src.ID, model.ParentForm, dup.ID, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPermitCreated()
	s.audit(ctx, userID, "duplicate", "form", dup.ID, map[string]string{"source_form_id": formID})

	return loadFormTree(s.db, dup.ID)
}

// findForm 查找许可证
func (s *formService) findForm(formID string) (*model.FormModel, error) {
	form, err := s.forms.FindByID(formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("form", formID)
		}
		return nil, fmt.Errorf("failed to get form: %w", err)
	}
	return form, nil
}

// findOwned 查找许可证并做所有权检查
func (s *formService) findOwned(formID, userID string) (*model.FormModel, error) {
	form, err := s.findForm(formID)
	if err != nil {
		return nil, err
	}
	if form.UserID != userID {
		return nil, forbiddenErr("form", formID)
	}
	return form, nil
}

// audit 记录审计日志,失败忽略
func (s *formService) audit(ctx context.Context, userID, action, resourceType, resourceID string, details interface{}) {
	if s.auditLogSvc == nil {
		return
	}
	if userID == "" {
		userID = getUserIDFromContext(ctx)
	}
	if userID != "" {
		_ = s.auditLogSvc.RecordAction(ctx, userID, action, resourceType, resourceID, details)
	}
}

// loadFormTree 读出许可证完整树
func loadFormTree(db *gorm.DB, formID string) (*FormTree, error) {
	var form model.FormModel
	if err := db.Where("id = ?", formID).First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("form", formID)
		}
		return nil, err
	}
	return formToTree(db, &form)
}

// formToTree 组装许可证树响应
func formToTree(db *gorm.DB, form *model.FormModel) (*FormTree, error) {
	sections, err := loadSectionNodes(db, model.ParentForm, form.ID)
	if err != nil {
		return nil, err
	}
	tree := &FormTree{
		ID:        form.ID,
		Title:     form.Title,
		Status:    form.Status,
		UserID:    form.UserID,
		CompanyID: form.CompanyID,
		Sections:  sections,
		Closure:   form.Closure,
		CreatedAt: form.CreatedAt,
		UpdatedAt: form.UpdatedAt,
	}
	if form.WorkPermitNo != nil {
		tree.WorkPermitNo = *form.WorkPermitNo
	}
	return tree, nil
}
