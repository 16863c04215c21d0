package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"gorm.io/gorm"
)

// DraftService 草稿生命周期服务接口
// 在树调和器与编号分配器之上编排自动保存/手动快照/发布/删除
type DraftService interface {
	SaveAutoSave(ctx context.Context, userID, companyID string, shape *FormShape) (*DraftTree, error)
	SaveManual(ctx context.Context, userID, companyID string, shape *FormShape) (*DraftTree, error)
	List(userID string) ([]*DraftTree, error)
	Get(draftID, userID string) (*DraftTree, error)
	Delete(ctx context.Context, draftID, userID string) error
	Publish(ctx context.Context, draftID, userID, companyID string, numberPrefix string) (*FormTree, error)
}

// draftService 草稿生命周期服务实现
type draftService struct {
	db          *gorm.DB
	drafts      repository.DraftRepository
	forms       repository.FormRepository
	reconciler  *Reconciler
	allocator   *PermitNumberAllocator
	auditLogSvc AuditLogService
}

// NewDraftService 创建草稿生命周期服务
func NewDraftService(db *gorm.DB, drafts repository.DraftRepository, forms repository.FormRepository, reconciler *Reconciler, allocator *PermitNumberAllocator, auditLogSvc AuditLogService) DraftService {
	return &draftService{
		db:          db,
		drafts:      drafts,
		forms:       forms,
		reconciler:  reconciler,
		allocator:   allocator,
		auditLogSvc: auditLogSvc,
	}
}

// SaveAutoSave 保存自动保存草稿
// 查找 (userID, companyID) 范围内既有的 is_auto_save=true 草稿:
// 存在则原地调和其树并更新标题;不存在则新建(调和退化为纯创建)。
// 无既有草稿不是错误,而是首次调用的预期状态。
// 两个并发首次自动保存同时走创建分支时,由存储层
// (user_id, company_id) WHERE is_auto_save 部分唯一索引裁决,
// 约束冲突按 "别人刚创建了它" 处理,重取后转为更新
func (s *draftService) SaveAutoSave(ctx context.Context, userID, companyID string, shape *FormShape) (*DraftTree, error) {
	if shape == nil {
		return nil, newValidationError("", "request body is required")
	}

	var draftID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var draft model.DraftModel
		err := tx.Where("user_id = ? AND company_id = ? AND is_auto_save = ?", userID, companyID, true).
			First(&draft).Error
		switch {
		case err == nil:
			draft.Title = shape.Title
			draft.UpdatedAt = now
			if err := tx.Save(&draft).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			draft = model.DraftModel{
				ID:         uuid.New().String(),
				Title:      shape.Title,
				IsAutoSave: true,
				UserID:     userID,
				CompanyID:  companyID,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if createErr := tx.Create(&draft).Error; createErr != nil {
				if !isDuplicateKey(createErr) {
					return createErr
				}
				// 并发创建竞争,重取后转为更新
				if err := tx.Where("user_id = ? AND company_id = ? AND is_auto_save = ?", userID, companyID, true).
					First(&draft).Error; err != nil {
					return err
				}
				draft.Title = shape.Title
				draft.UpdatedAt = now
				if err := tx.Save(&draft).Error; err != nil {
					return err
				}
			}
		default:
			return err
		}

		draftID = draft.ID
		return s.reconciler.ReconcileTree(tx, model.ParentDraft, draft.ID, shape.Sections)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDraftAutosaved()
	s.audit(ctx, userID, "autosave", "draft", draftID, map[string]string{"title": shape.Title})

	return s.loadTree(draftID)
}

// SaveManual 保存手动快照草稿
// 与自动保存不同,手动保存总是创建一条全新的独立快照,从不更新既有草稿
func (s *draftService) SaveManual(ctx context.Context, userID, companyID string, shape *FormShape) (*DraftTree, error) {
	if shape == nil {
		return nil, newValidationError("", "request body is required")
	}

	now := time.Now()
	draft := model.DraftModel{
		ID:         uuid.New().String(),
		Title:      shape.Title,
		IsAutoSave: false,
		UserID:     userID,
		CompanyID:  companyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&draft).Error; err != nil {
			return err
		}
		return s.reconciler.ReconcileTree(tx, model.ParentDraft, draft.ID, shape.Sections)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, userID, "create", "draft", draft.ID, map[string]string{"title": shape.Title})

	return s.loadTree(draft.ID)
}

// List 列出用户的所有草稿(含完整树)
func (s *draftService) List(userID string) ([]*DraftTree, error) {
	drafts, err := s.drafts.FindByUser(userID)
	if err != nil {
		return nil, err
	}

	trees := make([]*DraftTree, 0, len(drafts))
	for _, d := range drafts {
		tree, err := s.toTree(d)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

// Get 获取单个草稿
// 草稿不存在返回 NotFound;草稿不属于 userID 返回 Forbidden
func (s *draftService) Get(draftID, userID string) (*DraftTree, error) {
	draft, err := s.findOwned(draftID, userID)
	if err != nil {
		return nil, err
	}
	return s.toTree(draft)
}

// Delete 删除草稿,级联删除其分区与组件
func (s *draftService) Delete(ctx context.Context, draftID, userID string) error {
	draft, err := s.findOwned(draftID, userID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteTree(tx, model.ParentDraft, draft.ID); err != nil {
			return err
		}
		return tx.Where("id = ?", draft.ID).Delete(&model.DraftModel{}).Error
	})
	if err != nil {
		return err
	}

	s.audit(ctx, userID, "delete", "draft", draftID, nil)
	return nil
}

// Publish 将草稿发布为许可证
// 把草稿的完整树拷贝进一个全新的许可证(全树新 ID,创建而非调和),
// 分配许可证编号(分配耗尽时无编号发布),状态置为 PENDING。
// 源草稿不被改动或删除,发布后仍可继续编辑和审计
func (s *draftService) Publish(ctx context.Context, draftID, userID, companyID string, numberPrefix string) (*FormTree, error) {
	draft, err := s.findOwned(draftID, userID)
	if err != nil {
		return nil, err
	}

	permitNo, err := s.allocator.Allocate(DefaultAllocateAttempts, numberPrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = "Untitled Permit"
	}
	form := model.FormModel{
		ID:        uuid.New().String(),
		Title:     title,
		Status:    model.StatusPending,
		UserID:    userID,
		CompanyID: companyID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if permitNo != "" {
		form.WorkPermitNo = &permitNo
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&form).Error; err != nil {
			return err
		}
		return copyTree(tx, model.ParentDraft, draft.ID, model.ParentForm, form.ID, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPermitCreated()
	s.audit(ctx, userID, "publish", "form", form.ID, map[string]string{"draft_id": draftID, "work_permit_no": permitNo})

	return loadFormTree(s.db, form.ID)
}

// findOwned 查找草稿并做所有权检查
func (s *draftService) findOwned(draftID, userID string) (*model.DraftModel, error) {
	draft, err := s.drafts.FindByID(draftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("draft", draftID)
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if draft.UserID != userID {
		return nil, forbiddenErr("draft", draftID)
	}
	return draft, nil
}

// loadTree 读出草稿完整树
func (s *draftService) loadTree(draftID string) (*DraftTree, error) {
	draft, err := s.drafts.FindByID(draftID)
	if err != nil {
		return nil, err
	}
	return s.toTree(draft)
}

// toTree 组装草稿树响应
func (s *draftService) toTree(draft *model.DraftModel) (*DraftTree, error) {
	sections, err := loadSectionNodes(s.db, model.ParentDraft, draft.ID)
	if err != nil {
		return nil, err
	}
	return &DraftTree{
		ID:         draft.ID,
		Title:      draft.Title,
		IsAutoSave: draft.IsAutoSave,
		UserID:     draft.UserID,
		CompanyID:  draft.CompanyID,
		Sections:   sections,
		CreatedAt:  draft.CreatedAt,
		UpdatedAt:  draft.UpdatedAt,
	}, nil
}

// audit 记录审计日志,失败忽略
func (s *draftService) audit(ctx context.Context, userID, action, resourceType, resourceID string, details interface{}) {
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

// isDuplicateKey 判断错误是否为唯一约束冲突
// gorm 的错误翻译在 postgres/sqlite 方言下均产出 ErrDuplicatedKey,
// 串匹配兜底覆盖未开启翻译的场景
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
