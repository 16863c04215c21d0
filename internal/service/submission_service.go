package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"gorm.io/gorm"
)

// Notifier 通知协作方
// 只被告知,不被咨询:通知失败从不回滚填报写入
type Notifier interface {
	Broadcast(message []byte) bool
	BroadcastToUser(userID string, message []byte)
}

// SubmissionService 填报服务接口
type SubmissionService interface {
	Create(ctx context.Context, formID, userID string, answers json.RawMessage) (*model.SubmissionModel, error)
	ListByForm(formID string) ([]*model.SubmissionModel, error)
}

// submissionService 填报服务实现
type submissionService struct {
	db          *gorm.DB
	forms       repository.FormRepository
	submissions repository.SubmissionRepository
	notifier    Notifier
	auditLogSvc AuditLogService
}

// NewSubmissionService 创建填报服务
func NewSubmissionService(db *gorm.DB, forms repository.FormRepository, submissions repository.SubmissionRepository, notifier Notifier, auditLogSvc AuditLogService) SubmissionService {
	return &submissionService{
		db:          db,
		forms:       forms,
		submissions: submissions,
		notifier:    notifier,
		auditLogSvc: auditLogSvc,
	}
}

// Create 对已发布许可证创建填报记录
// 记录成功写入且所属许可证为 PENDING、签发负责人可解析时,
// 向通知协作方推送一条待审批通知(fire-and-forget)
func (s *submissionService) Create(ctx context.Context, formID, userID string, answers json.RawMessage) (*model.SubmissionModel, error) {
	if len(answers) == 0 {
		return nil, newValidationError("answers", "answers are required")
	}

	form, err := s.forms.FindByID(formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("form", formID)
		}
		return nil, fmt.Errorf("failed to get form: %w", err)
	}

	submission := &model.SubmissionModel{
		ID:        uuid.New().String(),
		FormID:    form.ID,
		UserID:    userID,
		Answers:   answers,
		CreatedAt: time.Now(),
	}
	if err := s.submissions.Save(submission); err != nil {
		return nil, err
	}

	if s.auditLogSvc != nil && userID != "" {
		_ = s.auditLogSvc.RecordAction(ctx, userID, "create", "submission", submission.ID, map[string]string{"form_id": form.ID})
	}

	s.notifyPendingApproval(form, submission)
	s.notifyOwner(form, submission)

	return submission, nil
}

// ListByForm 列出许可证下的填报记录
func (s *submissionService) ListByForm(formID string) ([]*model.SubmissionModel, error) {
	if _, err := s.forms.FindByID(formID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("form", formID)
		}
		return nil, fmt.Errorf("failed to get form: %w", err)
	}
	return s.submissions.FindByForm(formID)
}

// notifyPendingApproval 推送待审批通知,任何失败只记日志不回传
func (s *submissionService) notifyPendingApproval(form *model.FormModel, submission *model.SubmissionModel) {
	if s.notifier == nil || form.Status != model.StatusPending {
		return
	}
	authority := resolveIssuingAuthority(submission.Answers)
	if authority == "" {
		return
	}

	message, err := json.Marshal(map[string]string{
		"type":              "pending_approval",
		"form_id":           form.ID,
		"form_title":        form.Title,
		"submission_id":     submission.ID,
		"issuing_authority": authority,
	})
	if err != nil {
		return
	}
	s.notifier.Broadcast(message)
}

// notifyOwner 向许可证所有者定向推送填报到达通知
// 与待审批广播独立:所有者关心每一次填报,不论许可证状态
func (s *submissionService) notifyOwner(form *model.FormModel, submission *model.SubmissionModel) {
	if s.notifier == nil || form.UserID == "" {
		return
	}

	message, err := json.Marshal(map[string]string{
		"type":          "submission_received",
		"form_id":       form.ID,
		"form_title":    form.Title,
		"submission_id": submission.ID,
	})
	if err != nil {
		return
	}
	s.notifier.BroadcastToUser(form.UserID, message)
}
