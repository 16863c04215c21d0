package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"gorm.io/gorm"
)

// openingGroupKey 填报答案树中开工(opening-ptw)答案组的约定键名
const openingGroupKey = "opening-ptw"

// issuingAuthorityLabelRe 签发负责人字段的标签匹配模式
var issuingAuthorityLabelRe = regexp.MustCompile(`(?i)permit[- ]issuing[- ]authority[- ]name`)

// WorkflowService 审批工作流服务接口
// 状态机: PENDING→APPROVED, PENDING|APPROVED→CLOSED;CLOSED 为终态
type WorkflowService interface {
	Approve(ctx context.Context, formID, actorID string) error
	Close(ctx context.Context, formID, actorID string, req *CloseRequest) error
	FindPendingForActor(actorName string) ([]*PendingApproval, error)
}

// CloseRequest 关闭许可证请求
// @Description 关闭许可证的请求参数,closure 记录原样保存
type CloseRequest struct {
	OpeningPTW  json.RawMessage `json:"opening_ptw" swaggertype:"object"` // 开工 PTW 快照
	Description string          `json:"description"`                     // 关闭说明
	ClosedBy    string          `json:"closed_by" binding:"required"`    // 关闭人姓名
}

// closureRecord 持久化的关闭记录
type closureRecord struct {
	OpeningPTW  json.RawMessage `json:"opening_ptw,omitempty"`
	Description string          `json:"description"`
	ClosedBy    string          `json:"closed_by"`
	ClosedAt    time.Time       `json:"closed_at"`
}

// PendingApproval 待审批条目:命中的填报记录及其所属许可证
type PendingApproval struct {
	Submission *model.SubmissionModel `json:"submission"`
	Form       *model.FormModel       `json:"form"`
}

// workflowService 审批工作流服务实现
type workflowService struct {
	db          *gorm.DB
	forms       repository.FormRepository
	submissions repository.SubmissionRepository
	auditLogSvc AuditLogService
}

// NewWorkflowService 创建审批工作流服务
func NewWorkflowService(db *gorm.DB, forms repository.FormRepository, submissions repository.SubmissionRepository, auditLogSvc AuditLogService) WorkflowService {
	return &workflowService{
		db:          db,
		forms:       forms,
		submissions: submissions,
		auditLogSvc: auditLogSvc,
	}
}

// Approve 审批通过
// PENDING→APPROVED;重复审批幂等放行;从 CLOSED 审批违反终态,返回 Conflict。
// 操作者是否持有提升角色由外部协作方(认证中间件)在调用前检查
func (s *workflowService) Approve(ctx context.Context, formID, actorID string) error {
	form, err := s.findForm(formID)
	if err != nil {
		return err
	}

	if form.Status == model.StatusApproved {
		// 幂等重复审批
		return nil
	}
	if !model.CanTransition(form.Status, model.StatusApproved) {
		return conflictErr(fmt.Sprintf("cannot approve form in %s state", form.Status))
	}

	form.Status = model.StatusApproved
	form.UpdatedAt = time.Now()
	if err := s.forms.Save(form); err != nil {
		return err
	}

	metrics.RecordApproval("approve")
	s.audit(ctx, actorID, "approve", "form", formID, nil)
	return nil
}

// Close 关闭许可证
// PENDING 或 APPROVED 均可关闭;关闭记录(开工 PTW 快照、说明、关闭人、
// 关闭时间)原样保存到许可证上
func (s *workflowService) Close(ctx context.Context, formID, actorID string, req *CloseRequest) error {
	if req == nil {
		return newValidationError("", "request body is required")
	}

	form, err := s.findForm(formID)
	if err != nil {
		return err
	}

	if !model.CanTransition(form.Status, model.StatusClosed) {
		return conflictErr(fmt.Sprintf("cannot close form in %s state", form.Status))
	}

	closure, err := json.Marshal(closureRecord{
		OpeningPTW:  req.OpeningPTW,
		Description: req.Description,
		ClosedBy:    req.ClosedBy,
		ClosedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal closure record: %w", err)
	}

	form.Status = model.StatusClosed
	form.Closure = closure
	form.UpdatedAt = time.Now()
	if err := s.forms.Save(form); err != nil {
		return err
	}

	metrics.RecordApproval("close")
	s.audit(ctx, actorID, "close", "form", formID, map[string]string{"closed_by": req.ClosedBy})
	return nil
}

// FindPendingForActor 查找等待 actorName 审批的填报记录
// 双路径启发式匹配(保留为文档化的启发式,而非严格的结构化查询):
// 优先在约定键名为 opening-ptw 的答案组内查找标签匹配
// "permit issuing authority name" 的字段,与 actorName 做大小写不敏感的
// 双向子串匹配;无结构化字段时退化为对所有顶层字符串答案做精确匹配。
// 仅返回所属许可证状态为 PENDING 的记录
func (s *workflowService) FindPendingForActor(actorName string) ([]*PendingApproval, error) {
	submissions, err := s.submissions.FindAll()
	if err != nil {
		return nil, err
	}

	var matched []*model.SubmissionModel
	formIDs := make(map[string]bool)
	for _, sub := range submissions {
		if matchesIssuingAuthority(sub.Answers, actorName) {
			matched = append(matched, sub)
			formIDs[sub.FormID] = true
		}
	}
	if len(matched) == 0 {
		return []*PendingApproval{}, nil
	}

	ids := make([]string, 0, len(formIDs))
	for id := range formIDs {
		ids = append(ids, id)
	}
	forms, err := s.forms.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	pendingForms := make(map[string]*model.FormModel, len(forms))
	for _, f := range forms {
		if f.Status == model.StatusPending {
			pendingForms[f.ID] = f
		}
	}

	results := make([]*PendingApproval, 0, len(matched))
	for _, sub := range matched {
		if form, ok := pendingForms[sub.FormID]; ok {
			results = append(results, &PendingApproval{Submission: sub, Form: form})
		}
	}
	return results, nil
}

// matchesIssuingAuthority 判断答案树是否将 actorName 标为签发负责人
func matchesIssuingAuthority(answers []byte, actorName string) bool {
	if name := resolveIssuingAuthority(answers); name != "" {
		return nameMatches(name, actorName)
	}

	// 无结构化字段时的兜底:扫描顶层字符串答案做精确匹配
	var top map[string]json.RawMessage
	if err := json.Unmarshal(answers, &top); err != nil {
		return false
	}
	for _, raw := range top {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if value == actorName {
			return true
		}
	}
	return false
}

// resolveIssuingAuthority 从答案树解析签发负责人姓名,解析不到返回空串
func resolveIssuingAuthority(answers []byte) string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(answers, &top); err != nil {
		return ""
	}
	groupRaw, ok := top[openingGroupKey]
	if !ok {
		return ""
	}

	// 组内按组件 ID 组织,每项携带 label 与 value
	var group map[string]struct {
		Label string          `json:"label"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(groupRaw, &group); err != nil {
		return ""
	}
	for _, field := range group {
		if !issuingAuthorityLabelRe.MatchString(field.Label) {
			continue
		}
		var value string
		if err := json.Unmarshal(field.Value, &value); err != nil {
			continue
		}
		return value
	}
	return ""
}

// nameMatches 大小写不敏感的双向子串匹配
func nameMatches(fieldValue, actorName string) bool {
	a := strings.ToLower(strings.TrimSpace(fieldValue))
	b := strings.ToLower(strings.TrimSpace(actorName))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// findForm 查找许可证
func (s *workflowService) findForm(formID string) (*model.FormModel, error) {
	form, err := s.forms.FindByID(formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("form", formID)
		}
		return nil, fmt.Errorf("failed to get form: %w", err)
	}
	return form, nil
}

// audit 记录审计日志,失败忽略
func (s *workflowService) audit(ctx context.Context, userID, action, resourceType, resourceID string, details interface{}) {
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
