package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"github.com/mautops/permit-gin/internal/service"
)

// newWorkflowService 组装审批工作流服务
func newWorkflowService(db *gorm.DB) service.WorkflowService {
	return service.NewWorkflowService(
		db,
		repository.NewFormRepository(db),
		repository.NewSubmissionRepository(db),
		service.NewAuditLogService(repository.NewAuditLogRepository(db)),
	)
}

// formStatus 读出许可证当前状态
func formStatus(t *testing.T, db *gorm.DB, formID string) string {
	t.Helper()

	var form model.FormModel
	require.NoError(t, db.Where("id = ?", formID).First(&form).Error)
	return form.Status
}

// TestApprove_Transitions 测试审批状态机的正向迁移与幂等
func TestApprove_Transitions(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newWorkflowService(db)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")
	assert.Equal(t, model.StatusPending, formStatus(t, db, form.ID))

	require.NoError(t, svc.Approve(ctx, form.ID, "approver-001"))
	assert.Equal(t, model.StatusApproved, formStatus(t, db, form.ID))

	// 重复审批幂等放行
	require.NoError(t, svc.Approve(ctx, form.ID, "approver-001"))
	assert.Equal(t, model.StatusApproved, formStatus(t, db, form.ID))
}

// TestApprove_ClosedIsTerminal 测试 CLOSED 为终态,离开终态返回 Conflict
func TestApprove_ClosedIsTerminal(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newWorkflowService(db)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")
	require.NoError(t, svc.Approve(ctx, form.ID, "approver-001"))
	require.NoError(t, svc.Close(ctx, form.ID, "approver-001", &service.CloseRequest{ClosedBy: "Alice"}))

	err := svc.Approve(ctx, form.ID, "approver-001")
	assert.ErrorIs(t, err, service.ErrConflict)

	err = svc.Close(ctx, form.ID, "approver-001", &service.CloseRequest{ClosedBy: "Alice"})
	assert.ErrorIs(t, err, service.ErrConflict)
}

// TestApprove_NotFound 测试不存在的许可证
func TestApprove_NotFound(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newWorkflowService(db)

	err := svc.Approve(context.Background(), "no-such-form", "approver-001")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

// TestClose_RecordsClosureVerbatim 测试关闭记录原样保存
func TestClose_RecordsClosureVerbatim(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newWorkflowService(db)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")

	openingPTW := json.RawMessage(`{"gas_test":"passed","watch":"posted"}`)
	require.NoError(t, svc.Close(ctx, form.ID, "approver-001", &service.CloseRequest{
		OpeningPTW:  openingPTW,
		Description: "work completed without incident",
		ClosedBy:    "Alice Smith",
	}))

	var closed model.FormModel
	require.NoError(t, db.Where("id = ?", form.ID).First(&closed).Error)
	assert.Equal(t, model.StatusClosed, closed.Status)

	var record struct {
		OpeningPTW  json.RawMessage `json:"opening_ptw"`
		Description string          `json:"description"`
		ClosedBy    string          `json:"closed_by"`
		ClosedAt    string          `json:"closed_at"`
	}
	require.NoError(t, json.Unmarshal(closed.Closure, &record))
	assert.JSONEq(t, string(openingPTW), string(record.OpeningPTW))
	assert.Equal(t, "work completed without incident", record.Description)
	assert.Equal(t, "Alice Smith", record.ClosedBy)
	assert.NotEmpty(t, record.ClosedAt)
}

// insertSubmission 插入一条填报记录
func insertSubmission(t *testing.T, db *gorm.DB, id, formID string, answers string) {
	t.Helper()

	require.NoError(t, db.Create(&model.SubmissionModel{
		ID:      id,
		FormID:  formID,
		UserID:  "worker-001",
		Answers: []byte(answers),
	}).Error)
}

// TestFindPendingForActor_StructuredPath 测试 opening-ptw 答案组内的标签匹配路径
func TestFindPendingForActor_StructuredPath(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newWorkflowService(db)

	form := publishTestForm(t, db, "user-001", "Hot Work")
	insertSubmission(t, db, "sub-001", form.ID, `{
		"opening-ptw": {
			"comp-1": {"label": "Permit Issuing Authority Name", "value": "Alice Smith"},
			"comp-2": {"label": "Work Location", "value": "Deck 3"}
		}
	}`)

	// 大小写不敏感的双向子串匹配
	pending, err := svc.FindPendingForActor("alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sub-001", pending[0].Submission.ID)
	assert.Equal(t, form.ID, pending[0].Form.ID)

	pending, err = svc.FindPendingForActor("ALICE SMITH JR")
	require.NoError(t, err)
	assert.Len(t, pending, 1, "containment works in both directions")

	pending, err = svc.FindPendingForActor("Bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// TestFindPendingForActor_FallbackExactMatch 测试无结构化字段时的顶层精确匹配兜底
func TestFindPendingForActor_FallbackExactMatch(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newWorkflowService(db)

	form := publishTestForm(t, db, "user-001", "Cold Work")
	insertSubmission(t, db, "sub-001", form.ID, `{"issuer": "Bob Jones", "location": "Deck 1"}`)

	pending, err := svc.FindPendingForActor("Bob Jones")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// 兜底路径是精确匹配,子串不命中
	pending, err = svc.FindPendingForActor("Bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// TestFindPendingForActor_OnlyPendingForms 测试仅返回 PENDING 状态许可证的填报
func TestFindPendingForActor_OnlyPendingForms(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newWorkflowService(db)
	ctx := context.Background()

	pendingForm := publishTestForm(t, db, "user-001", "Pending One")
	approvedForm := publishTestForm(t, db, "user-001", "Approved One")
	require.NoError(t, svc.Approve(ctx, approvedForm.ID, "approver-001"))

	answers := `{"opening-ptw": {"c": {"label": "Permit Issuing Authority Name", "value": "Carol"}}}`
	insertSubmission(t, db, "sub-pending", pendingForm.ID, answers)
	insertSubmission(t, db, "sub-approved", approvedForm.ID, answers)

	results, err := svc.FindPendingForActor("Carol")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "sub-pending", results[0].Submission.ID)
}
