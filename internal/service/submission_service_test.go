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

// fakeNotifier 捕获广播与定向消息的通知桩
type fakeNotifier struct {
	messages [][]byte
	direct   map[string][][]byte
	accept   bool
}

func (n *fakeNotifier) Broadcast(message []byte) bool {
	n.messages = append(n.messages, message)
	return n.accept
}

func (n *fakeNotifier) BroadcastToUser(userID string, message []byte) {
	if n.direct == nil {
		n.direct = make(map[string][][]byte)
	}
	n.direct[userID] = append(n.direct[userID], message)
}

// newSubmissionService 组装填报服务
func newSubmissionService(db *gorm.DB, notifier service.Notifier) service.SubmissionService {
	return service.NewSubmissionService(
		db,
		repository.NewFormRepository(db),
		repository.NewSubmissionRepository(db),
		notifier,
		service.NewAuditLogService(repository.NewAuditLogRepository(db)),
	)
}

const issuingAnswers = `{"opening-ptw": {"c1": {"label": "Permit Issuing Authority Name", "value": "Alice Smith"}}}`

// TestSubmissionCreate_SavesAndNotifies 测试填报写入并推送待审批通知
func TestSubmissionCreate_SavesAndNotifies(t *testing.T) {
	db := setupServiceTestDB(t)
	notifier := &fakeNotifier{accept: true}
	svc := newSubmissionService(db, notifier)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")

	submission, err := svc.Create(ctx, form.ID, "worker-001", json.RawMessage(issuingAnswers))
	require.NoError(t, err)
	assert.NotEmpty(t, submission.ID)
	assert.Equal(t, form.ID, submission.FormID)

	require.Len(t, notifier.messages, 1)
	var msg map[string]string
	require.NoError(t, json.Unmarshal(notifier.messages[0], &msg))
	assert.Equal(t, "pending_approval", msg["type"])
	assert.Equal(t, form.ID, msg["form_id"])
	assert.Equal(t, submission.ID, msg["submission_id"])
	assert.Equal(t, "Alice Smith", msg["issuing_authority"])

	// 所有者收到一条定向的填报到达通知
	require.Len(t, notifier.direct["user-001"], 1)
	var owned map[string]string
	require.NoError(t, json.Unmarshal(notifier.direct["user-001"][0], &owned))
	assert.Equal(t, "submission_received", owned["type"])
	assert.Equal(t, submission.ID, owned["submission_id"])
}

// TestSubmissionCreate_NoNotifyWhenNotPending 测试非 PENDING 许可证不推送通知
func TestSubmissionCreate_NoNotifyWhenNotPending(t *testing.T) {
	db := setupServiceTestDB(t)
	notifier := &fakeNotifier{accept: true}
	svc := newSubmissionService(db, notifier)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")
	require.NoError(t, db.Model(&model.FormModel{}).
		Where("id = ?", form.ID).Update("status", model.StatusApproved).Error)

	_, err := svc.Create(ctx, form.ID, "worker-001", json.RawMessage(issuingAnswers))
	require.NoError(t, err)
	assert.Empty(t, notifier.messages)

	// 待审批广播跳过,但所有者的定向通知照常送达
	assert.Len(t, notifier.direct["user-001"], 1)
}

// TestSubmissionCreate_NoAuthorityNoNotify 测试解析不出签发负责人时不推送
func TestSubmissionCreate_NoAuthorityNoNotify(t *testing.T) {
	db := setupServiceTestDB(t)
	notifier := &fakeNotifier{accept: true}
	svc := newSubmissionService(db, notifier)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")

	_, err := svc.Create(ctx, form.ID, "worker-001", json.RawMessage(`{"free_text": "no authority here"}`))
	require.NoError(t, err)
	assert.Empty(t, notifier.messages)
}

// TestSubmissionCreate_NotifyFailureDoesNotFailWrite 测试通知失败不回滚填报
func TestSubmissionCreate_NotifyFailureDoesNotFailWrite(t *testing.T) {
	db := setupServiceTestDB(t)
	notifier := &fakeNotifier{accept: false}
	svc := newSubmissionService(db, notifier)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")

	submission, err := svc.Create(ctx, form.ID, "worker-001", json.RawMessage(issuingAnswers))
	require.NoError(t, err, "a dropped notification must never fail the submission write")

	var count int64
	require.NoError(t, db.Model(&model.SubmissionModel{}).Where("id = ?", submission.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// TestSubmissionCreate_NilNotifier 测试未配置通知方时照常写入
func TestSubmissionCreate_NilNotifier(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSubmissionService(db, nil)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")

	_, err := svc.Create(ctx, form.ID, "worker-001", json.RawMessage(issuingAnswers))
	assert.NoError(t, err)
}

// TestSubmissionCreate_Validation 测试缺失答案与不存在的许可证
func TestSubmissionCreate_Validation(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSubmissionService(db, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "no-such-form", "worker-001", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, service.ErrNotFound)

	form := publishTestForm(t, db, "user-001", "Hot Work")
	_, err = svc.Create(ctx, form.ID, "worker-001", nil)
	assert.True(t, service.IsValidationError(err))
}

// TestSubmissionListByForm 测试按许可证列出填报记录
func TestSubmissionListByForm(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSubmissionService(db, nil)
	ctx := context.Background()

	form := publishTestForm(t, db, "user-001", "Hot Work")
	other := publishTestForm(t, db, "user-001", "Cold Work")

	_, err := svc.Create(ctx, form.ID, "worker-001", json.RawMessage(`{"a": 1}`))
	require.NoError(t, err)
	_, err = svc.Create(ctx, form.ID, "worker-002", json.RawMessage(`{"b": 2}`))
	require.NoError(t, err)
	_, err = svc.Create(ctx, other.ID, "worker-001", json.RawMessage(`{"c": 3}`))
	require.NoError(t, err)

	submissions, err := svc.ListByForm(form.ID)
	require.NoError(t, err)
	assert.Len(t, submissions, 2)

	_, err = svc.ListByForm("no-such-form")
	assert.ErrorIs(t, err, service.ErrNotFound)
}
