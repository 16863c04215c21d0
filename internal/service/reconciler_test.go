package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mautops/permit-gin/internal/database"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/service"
)

// setupServiceTestDB 创建测试数据库
// 限制为单连接,保证 :memory: 库在整个测试内可见
func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// createTestDraft 插入一条草稿行作为树的父级
func createTestDraft(t *testing.T, db *gorm.DB, userID string) *model.DraftModel {
	t.Helper()

	draft := &model.DraftModel{
		ID:        "draft-" + userID,
		Title:     "Test Draft",
		UserID:    userID,
		CompanyID: "company-001",
	}
	require.NoError(t, db.Create(draft).Error)
	return draft
}

// reconcile 在事务内执行一轮树调和
func reconcile(t *testing.T, db *gorm.DB, parentID string, incoming []service.SectionInput) error {
	t.Helper()

	r := service.NewReconciler()
	return db.Transaction(func(tx *gorm.DB) error {
		return r.ReconcileTree(tx, model.ParentDraft, parentID, incoming)
	})
}

// loadSections 按 position 顺序读出父级下的全部分区
func loadSections(t *testing.T, db *gorm.DB, parentID string) []model.SectionModel {
	t.Helper()

	var sections []model.SectionModel
	require.NoError(t, db.Where("parent_type = ? AND parent_id = ?", model.ParentDraft, parentID).
		Order("position ASC").Find(&sections).Error)
	return sections
}

// loadComponents 按 position 顺序读出分区下的全部组件
func loadComponents(t *testing.T, db *gorm.DB, sectionID string) []model.ComponentModel {
	t.Helper()

	var components []model.ComponentModel
	require.NoError(t, db.Where("section_id = ?", sectionID).
		Order("position ASC").Find(&components).Error)
	return components
}

// TestReconcileTree_CreatesNewTree 测试首轮调和创建完整的分区/组件树
func TestReconcileTree_CreatesNewTree(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	incoming := []service.SectionInput{
		{
			Title: strPtr("General Information"),
			Components: []service.ComponentInput{
				{Label: strPtr("Work Location"), Type: strPtr("text")},
				{Label: strPtr("Start Date"), Type: strPtr("date"), Required: boolPtr(true)},
			},
		},
		{
			Title: strPtr("PPE"),
			Components: []service.ComponentInput{
				{Label: strPtr("Required Equipment"), Type: strPtr("checkbox"), Options: []string{"Helmet", "Gloves"}},
			},
		},
	}

	require.NoError(t, reconcile(t, db, draft.ID, incoming))

	sections := loadSections(t, db, draft.ID)
	require.Len(t, sections, 2)
	assert.Equal(t, "General Information", sections[0].Title)
	assert.Equal(t, 0, sections[0].Position)
	assert.Equal(t, "PPE", sections[1].Title)
	assert.Equal(t, 1, sections[1].Position)
	assert.True(t, sections[0].Enabled, "new sections default to enabled")

	components := loadComponents(t, db, sections[0].ID)
	require.Len(t, components, 2)
	assert.Equal(t, "Work Location", components[0].Label)
	assert.Equal(t, model.KindText, components[0].Type)
	assert.False(t, components[0].Required, "required defaults to false")
	assert.True(t, components[1].Required)

	ppe := loadComponents(t, db, sections[1].ID)
	require.Len(t, ppe, 1)
	assert.Equal(t, model.KindCheckbox, ppe[0].Type)
	assert.Equal(t, []string{"Helmet", "Gloves"}, ppe[0].OptionList())
}

// TestReconcileTree_PreservesIdentity 测试携带已知 ID 的节点原地更新,ID 不变
func TestReconcileTree_PreservesIdentity(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{
			Title: strPtr("Safety Checks"),
			Components: []service.ComponentInput{
				{Label: strPtr("Gas Test Done"), Type: strPtr("checkbox")},
			},
		},
	}))

	sections := loadSections(t, db, draft.ID)
	require.Len(t, sections, 1)
	sectionID := sections[0].ID
	components := loadComponents(t, db, sectionID)
	require.Len(t, components, 1)
	componentID := components[0].ID

	// 第二轮: 带 ID 回传,改标题和标签
	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{
			ID:    sectionID,
			Title: strPtr("Safety Checks (rev 2)"),
			Components: []service.ComponentInput{
				{ID: componentID, Label: strPtr("Gas Test Completed")},
			},
		},
	}))

	sections = loadSections(t, db, draft.ID)
	require.Len(t, sections, 1)
	assert.Equal(t, sectionID, sections[0].ID, "section identity preserved across passes")
	assert.Equal(t, "Safety Checks (rev 2)", sections[0].Title)

	components = loadComponents(t, db, sectionID)
	require.Len(t, components, 1)
	assert.Equal(t, componentID, components[0].ID, "component identity preserved across passes")
	assert.Equal(t, "Gas Test Completed", components[0].Label)
	assert.Equal(t, model.KindCheckbox, components[0].Type, "omitted type falls back to persisted value")
}

// TestReconcileTree_Idempotent 测试重复提交同一载荷不改变节点集合
func TestReconcileTree_Idempotent(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{Title: strPtr("Only Section"), Components: []service.ComponentInput{
			{Label: strPtr("Only Field")},
		}},
	}))

	sections := loadSections(t, db, draft.ID)
	require.Len(t, sections, 1)
	components := loadComponents(t, db, sections[0].ID)
	require.Len(t, components, 1)

	// 重放同一棵树(带 ID)
	replay := []service.SectionInput{
		{ID: sections[0].ID, Title: strPtr("Only Section"), Components: []service.ComponentInput{
			{ID: components[0].ID, Label: strPtr("Only Field")},
		}},
	}
	require.NoError(t, reconcile(t, db, draft.ID, replay))
	require.NoError(t, reconcile(t, db, draft.ID, replay))

	after := loadSections(t, db, draft.ID)
	require.Len(t, after, 1)
	assert.Equal(t, sections[0].ID, after[0].ID)
	afterComponents := loadComponents(t, db, after[0].ID)
	require.Len(t, afterComponents, 1)
	assert.Equal(t, components[0].ID, afterComponents[0].ID)
}

// TestReconcileTree_DeletesMissingNodes 测试未回传的节点被删除且级联组件
func TestReconcileTree_DeletesMissingNodes(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{Title: strPtr("A"), Components: []service.ComponentInput{{Label: strPtr("a1")}}},
		{Title: strPtr("B"), Components: []service.ComponentInput{{Label: strPtr("b1")}, {Label: strPtr("b2")}}},
		{Title: strPtr("C"), Components: []service.ComponentInput{{Label: strPtr("c1")}}},
	}))

	sections := loadSections(t, db, draft.ID)
	require.Len(t, sections, 3)
	idA, idB, idC := sections[0].ID, sections[1].ID, sections[2].ID

	// 回传 [A, C],B 应被删除
	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{ID: idA},
		{ID: idC},
	}))

	after := loadSections(t, db, draft.ID)
	require.Len(t, after, 2)
	assert.Equal(t, idA, after[0].ID)
	assert.Equal(t, 0, after[0].Position)
	assert.Equal(t, idC, after[1].ID)
	assert.Equal(t, 1, after[1].Position, "positions rewritten to match incoming order")

	// B 的组件被级联删除
	var orphaned int64
	require.NoError(t, db.Model(&model.ComponentModel{}).Where("section_id = ?", idB).Count(&orphaned).Error)
	assert.Zero(t, orphaned, "components of a deleted section must be cascaded")

	// A 的组件不受影响(组件层载荷为 nil,不做操作)
	assert.Len(t, loadComponents(t, db, idA), 1)
}

// TestReconcileTree_NilVersusEmpty 测试 nil 载荷不做操作,空切片清空全部
func TestReconcileTree_NilVersusEmpty(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{Title: strPtr("Keep Me"), Components: []service.ComponentInput{{Label: strPtr("field")}}},
	}))

	// nil: 载荷省略了 sections 键,不做任何操作
	require.NoError(t, reconcile(t, db, draft.ID, nil))
	assert.Len(t, loadSections(t, db, draft.ID), 1)

	// 空切片: 显式清空全部分区
	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{}))
	assert.Empty(t, loadSections(t, db, draft.ID))

	var remaining int64
	require.NoError(t, db.Model(&model.ComponentModel{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

// TestReconcileTree_UnknownIDTreatedAsCreate 测试未知 ID 的节点按新建处理而非报错
func TestReconcileTree_UnknownIDTreatedAsCreate(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{ID: "no-such-section", Title: strPtr("Brand New")},
	}))

	sections := loadSections(t, db, draft.ID)
	require.Len(t, sections, 1)
	assert.NotEqual(t, "no-such-section", sections[0].ID, "unknown incoming ID must be replaced by a fresh one")
	assert.Equal(t, "Brand New", sections[0].Title)
}

// TestReconcileTree_ValidationRejectsBeforeWrite 测试校验失败时整个事务回滚,不留部分状态
func TestReconcileTree_ValidationRejectsBeforeWrite(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	err := reconcile(t, db, draft.ID, []service.SectionInput{
		{Title: strPtr("Valid Section")},
		{}, // 新建分区缺 title
	})
	require.Error(t, err)
	assert.True(t, service.IsValidationError(err))

	assert.Empty(t, loadSections(t, db, draft.ID), "no partial state after validation failure")

	// 新建组件缺 label 同样整体失败
	err = reconcile(t, db, draft.ID, []service.SectionInput{
		{Title: strPtr("Valid Section"), Components: []service.ComponentInput{{Type: strPtr("text")}}},
	})
	require.Error(t, err)
	assert.True(t, service.IsValidationError(err))
	assert.Empty(t, loadSections(t, db, draft.ID))
}

// TestReconcileTree_PartialUpdateFallsBack 测试缺省的指针字段回落到已持久化的值
func TestReconcileTree_PartialUpdateFallsBack(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{Title: strPtr("Hot Work"), Components: []service.ComponentInput{
			{Label: strPtr("Fire Watch"), Type: strPtr("radio"), Required: boolPtr(true), Options: []string{"Yes", "No"}},
		}},
	}))
	sections := loadSections(t, db, draft.ID)
	components := loadComponents(t, db, sections[0].ID)

	// 仅改 enabled,其余字段缺省
	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{ID: sections[0].ID, Enabled: boolPtr(false), Components: []service.ComponentInput{
			{ID: components[0].ID, Enabled: boolPtr(false)},
		}},
	}))

	after := loadSections(t, db, draft.ID)
	require.Len(t, after, 1)
	assert.False(t, after[0].Enabled)
	assert.Equal(t, "Hot Work", after[0].Title, "omitted title falls back to persisted value")

	afterComponents := loadComponents(t, db, after[0].ID)
	require.Len(t, afterComponents, 1)
	assert.False(t, afterComponents[0].Enabled)
	assert.Equal(t, "Fire Watch", afterComponents[0].Label)
	assert.True(t, afterComponents[0].Required)
	assert.Equal(t, []string{"Yes", "No"}, afterComponents[0].OptionList(), "omitted options fall back to persisted value")
}

// TestReconcileTree_ReplaceOptions 测试回传新选项列表时整体替换且组件 ID 保留
func TestReconcileTree_ReplaceOptions(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{Title: strPtr("PPE"), Components: []service.ComponentInput{
			{Label: strPtr("Required Equipment"), Type: strPtr("checkbox"), Options: []string{"Helmet", "Gloves"}},
		}},
	}))
	sections := loadSections(t, db, draft.ID)
	components := loadComponents(t, db, sections[0].ID)

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{ID: sections[0].ID, Components: []service.ComponentInput{
			{ID: components[0].ID, Options: []string{"Helmet", "Gloves", "Harness"}},
		}},
	}))

	after := loadComponents(t, db, sections[0].ID)
	require.Len(t, after, 1)
	assert.Equal(t, components[0].ID, after[0].ID)
	assert.Equal(t, []string{"Helmet", "Gloves", "Harness"}, after[0].OptionList())
}

// TestReconcileTree_ReorderRewritesPositions 测试顺序完全由传入数组决定
func TestReconcileTree_ReorderRewritesPositions(t *testing.T) {
	db := setupServiceTestDB(t)
	draft := createTestDraft(t, db, "user-001")

	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{Title: strPtr("First")},
		{Title: strPtr("Second")},
	}))
	sections := loadSections(t, db, draft.ID)
	require.Len(t, sections, 2)

	// 倒序回传
	require.NoError(t, reconcile(t, db, draft.ID, []service.SectionInput{
		{ID: sections[1].ID},
		{ID: sections[0].ID},
	}))

	after := loadSections(t, db, draft.ID)
	require.Len(t, after, 2)
	assert.Equal(t, "Second", after[0].Title)
	assert.Equal(t, "First", after[1].Title)
}
