package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mautops/permit-gin/internal/database"
	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/mautops/permit-gin/internal/model"
)

// setupMetricsTestDB 创建内存数据库并完成迁移
func setupMetricsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

// scrapeMetrics 抓取一次指标端点输出
func scrapeMetrics(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func insertStatusForm(t *testing.T, db *gorm.DB, id, status string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&model.FormModel{
		ID: id, Title: "Permit " + id, Status: status,
		UserID: "user-001", CompanyID: "company-001",
		CreatedAt: now, UpdatedAt: now,
	}).Error)
}

// TestRefreshFormsByStatus 测试许可证状态分布指标刷新
func TestRefreshFormsByStatus(t *testing.T) {
	db := setupMetricsTestDB(t)

	insertStatusForm(t, db, "form-001", model.StatusPending)
	insertStatusForm(t, db, "form-002", model.StatusPending)
	insertStatusForm(t, db, "form-003", model.StatusApproved)

	require.NoError(t, metrics.RefreshFormsByStatus(db))

	body := scrapeMetrics(t)
	assert.Contains(t, body, `forms_by_status{status="PENDING"} 2`)
	assert.Contains(t, body, `forms_by_status{status="APPROVED"} 1`)
	// 缺席的状态显式归零而非缺失
	assert.Contains(t, body, `forms_by_status{status="CLOSED"} 0`)

	assert.NoError(t, metrics.RefreshFormsByStatus(nil))
}

// TestCollectorRefresh 测试收集器一轮刷新覆盖连接池指标
func TestCollectorRefresh(t *testing.T) {
	db := setupMetricsTestDB(t)

	collector := metrics.NewCollector(db, time.Minute)
	collector.Refresh()

	body := scrapeMetrics(t)
	assert.Contains(t, body, `database_connections_max 1`)
}

// TestCollectorStartStop 测试收集器启动与停止
func TestCollectorStartStop(t *testing.T) {
	db := setupMetricsTestDB(t)
	insertStatusForm(t, db, "form-001", model.StatusClosed)

	collector := metrics.NewCollector(db, 10*time.Millisecond)
	collector.Start()
	time.Sleep(50 * time.Millisecond)
	collector.Stop()

	body := scrapeMetrics(t)
	assert.Contains(t, body, `forms_by_status{status="CLOSED"} 1`)
}
