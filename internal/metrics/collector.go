package metrics

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// formStatuses 许可证状态全集,缺席的状态在分布指标里显式归零
var formStatuses = []string{"PENDING", "APPROVED", "CLOSED"}

// Collector 指标收集器
// 周期性刷新快照型指标:数据库连接池状态与许可证状态分布
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.Refresh()
		}
	}
}

// Refresh 立即刷新一轮快照型指标
func (c *Collector) Refresh() {
	_ = UpdateDatabaseConnections(c.db)
	_ = RefreshFormsByStatus(c.db)
}

// RefreshFormsByStatus 按状态统计许可证数量并更新分布指标
func RefreshFormsByStatus(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.Table("forms").
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	for _, status := range formStatuses {
		UpdateFormsByStatus(status, float64(counts[status]))
	}
	return nil
}
