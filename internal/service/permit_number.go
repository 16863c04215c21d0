package service

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/mautops/permit-gin/internal/repository"
)

// DefaultAllocateAttempts 编号分配的默认重试上限
// 有界重试是编号分配唯一的内部循环,保证持续冲突下不会无限重试
const DefaultAllocateAttempts = 10

// maxPrefixLen 前缀清洗后的最大长度
const maxPrefixLen = 3

// PermitNumberAllocator 许可证编号分配器
// 生成短的、面向人的许可证编号,分配时刻保证在已发布许可证中唯一。
// 尽力而为:全部尝试均冲突时返回空串而非错误,编号是建议性的,
// 不是许可证存在的硬前提,调用方必须容忍空编号
type PermitNumberAllocator struct {
	forms repository.FormRepository
}

// NewPermitNumberAllocator 创建编号分配器
func NewPermitNumberAllocator(forms repository.FormRepository) *PermitNumberAllocator {
	return &PermitNumberAllocator{forms: forms}
}

// Allocate 分配一个未被占用的许可证编号
// 在 100000-999999 内均匀随机取 6 位数字;prefix 非空时清洗为至多
// 3 位大写字母数字并组合为 "PREFIX-NNNNNN"。
// maxAttempts <= 0 时使用 DefaultAllocateAttempts。
// 耗尽全部尝试返回 ("", nil),这是软条件而非异常
func (a *PermitNumberAllocator) Allocate(maxAttempts int, prefix string) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAllocateAttempts
	}
	cleaned := CleanPrefix(prefix)

	for i := 0; i < maxAttempts; i++ {
		candidate := fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		if cleaned != "" {
			candidate = cleaned + "-" + candidate
		}

		exists, err := a.forms.ExistsPermitNo(candidate, "")
		if err != nil {
			return "", fmt.Errorf("failed to check permit number: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		metrics.RecordPermitNumberCollision()
	}

	return "", nil
}

// IsUnique 校验用户自填编号是否可用
// excludeFormID 非空时排除该许可证自身,用于更新时校验
func (a *PermitNumberAllocator) IsUnique(candidate string, excludeFormID string) (bool, error) {
	exists, err := a.forms.ExistsPermitNo(candidate, excludeFormID)
	if err != nil {
		return false, fmt.Errorf("failed to check permit number: %w", err)
	}
	return !exists, nil
}

// CleanPrefix 清洗编号前缀:仅保留 ASCII 字母数字,转大写,截断到 3 位
// 编号要进入人工流转的纸面单据,前缀限定 ASCII
func CleanPrefix(prefix string) string {
	var b strings.Builder
	kept := 0
	for _, r := range prefix {
		if kept >= maxPrefixLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z':
			r = r - 'a' + 'A'
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			continue
		}
		b.WriteRune(r)
		kept++
	}
	return b.String()
}
