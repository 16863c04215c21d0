package utils_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mautops/permit-gin/internal/utils"
)

// TestValidateID 测试资源 ID 格式验证
func TestValidateID(t *testing.T) {
	assert.NoError(t, utils.ValidateID("0b7a5c2e-9f1d-4a3b-8c6e-2d4f6a8b0c1e"))
	assert.NoError(t, utils.ValidateID("draft_001"))

	assert.ErrorIs(t, utils.ValidateID(""), utils.ErrEmptyID)
	assert.ErrorIs(t, utils.ValidateID("id with spaces"), utils.ErrInvalidIDFormat)
	assert.ErrorIs(t, utils.ValidateID("id/../../etc"), utils.ErrInvalidIDFormat)
	assert.ErrorIs(t, utils.ValidateID(strings.Repeat("a", 65)), utils.ErrIDTooLong)
}

// TestValidateTitle 测试标题验证
func TestValidateTitle(t *testing.T) {
	assert.NoError(t, utils.ValidateTitle("Hot Work Permit"))
	assert.NoError(t, utils.ValidateTitle("  trimmed  "))

	assert.ErrorIs(t, utils.ValidateTitle(""), utils.ErrEmptyTitle)
	assert.ErrorIs(t, utils.ValidateTitle("   "), utils.ErrEmptyTitle)
	assert.ErrorIs(t, utils.ValidateTitle(strings.Repeat("a", 256)), utils.ErrTitleTooLong)
	assert.ErrorIs(t, utils.ValidateTitle("<script>alert(1)</script>"), utils.ErrDangerousChars)
	assert.ErrorIs(t, utils.ValidateTitle("x'; DROP TABLE forms"), utils.ErrDangerousChars)
}

// TestSanitizeString 测试字符串清理
func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", utils.SanitizeString("<b>bold</b>"))

	// 控制字符剔除,换行与制表保留
	assert.Equal(t, "a\nb\tc", utils.SanitizeString("a\nb\tc\x00\x07"))
}

// TestTrimAndValidate 测试清理并验证
func TestTrimAndValidate(t *testing.T) {
	out, err := utils.TrimAndValidate("  Confined Space  ", 64)
	require.NoError(t, err)
	assert.Equal(t, "Confined Space", out)

	_, err = utils.TrimAndValidate("   ", 64)
	assert.ErrorIs(t, err, utils.ErrEmptyString)

	_, err = utils.TrimAndValidate(strings.Repeat("a", 65), 64)
	assert.ErrorIs(t, err, utils.ErrStringTooLong)

	// maxLen 为 0 时不限制长度
	out, err = utils.TrimAndValidate(strings.Repeat("a", 65), 0)
	require.NoError(t, err)
	assert.Len(t, out, 65)
}
