package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"普通名称", "entity_acme_corp", false},
		{"单个字母", "a", false},
		{"带数字和下划线", "entity_a1_b2", false},
		{"空字符串", "", true},
		{"数字开头", "1entity", true},
		{"下划线开头", "_entity", true},
		{"大写字母", "Entity", true},
		{"含连字符", "entity-acme", true},
		{"含空格", "entity acme", true},
		{"保留名public", "public", true},
		{"保留名pg_catalog", "pg_catalog", true},
		{"保留名information_schema", "information_schema", true},
		{"pg_前缀", "pg_custom", true},
		{"63字节上限", strings.Repeat("a", 63), false},
		{"超过63字节", strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateName(t *testing.T) {
	t.Run("普通名称", func(t *testing.T) {
		name := GenerateName("Acme Corp")
		assert.True(t, strings.HasPrefix(name, "entity_acme_corp_"))
		assert.NoError(t, ValidateName(name))
	})

	t.Run("特殊字符折叠为单个下划线", func(t *testing.T) {
		name := GenerateName("Acme & Co., Ltd.")
		assert.True(t, strings.HasPrefix(name, "entity_acme_co_ltd_"))
		assert.NoError(t, ValidateName(name))
	})

	t.Run("首尾特殊字符被去掉", func(t *testing.T) {
		name := GenerateName("--Acme--")
		assert.True(t, strings.HasPrefix(name, "entity_acme_"))
		assert.NoError(t, ValidateName(name))
	})

	t.Run("超长名称截断到63字节且保留后缀", func(t *testing.T) {
		name := GenerateName(strings.Repeat("x", 200))
		assert.LessOrEqual(t, len(name), MaxNameLength)
		assert.NoError(t, ValidateName(name))
		// 随机后缀在截断后仍然完整
		parts := strings.Split(name, "_")
		assert.Len(t, parts[len(parts)-1], 8)
	})

	t.Run("两次生成结果不同", func(t *testing.T) {
		first := GenerateName("Acme Corp")
		second := GenerateName("Acme Corp")
		assert.NotEqual(t, first, second)
	})
}
