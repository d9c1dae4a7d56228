package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"meap/pkg/errors"
)

// PostgreSQL标识符上限为63字节
const MaxNameLength = 63

var (
	namePattern       = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	invalidChars      = regexp.MustCompile(`[^a-z0-9_]`)
	repeatUnderscores = regexp.MustCompile(`_+`)
)

// 系统保留的schema名，禁止作为实体schema使用
var reservedNames = map[string]bool{
	"public":             true,
	"pg_catalog":         true,
	"information_schema": true,
	"pg_toast":           true,
}

// ValidateName 校验schema名：小写字母开头，仅含小写字母/数字/下划线，
// 不超过63字节，且不得与系统保留名冲突。任何DDL执行前必须先通过校验
func ValidateName(name string) error {
	if name == "" {
		return errors.NewValidation("schema名不能为空")
	}
	if len(name) > MaxNameLength {
		return errors.NewValidation(fmt.Sprintf("schema名长度不能超过%d字节", MaxNameLength))
	}
	if !namePattern.MatchString(name) {
		return errors.NewValidation("schema名必须以小写字母开头，且只能包含小写字母、数字和下划线")
	}
	if reservedNames[name] || strings.HasPrefix(name, "pg_") {
		return errors.NewValidation(fmt.Sprintf("schema名 %s 为系统保留，不可使用", name))
	}
	return nil
}

// GenerateName 从实体名派生schema名：
// 转小写 -> 非法字符替换为下划线 -> 折叠连续下划线 -> 去掉首尾下划线
// -> 加entity_前缀和随机后缀保证唯一 -> 截断到63字节
func GenerateName(entityName string) string {
	base := strings.ToLower(entityName)
	base = invalidChars.ReplaceAllString(base, "_")
	base = repeatUnderscores.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")

	suffix := uuid.New().String()[:8]
	name := fmt.Sprintf("entity_%s_%s", base, suffix)

	if len(name) > MaxNameLength {
		name = name[:MaxNameLength-len(suffix)-1]
		name = strings.TrimRight(name, "_")
		name = name + "_" + suffix
	}

	return name
}
