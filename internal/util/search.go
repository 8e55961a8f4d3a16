package util

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Fold 按 Unicode 大小写折叠，用于不区分大小写的比较
func Fold(s string) string {
	return folder.String(s)
}

// MatchAny 任一字段包含查询词即匹配（大小写不敏感）；空查询匹配全部
func MatchAny(query string, values ...string) bool {
	q := Fold(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, v := range values {
		if strings.Contains(Fold(v), q) {
			return true
		}
	}
	return false
}
