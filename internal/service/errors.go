package service

import (
	"errors"
	"strings"
)

// ErrLastAdmin 不能删除或降级最后一名管理员
var ErrLastAdmin = errors.New("cannot remove the last administrator")

// ValidationError 保存前的校验失败，不会发起任何远程调用
type ValidationError struct {
	// Missing 缺失或取值不合法的必填字段（按字段规范顺序）
	Missing []string `json:"missing,omitempty"`
	// Invalid 取值不合法的非必填字段
	Invalid []string `json:"invalid,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func (e *ValidationError) Error() string {
	switch {
	case e.Reason != "":
		return e.Reason
	case len(e.Missing) > 0:
		return "missing required fields: " + strings.Join(e.Missing, ", ")
	default:
		return "invalid values: " + strings.Join(e.Invalid, ", ")
	}
}
