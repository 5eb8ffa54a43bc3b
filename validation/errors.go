package validation

import (
	"strings"

	"relmap/errors"
)

// FieldError 单个成员的校验失败
type FieldError struct {
	Field string
	Rule  string
	Err   error
}

func (e FieldError) Error() string {
	msg := e.Err.Error()
	if ie, ok := e.Err.(errors.IError); ok {
		msg = ie.Message()
	}
	if e.Field == "" {
		return msg
	}
	return e.Field + ": " + msg
}

func (e FieldError) Unwrap() error { return e.Err }

// Errors 一次校验收集到的全部失败，作为数据返回给调用方展示
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Code 使 errors.IsValidation 可识别
func (e Errors) Code() errors.ErrorCode { return errors.ErrCodeValidation }

// Fields 返回失败的成员名（按出现顺序去重）
func (e Errors) Fields() []string {
	seen := make(map[string]struct{}, len(e))
	var out []string
	for _, fe := range e {
		if _, ok := seen[fe.Field]; ok {
			continue
		}
		seen[fe.Field] = struct{}{}
		out = append(out, fe.Field)
	}
	return out
}

// Check 依次执行规则，收集失败项
func Check(field string, value any, rules []Rule) Errors {
	var errs Errors
	for _, r := range rules {
		if err := r.Validate(value); err != nil {
			errs = append(errs, FieldError{Field: field, Rule: r.Name(), Err: err})
		}
	}
	return errs
}
